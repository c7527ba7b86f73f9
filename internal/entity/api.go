package entity

const (
	APIVersion    = "1.5"
	ResultSuccess = "Success"
)

type ContentType string

const (
	ContentFolder  ContentType = "folder"
	ContentFolders ContentType = "folders"
	ContentFiles   ContentType = "files"
)

// FolderContent is one listing of a folder. When produced by a chunked query it holds
// the entries of every chunk.
type FolderContent struct {
	ChunkNumber Numeric       `json:"chunk_number"`
	ContentType ContentType   `json:"content_type"`
	MoreChunks  string        `json:"more_chunks"`
	Files       []*FileInfo   `json:"files"`
	Folders     []*FolderInfo `json:"folders"`
}

func (c *FolderContent) HasMore() bool {
	return c.MoreChunks == "yes"
}

type FolderContentResponse struct {
	FolderContent FolderContent `json:"folder_content"`
}

type FolderInfoResponse struct {
	FolderInfo FolderInfo `json:"folder_info"`
}

type FileInfoResponse struct {
	Result            string   `json:"result"`
	CurrentAPIVersion string   `json:"current_api_version"`
	FileInfo          FileInfo `json:"file_info"`
}
