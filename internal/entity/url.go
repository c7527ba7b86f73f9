package entity

// ParsedURL is the classified form of an input link. A folder link may also pin a file.
type ParsedURL struct {
	FolderKey string
	FileKey   string
	Name      string
}

func (u ParsedURL) IsFolder() bool {
	return u.FolderKey != ""
}

func (u ParsedURL) PinsFile() bool {
	return u.FolderKey != "" && u.FileKey != ""
}
