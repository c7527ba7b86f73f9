package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	createdLayout = "2006-01-02 15:04:05"
)

// Numeric is an integer that the remote API transfers as a decimal string.
type Numeric int64

func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0

		return nil
	}

	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		*n = 0

		return nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("cannot parse numeric value %q: %w", s, err)
	}

	*n = Numeric(v)

	return nil
}

func (n Numeric) Int64() int64 {
	return int64(n)
}

type FileLinks struct {
	NormalDownload string `json:"normal_download"`
	View           string `json:"view,omitempty"`
	DirectDownload string `json:"direct_download,omitempty"`
}

// FileInfo describes a single remote file. NumInQueue is assigned locally
// once the discovery order is known.
type FileInfo struct {
	QuickKey   string    `json:"quickkey"`
	Filename   string    `json:"filename"`
	Size       Numeric   `json:"size"`
	Hash       string    `json:"hash"`
	Links      FileLinks `json:"links"`
	Created    string    `json:"created"`
	CreatedUTC string    `json:"created_utc,omitempty"`
	MimeType   string    `json:"mimetype,omitempty"`
	Privacy    string    `json:"privacy,omitempty"`

	NumInQueue int `json:"-"`
}

func (f *FileInfo) CreatedAt() time.Time {
	return parseCreated(f.Created, f.CreatedUTC)
}

func (f *FileInfo) String() string {
	return fmt.Sprintf("File(%s, %s, %d bytes)", f.QuickKey, f.Filename, f.Size)
}

type FolderInfo struct {
	FolderKey   string  `json:"folderkey"`
	Name        string  `json:"name"`
	FileCount   Numeric `json:"file_count"`
	FolderCount Numeric `json:"folder_count"`
	Created     string  `json:"created"`
	CreatedUTC  string  `json:"created_utc,omitempty"`
}

func (f *FolderInfo) CreatedAt() time.Time {
	return parseCreated(f.Created, f.CreatedUTC)
}

func (f *FolderInfo) String() string {
	return fmt.Sprintf("Folder(%s, %s, files: %d, folders: %d)", f.FolderKey, f.Name, f.FileCount, f.FolderCount)
}

func parseCreated(created, createdUTC string) time.Time {
	if t, err := time.Parse(createdLayout, created); err == nil {
		return t
	}

	if t, err := time.Parse(time.RFC3339, createdUTC); err == nil {
		return t
	}

	return time.Time{}
}
