package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSystemMapping(t *testing.T) {
	m := NewFileSystemMapping()

	require.True(t, m.AddFolder("/dl/root", &FolderInfo{FolderKey: "root", Name: "root"}))
	require.True(t, m.AddFile("/dl/root/b.txt", &FileInfo{QuickKey: "b", Created: "2020-01-02 00:00:00"}))
	require.True(t, m.AddFile("/dl/root/a.txt", &FileInfo{QuickKey: "a", Created: "2020-01-03 00:00:00"}))
	require.True(t, m.AddFolder("/dl/root/sub", &FolderInfo{FolderKey: "sub", Name: "sub"}))
	require.True(t, m.AddFile("/dl/root/sub/c.txt", &FileInfo{QuickKey: "c", Created: "2020-01-01 00:00:00"}))

	require.False(t, m.AddFile("/dl/root/a.txt", &FileInfo{QuickKey: "dup"}))
	require.Equal(t, 5, m.Len())

	require.Equal(t, []string{
		"/dl/root",
		"/dl/root/a.txt",
		"/dl/root/b.txt",
		"/dl/root/sub",
		"/dl/root/sub/c.txt",
	}, m.Paths())

	var keys []string
	for _, n := range m.Files() {
		keys = append(keys, n.File.QuickKey)
	}
	require.Equal(t, []string{"c", "b", "a"}, keys)

	n, ok := m.Get("/dl/root/a.txt")
	require.True(t, ok)
	require.Equal(t, "a", n.File.QuickKey)
}

func TestFileInfoDecode(t *testing.T) {
	src := `{
		"quickkey": "oxteykmx3y12ab",
		"filename": "fstaj.rar",
		"size": "1048576",
		"hash": "abc",
		"created": "2019-05-13 11:12:52",
		"links": {"normal_download": "https://www.mediafire.com/file/oxteykmx3y12ab/fstaj.rar/file"}
	}`

	var fi FileInfo
	require.NoError(t, json.Unmarshal([]byte(src), &fi))
	require.Equal(t, int64(1048576), fi.Size.Int64())
	require.Equal(t, 2019, fi.CreatedAt().Year())
	require.NotEmpty(t, fi.Links.NormalDownload)

	var fo FolderInfo
	require.NoError(t, json.Unmarshal([]byte(`{"folderkey":"k","name":"n","file_count":3,"folder_count":""}`), &fo))
	require.Equal(t, int64(3), fo.FileCount.Int64())
	require.Equal(t, int64(0), fo.FolderCount.Int64())

	require.Error(t, json.Unmarshal([]byte(`{"size":"abc"}`), &fi))
}
