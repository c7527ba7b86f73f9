package entity

import (
	"path"
	"sort"
)

// Node is a FileSystemMapping entry. Exactly one of File and Folder is set.
type Node struct {
	Path   string
	File   *FileInfo
	Folder *FolderInfo
}

func (n *Node) IsFile() bool {
	return n.File != nil
}

// FileSystemMapping maps slash separated local paths to remote nodes.
// Iteration is always in lexicographic path order.
type FileSystemMapping struct {
	nodes map[string]*Node
	paths []string
	dirty bool
}

func NewFileSystemMapping() *FileSystemMapping {
	return &FileSystemMapping{
		nodes: make(map[string]*Node),
	}
}

// AddFile inserts a file node. It returns false if the path is already taken.
func (m *FileSystemMapping) AddFile(p string, file *FileInfo) bool {
	return m.add(&Node{Path: path.Clean(p), File: file})
}

// AddFolder inserts a folder node. It returns false if the path is already taken.
func (m *FileSystemMapping) AddFolder(p string, folder *FolderInfo) bool {
	return m.add(&Node{Path: path.Clean(p), Folder: folder})
}

func (m *FileSystemMapping) add(n *Node) bool {
	if _, exists := m.nodes[n.Path]; exists {
		return false
	}

	m.nodes[n.Path] = n
	m.paths = append(m.paths, n.Path)
	m.dirty = true

	return true
}

func (m *FileSystemMapping) Get(p string) (*Node, bool) {
	n, ok := m.nodes[p]

	return n, ok
}

func (m *FileSystemMapping) Len() int {
	return len(m.nodes)
}

// Paths returns all keys sorted lexicographically.
func (m *FileSystemMapping) Paths() []string {
	if m.dirty {
		sort.Strings(m.paths)
		m.dirty = false
	}

	out := make([]string, len(m.paths))
	copy(out, m.paths)

	return out
}

// Nodes returns all nodes in path order.
func (m *FileSystemMapping) Nodes() []*Node {
	paths := m.Paths()
	nodes := make([]*Node, 0, len(paths))
	for _, p := range paths {
		nodes = append(nodes, m.nodes[p])
	}

	return nodes
}

// Files returns the file nodes ordered by creation time, ties broken by path.
func (m *FileSystemMapping) Files() []*Node {
	var files []*Node
	for _, n := range m.Nodes() {
		if n.IsFile() {
			files = append(files, n)
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].File.Created < files[j].File.Created
	})

	return files
}
