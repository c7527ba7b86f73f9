package tree

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/jgivc/mfdl/internal/entity"
	"github.com/jgivc/mfdl/internal/util"
)

const fallbackRootName = "folder"

type FolderRepository interface {
	GetFolderContent(ctx context.Context, contentType entity.ContentType, folderKey string) (*entity.FolderContent, error)
}

type treeBuilder struct {
	destBase string
	repo     FolderRepository
	log      *slog.Logger
}

func NewTreeBuilder(destBase string, repo FolderRepository, log *slog.Logger) *treeBuilder {
	return &treeBuilder{
		destBase: destBase,
		repo:     repo,
		log:      log.With(slog.String("item", "TreeBuilder")),
	}
}

type pending struct {
	folder *entity.FolderInfo
	path   string
}

// BuildFileSystem expands root into a path mapping rooted at destBase/root.Name.
// Folders are visited depth first in listing order. Every remote name becomes a single
// path segment, so nothing is mapped outside the root folder.
func (b *treeBuilder) BuildFileSystem(ctx context.Context, root *entity.FolderInfo) (*entity.FileSystemMapping, error) {
	rootName, ok := util.SafeName(root.Name)
	if !ok {
		if rootName, ok = util.SafeName(root.FolderKey); !ok {
			rootName = fallbackRootName
		}
		b.log.Warn("Unusable folder name, renamed", slog.String("name", root.Name), slog.String("path", rootName))
	}
	rootPath := path.Join(filepath.ToSlash(b.destBase), rootName)

	mapping := entity.NewFileSystemMapping()
	mapping.AddFolder(rootPath, root)

	stack := []pending{{folder: root, path: rootPath}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := b.expand(ctx, cur, rootPath, mapping)
		if err != nil {
			return nil, err
		}

		// reversed so the first subfolder is expanded next
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	b.log.Debug("Folder tree built", slog.String("root", rootPath), slog.Int("nodes", mapping.Len()))

	return mapping, nil
}

func (b *treeBuilder) expand(ctx context.Context, cur pending, rootPath string, mapping *entity.FileSystemMapping) ([]pending, error) {
	key := cur.folder.FolderKey

	if cur.folder.FileCount > 0 {
		content, err := b.repo.GetFolderContent(ctx, entity.ContentFiles, key)
		if err != nil {
			return nil, fmt.Errorf("cannot list files of %s: %w", cur.path, err)
		}

		for _, file := range content.Files {
			if file.Links.NormalDownload == "" {
				b.log.Warn("File has no download link, skipped", slog.String("folder", cur.path),
					slog.String("name", file.Filename), slog.String("quickkey", file.QuickKey))

				continue
			}

			p, ok := childPath(rootPath, cur.path, file.Filename)
			if !ok {
				b.log.Warn("Unusable file name, skipped", slog.String("folder", cur.path),
					slog.String("name", file.Filename), slog.String("quickkey", file.QuickKey))

				continue
			}

			if !mapping.AddFile(p, file) {
				b.log.Warn("Duplicate path, skipped", slog.String("path", p), slog.String("quickkey", file.QuickKey))
			}
		}
	}

	if cur.folder.FolderCount < 1 {
		return nil, nil
	}

	content, err := b.repo.GetFolderContent(ctx, entity.ContentFolders, key)
	if err != nil {
		return nil, fmt.Errorf("cannot list folders of %s: %w", cur.path, err)
	}

	children := make([]pending, 0, len(content.Folders))
	for _, folder := range content.Folders {
		p, ok := childPath(rootPath, cur.path, folder.Name)
		if !ok {
			b.log.Warn("Unusable folder name, skipped", slog.String("folder", cur.path),
				slog.String("name", folder.Name), slog.String("folderkey", folder.FolderKey))

			continue
		}

		if !mapping.AddFolder(p, folder) {
			b.log.Warn("Duplicate path, skipped", slog.String("path", p), slog.String("folderkey", folder.FolderKey))

			continue
		}
		children = append(children, pending{folder: folder, path: p})
	}

	return children, nil
}

// childPath joins a remote name under dir and makes sure the result stays below root.
func childPath(root, dir, name string) (string, bool) {
	safe, ok := util.SafeName(name)
	if !ok {
		return "", false
	}

	p := path.Join(dir, safe)
	if !strings.HasPrefix(p, root+"/") {
		return "", false
	}

	return p, true
}
