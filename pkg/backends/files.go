// Package backends provides the built in share backends for items that
// live in the file tree.
package backends

import (
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/kevgathuku/server/internal/database"
	"github.com/kevgathuku/server/pkg/models"
	"github.com/kevgathuku/server/pkg/share"
	"gorm.io/gorm"
)

// FileBackend serves single file shares. The item source is the
// file-cache id rendered as a decimal string.
type FileBackend struct {
	db     *gorm.DB
	mounts share.MountResolver
}

func NewFileBackend(db *gorm.DB, mounts share.MountResolver) *FileBackend {
	return &FileBackend{db: db, mounts: mounts}
}

func (b *FileBackend) ItemType() string { return "file" }

func (b *FileBackend) IsValidSource(ctx context.Context, source, owner string) bool {
	f, err := b.lookup(ctx, source, owner)
	return err == nil && !f.IsDir
}

func (b *FileBackend) DisplayName(ctx context.Context, source, owner string) (string, error) {
	f, err := b.lookup(ctx, source, owner)
	if err != nil {
		return "", err
	}
	return f.Name, nil
}

func (b *FileBackend) IsShareTypeAllowed(t models.ShareType) bool {
	return t.Requestable()
}

func (b *FileBackend) FilePath(ctx context.Context, source, owner string) (string, error) {
	id, err := parseSource(source)
	if err != nil {
		return "", err
	}
	return b.mounts.FilePath(ctx, owner, id)
}

func (b *FileBackend) FormatItems(ctx context.Context, rows []*models.Share, format share.Format) (any, error) {
	switch format {
	case share.FormatSources:
		out := make(map[string]*models.Share, len(rows))
		for _, row := range rows {
			out[row.ItemSource] = row
		}
		return out, nil
	default:
		return rows, nil
	}
}

func (b *FileBackend) lookup(ctx context.Context, source, owner string) (*models.File, error) {
	id, err := parseSource(source)
	if err != nil {
		return nil, err
	}
	var f models.File
	err = b.db.WithContext(ctx).
		Where("id = ? AND uid_owner = ?", id, owner).
		First(&f).Error
	if err != nil {
		if database.IsRecordNotFoundErr(err) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// FolderBackend serves folder shares. A folder is a collection of file
// items; sharing it shares the subtree.
type FolderBackend struct {
	FileBackend
}

func NewFolderBackend(db *gorm.DB, mounts share.MountResolver) *FolderBackend {
	return &FolderBackend{FileBackend{db: db, mounts: mounts}}
}

func (b *FolderBackend) ItemType() string { return "folder" }

func (b *FolderBackend) IsValidSource(ctx context.Context, source, owner string) bool {
	f, err := b.lookup(ctx, source, owner)
	return err == nil && f.IsDir
}

// Children lists the files inside the folder subtree, with the path
// suffix beyond the folder root.
func (b *FolderBackend) Children(ctx context.Context, source string) ([]share.Child, error) {
	root, err := b.byID(ctx, source)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(root.Path, "/") + "/"

	var files []models.File
	err = b.db.WithContext(ctx).
		Where("uid_owner = ? AND is_dir = ? AND path LIKE ?",
			root.Owner, false, prefix+"%").
		Find(&files).Error
	if err != nil {
		return nil, err
	}

	children := make([]share.Child, 0, len(files))
	for _, f := range files {
		children = append(children, share.Child{
			Source: strconv.FormatInt(f.ID, 10),
			File:   strings.TrimPrefix(f.Path, prefix),
		})
	}
	return children, nil
}

// Parents lists folder sources containing source, nearest first. The
// recipient/owner scoping is applied by the caller through share
// filtering; here the chain is purely structural.
func (b *FolderBackend) Parents(ctx context.Context, source, recipient, owner string) ([]string, error) {
	f, err := b.byID(ctx, source)
	if err != nil {
		return nil, err
	}

	var parents []string
	for dir := path.Dir(f.Path); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		var row models.File
		err := b.db.WithContext(ctx).
			Where("uid_owner = ? AND path = ? AND is_dir = ?", f.Owner, dir, true).
			First(&row).Error
		if err != nil {
			if database.IsRecordNotFoundErr(err) {
				continue
			}
			return nil, err
		}
		parents = append(parents, strconv.FormatInt(row.ID, 10))
	}
	return parents, nil
}

func (b *FolderBackend) byID(ctx context.Context, source string) (*models.File, error) {
	id, err := parseSource(source)
	if err != nil {
		return nil, err
	}
	var f models.File
	err = b.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if err != nil {
		if database.IsRecordNotFoundErr(err) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func parseSource(source string) (int64, error) {
	id, err := strconv.ParseInt(source, 10, 64)
	if err != nil {
		return 0, share.ErrSourceNotFound
	}
	return id, nil
}
