// Package storage resolves file-cache sources to user visible paths and
// answers mount reachability questions for the sharing subsystem.
package storage

import (
	"context"
	"strings"

	"github.com/kevgathuku/server/internal/database"
	"github.com/kevgathuku/server/pkg/models"
	"gorm.io/gorm"
)

// homePrefix is where a user's own files live inside home storage.
// Everything else in home storage (thumbnails, trash, versions) is not
// sharable and not reachable as a mount.
const homePrefix = "files"

// sharedStoragePrefix marks storages materialized from a share received
// by the mount's owner.
const sharedStoragePrefix = "shared::"

type Mounts struct {
	db *gorm.DB
}

func NewMounts(db *gorm.DB) *Mounts {
	return &Mounts{db: db}
}

// FilePath returns the owner-relative path of fileSource, with the home
// prefix stripped so "/documents/a.txt" addresses "files/documents/a.txt".
func (m *Mounts) FilePath(ctx context.Context, owner string, fileSource int64) (string, error) {
	var f models.File
	err := m.db.WithContext(ctx).
		Where("id = ? AND uid_owner = ?", fileSource, owner).
		First(&f).Error
	if err != nil {
		if database.IsRecordNotFoundErr(err) {
			return "", database.ErrNotFound
		}
		return "", err
	}
	if f.Storage == "home" {
		return "/" + strings.TrimPrefix(strings.TrimPrefix(f.Path, homePrefix), "/"), nil
	}
	return "/" + strings.TrimPrefix(f.Path, "/"), nil
}

// FileSource resolves an owner-relative path to its file-cache id.
func (m *Mounts) FileSource(ctx context.Context, owner, path string) (int64, error) {
	rel := strings.TrimPrefix(path, "/")
	var f models.File
	err := m.db.WithContext(ctx).
		Where("uid_owner = ? AND path IN ?", owner,
			[]string{homePrefix + "/" + rel, rel}).
		First(&f).Error
	if err != nil {
		if database.IsRecordNotFoundErr(err) {
			return 0, database.ErrNotFound
		}
		return 0, err
	}
	return f.ID, nil
}

// Reachable reports whether the storage backing fileSource resolves.
// Home storage is only reachable under its files prefix; external and
// object storages always resolve.
func (m *Mounts) Reachable(ctx context.Context, viewer string, fileSource int64) bool {
	var f models.File
	err := m.db.WithContext(ctx).Where("id = ?", fileSource).First(&f).Error
	if err != nil {
		return false
	}
	if f.Storage == "home" {
		return f.Path == homePrefix || strings.HasPrefix(f.Path, homePrefix+"/")
	}
	return true
}

// ContainsSharedMount reports whether any mount below the owner-relative
// path is backed by storage shared into the owner.
func (m *Mounts) ContainsSharedMount(ctx context.Context, owner, path string) (bool, error) {
	rel := strings.TrimPrefix(path, "/")
	prefix := homePrefix + "/" + rel

	var count int64
	err := m.db.WithContext(ctx).Model(&models.File{}).
		Where("uid_owner = ?", owner).
		Where("path = ? OR path LIKE ?", prefix, strings.TrimSuffix(prefix, "/")+"/%").
		Where("storage LIKE ?", sharedStoragePrefix+"%").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
