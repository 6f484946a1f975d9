// Package directory answers user and group lookups from the accounts
// tables, with a short lived cache in front of the hot read paths.
package directory

import (
	"context"
	"time"

	"github.com/kevgathuku/server/internal/cache"
	"github.com/kevgathuku/server/internal/database"
	"github.com/kevgathuku/server/pkg/models"
	"gorm.io/gorm"
)

const lookupTTL = 5 * time.Minute

type Directory struct {
	db     *gorm.DB
	cacher cache.Cacher
}

func NewDirectory(db *gorm.DB, cacher cache.Cacher) *Directory {
	return &Directory{db: db, cacher: cacher}
}

func (d *Directory) UserExists(ctx context.Context, uid string) bool {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", uid).Count(&count).Error
	return err == nil && count > 0
}

func (d *Directory) GroupExists(ctx context.Context, gid string) bool {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Group{}).
		Where("id = ?", gid).Count(&count).Error
	return err == nil && count > 0
}

func (d *Directory) UserGroups(ctx context.Context, uid string) ([]string, error) {
	return cache.Fetch(d.cacher, cache.KeyUserGroups(uid), lookupTTL, func() ([]string, error) {
		var gids []string
		err := d.db.WithContext(ctx).Model(&models.GroupMember{}).
			Where("user_id = ?", uid).
			Pluck("group_id", &gids).Error
		return gids, err
	})
}

func (d *Directory) GroupMembers(ctx context.Context, gid string) ([]string, error) {
	var uids []string
	err := d.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", gid).
		Pluck("user_id", &uids).Error
	return uids, err
}

// DisplayName resolves a user's display name, falling back to the raw
// id when the account is unknown or the lookup fails.
func (d *Directory) DisplayName(ctx context.Context, uid string) string {
	name, err := cache.Fetch(d.cacher, cache.KeyDisplayName(uid), lookupTTL, func() (string, error) {
		var user models.User
		err := d.db.WithContext(ctx).Where("id = ?", uid).First(&user).Error
		if err != nil {
			if database.IsRecordNotFoundErr(err) {
				return "", nil
			}
			return "", err
		}
		return user.DisplayName, nil
	})
	if err != nil || name == "" {
		return uid
	}
	return name
}
