package share

import (
	"context"
	"errors"
	"time"

	"github.com/kevgathuku/server/internal/database"
	"github.com/kevgathuku/server/pkg/models"
	"gorm.io/gorm"
)

// GormStore is the production Store backed by the relational share table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) Insert(ctx context.Context, row *models.Share) (int64, error) {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if database.IsKeyConflictErr(err) {
			return 0, database.ErrKeyConflict
		}
		return 0, err
	}
	return row.ID, nil
}

func (s *GormStore) ByID(ctx context.Context, id int64) (*models.Share, error) {
	var row models.Share
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (s *GormStore) ByToken(ctx context.Context, token string) (*models.Share, error) {
	var row models.Share
	if err := s.db.WithContext(ctx).First(&row, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (s *GormStore) Find(ctx context.Context, f Filter) ([]*models.Share, error) {
	q := s.db.WithContext(ctx).Model(&models.Share{})

	if len(f.ItemTypes) > 0 {
		q = q.Where("item_type IN ?", f.ItemTypes)
	}
	if f.ItemSource != "" {
		q = q.Where("item_source = ?", f.ItemSource)
	}
	if f.FileSource != nil {
		q = q.Where("file_source = ?", *f.FileSource)
	}
	if len(f.ShareTypes) > 0 {
		q = q.Where("share_type IN ?", f.ShareTypes)
	}
	if f.ShareWith != nil {
		q = q.Where("share_with = ?", *f.ShareWith)
	}
	if len(f.ShareWithAny) > 0 {
		q = q.Where("share_with IN ?", f.ShareWithAny)
	}
	if f.Owner != "" {
		q = q.Where("uid_owner = ?", f.Owner)
	}
	if f.Parent != nil {
		q = q.Where("parent = ?", *f.Parent)
	}
	if f.Token != "" {
		q = q.Where("token = ?", f.Token)
	}
	if f.Descending {
		q = q.Order("id DESC")
	} else {
		q = q.Order("id ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []*models.Share
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) UpdatePermissions(ctx context.Context, id int64, perms models.Permission) error {
	return s.updateColumn(ctx, id, "permissions", perms)
}

func (s *GormStore) UpdateExpiration(ctx context.Context, id int64, expiration *time.Time) error {
	return s.updateColumn(ctx, id, "expiration", expiration)
}

func (s *GormStore) UpdateMailStatus(ctx context.Context, id int64, sent bool) error {
	return s.updateColumn(ctx, id, "mail_send", sent)
}

func (s *GormStore) UpdateParent(ctx context.Context, id int64, parent *int64) error {
	return s.updateColumn(ctx, id, "parent", parent)
}

func (s *GormStore) updateColumn(ctx context.Context, id int64, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&models.Share{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrShareNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&models.Share{}, "id = ?", id).Error
}

func (s *GormStore) DeleteCascading(ctx context.Context, id int64) ([]*models.Share, error) {
	var deleted []*models.Share
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = deleteTree(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func deleteTree(tx *gorm.DB, id int64) ([]*models.Share, error) {
	var root models.Share
	if err := tx.First(&root, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, err
	}

	deleted := []*models.Share{&root}

	var children []*models.Share
	if err := tx.Order("id ASC").Find(&children, "parent = ?", id).Error; err != nil {
		return nil, err
	}
	for _, child := range children {
		sub, err := deleteTree(tx, child.ID)
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, sub...)
	}

	if err := tx.Delete(&models.Share{}, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return deleted, nil
}
