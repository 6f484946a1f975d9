package share

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kevgathuku/server/pkg/models"
)

// MemoryStore is an in-process Store used by tests and single-node
// deployments without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*models.Share
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		rows:   make(map[int64]*models.Share),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Insert(_ context.Context, row *models.Share) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row.ID = s.nextID
	s.nextID++
	s.rows[row.ID] = row.Clone()
	return row.ID, nil
}

func (s *MemoryStore) ByID(_ context.Context, id int64) (*models.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, ErrShareNotFound
	}
	return row.Clone(), nil
}

func (s *MemoryStore) ByToken(_ context.Context, token string) (*models.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.Token != "" && row.Token == token {
			return row.Clone(), nil
		}
	}
	return nil, ErrShareNotFound
}

func (s *MemoryStore) Find(_ context.Context, f Filter) ([]*models.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Share
	for _, row := range s.rows {
		if matches(row, f) {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Descending {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(row *models.Share, f Filter) bool {
	if len(f.ItemTypes) > 0 && !containsString(f.ItemTypes, row.ItemType) {
		return false
	}
	if f.ItemSource != "" && row.ItemSource != f.ItemSource {
		return false
	}
	if f.FileSource != nil && (row.FileSource == nil || *row.FileSource != *f.FileSource) {
		return false
	}
	if len(f.ShareTypes) > 0 {
		found := false
		for _, t := range f.ShareTypes {
			if row.ShareType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ShareWith != nil && row.ShareWith != *f.ShareWith {
		return false
	}
	if len(f.ShareWithAny) > 0 && !containsString(f.ShareWithAny, row.ShareWith) {
		return false
	}
	if f.Owner != "" && row.Owner != f.Owner {
		return false
	}
	if f.Parent != nil && (row.Parent == nil || *row.Parent != *f.Parent) {
		return false
	}
	if f.Token != "" && row.Token != f.Token {
		return false
	}
	return true
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (s *MemoryStore) UpdatePermissions(_ context.Context, id int64, perms models.Permission) error {
	return s.update(id, func(row *models.Share) {
		row.Permissions = perms
	})
}

func (s *MemoryStore) UpdateExpiration(_ context.Context, id int64, expiration *time.Time) error {
	return s.update(id, func(row *models.Share) {
		if expiration == nil {
			row.Expiration = nil
			return
		}
		v := *expiration
		row.Expiration = &v
	})
}

func (s *MemoryStore) UpdateMailStatus(_ context.Context, id int64, sent bool) error {
	return s.update(id, func(row *models.Share) {
		row.MailSend = sent
	})
}

func (s *MemoryStore) UpdateParent(_ context.Context, id int64, parent *int64) error {
	return s.update(id, func(row *models.Share) {
		if parent == nil {
			row.Parent = nil
			return
		}
		v := *parent
		row.Parent = &v
	})
}

func (s *MemoryStore) update(id int64, fn func(*models.Share)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ErrShareNotFound
	}
	fn(row)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *MemoryStore) DeleteCascading(_ context.Context, id int64) ([]*models.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.rows[id]
	if !ok {
		return nil, ErrShareNotFound
	}
	deleted := []*models.Share{root.Clone()}
	delete(s.rows, id)

	// Children first by id for a stable event payload.
	frontier := []int64{id}
	for len(frontier) > 0 {
		parent := frontier[0]
		frontier = frontier[1:]

		var childIDs []int64
		for cid, row := range s.rows {
			if row.Parent != nil && *row.Parent == parent {
				childIDs = append(childIDs, cid)
			}
		}
		sort.Slice(childIDs, func(i, j int) bool { return childIDs[i] < childIDs[j] })
		for _, cid := range childIDs {
			deleted = append(deleted, s.rows[cid].Clone())
			delete(s.rows, cid)
			frontier = append(frontier, cid)
		}
	}
	return deleted, nil
}
