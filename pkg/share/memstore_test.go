package share

import (
	"context"
	"testing"

	"github.com/kevgathuku/server/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRows(t *testing.T, s *MemoryStore) []int64 {
	t.Helper()
	ctx := context.Background()
	var ids []int64
	for _, row := range []*models.Share{
		{ItemType: "file", ItemSource: "101", ShareType: models.ShareTypeUser, ShareWith: "bob", Owner: "alice"},
		{ItemType: "file", ItemSource: "101", ShareType: models.ShareTypeGroup, ShareWith: "devs", Owner: "alice"},
		{ItemType: "folder", ItemSource: "200", ShareType: models.ShareTypeLink, Owner: "alice", Token: "tok123"},
	} {
		id, err := s.Insert(ctx, row)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestMemoryStoreFindFilters(t *testing.T) {
	s := NewMemoryStore()
	ids := seedRows(t, s)
	ctx := context.Background()

	rows, err := s.Find(ctx, Filter{ItemTypes: []string{"file"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	bob := "bob"
	rows, err = s.Find(ctx, Filter{ShareWith: &bob})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ids[0], rows[0].ID)

	rows, err = s.Find(ctx, Filter{ShareWithAny: []string{"bob", "devs"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = s.Find(ctx, Filter{Descending: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ids[2], rows[0].ID)
}

func TestMemoryStoreByToken(t *testing.T) {
	s := NewMemoryStore()
	seedRows(t, s)
	ctx := context.Background()

	row, err := s.ByToken(ctx, "tok123")
	require.NoError(t, err)
	assert.Equal(t, "200", row.ItemSource)

	_, err = s.ByToken(ctx, "missing")
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestMemoryStoreClonesRows(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Insert(ctx, &models.Share{ItemType: "file", ItemSource: "101"})
	require.NoError(t, err)

	row, err := s.ByID(ctx, id)
	require.NoError(t, err)
	row.ItemSource = "mutated"

	again, err := s.ByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "101", again.ItemSource)
}

func TestMemoryStoreDeleteCascading(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rootID, err := s.Insert(ctx, &models.Share{ItemType: "file", ItemSource: "101"})
	require.NoError(t, err)
	childID, err := s.Insert(ctx, &models.Share{ItemType: "file", ItemSource: "101", Parent: &rootID})
	require.NoError(t, err)
	grandID, err := s.Insert(ctx, &models.Share{ItemType: "file", ItemSource: "101", Parent: &childID})
	require.NoError(t, err)
	otherID, err := s.Insert(ctx, &models.Share{ItemType: "file", ItemSource: "102"})
	require.NoError(t, err)

	deleted, err := s.DeleteCascading(ctx, rootID)
	require.NoError(t, err)
	require.Len(t, deleted, 3)
	assert.Equal(t, rootID, deleted[0].ID)

	for _, id := range []int64{rootID, childID, grandID} {
		_, err := s.ByID(ctx, id)
		assert.ErrorIs(t, err, ErrShareNotFound)
	}
	_, err = s.ByID(ctx, otherID)
	assert.NoError(t, err)

	_, err = s.DeleteCascading(ctx, rootID)
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestMemoryStoreUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Insert(ctx, &models.Share{ItemType: "file", ItemSource: "101"})
	require.NoError(t, err)

	require.NoError(t, s.UpdatePermissions(ctx, id, models.PermissionAll))
	require.NoError(t, s.UpdateMailStatus(ctx, id, true))
	parent := int64(42)
	require.NoError(t, s.UpdateParent(ctx, id, &parent))

	row, err := s.ByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionAll, row.Permissions)
	assert.True(t, row.MailSend)
	require.NotNil(t, row.Parent)
	assert.Equal(t, parent, *row.Parent)

	assert.ErrorIs(t, s.UpdatePermissions(ctx, 999, 0), ErrShareNotFound)
}
