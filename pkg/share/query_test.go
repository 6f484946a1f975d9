package share

import (
	"context"
	"testing"
	"time"

	"github.com/kevgathuku/server/pkg/models"
	"github.com/stretchr/testify/suite"
)

type QuerySuite struct {
	suite.Suite
	ctx context.Context
}

func TestQuerySuite(t *testing.T) {
	suite.Run(t, new(QuerySuite))
}

func (s *QuerySuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *QuerySuite) seeded() *fixture {
	f := newFixture()
	f.dir.addUser("alice", "Alice").addUser("bob", "Bob").addUser("carol", "Carol")
	f.dir.addGroup("devs", "alice", "bob", "carol")
	f.seedFile("alice", "101", "doc.txt", "/docs/doc.txt", 101)
	f.seedFolder("alice", "200", "photos", "/photos", 200)
	return f
}

func (s *QuerySuite) TestDirectAndGroupPathsMergeWithPermissionUnion() {
	f := s.seeded()
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeUser, ShareWith: "bob",
		Owner: "alice", Permissions: models.PermissionRead,
	})
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeGroup, ShareWith: "devs",
		Owner: "alice", Permissions: models.PermissionRead | models.PermissionUpdate,
	})

	items, err := f.engine.GetItemsSharedWith(s.ctx, "bob", "file")
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(models.PermissionRead|models.PermissionUpdate, items[0].Permissions)
	s.Equal("/doc.txt", items[0].Path)
}

func (s *QuerySuite) TestShareBitHiddenWhenResharingDisabled() {
	f := s.seeded()
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeUser, ShareWith: "bob",
		Owner: "alice", Permissions: models.PermissionRead | models.PermissionShare,
	})

	f.cfg.AllowResharing = false
	items, err := f.engine.GetItemsSharedWith(s.ctx, "bob", "file")
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(models.PermissionRead, items[0].Permissions)
}

func (s *QuerySuite) TestUnreachableStorageSkipped() {
	f := s.seeded()
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeUser, ShareWith: "bob",
		Owner: "alice", Permissions: models.PermissionRead,
	})

	f.mounts.unreachable[101] = true
	items, err := f.engine.GetItemsSharedWith(s.ctx, "bob", "file")
	s.Require().NoError(err)
	s.Empty(items)
}

func (s *QuerySuite) TestCollectionShareExpandsToChildren() {
	f := s.seeded()
	f.folders.addChild("200", Child{Source: "101", File: "doc.txt"})
	f.mustShare(ShareRequest{
		ItemType: "folder", ItemSource: "200",
		ShareType: models.ShareTypeUser, ShareWith: "bob",
		Owner: "alice", Permissions: models.PermissionRead,
	})

	items, err := f.engine.GetItemsSharedWith(s.ctx, "bob", "file")
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("file", items[0].ItemType)
	s.Equal("101", items[0].ItemSource)
	s.Equal("/photos/doc.txt", items[0].FileTarget)

	item, err := f.engine.GetItemSharedWithBySource(s.ctx, "bob", "file", "101")
	s.Require().NoError(err)
	s.Equal("/photos/doc.txt", item.FileTarget)
}

func (s *QuerySuite) TestLookupByTarget() {
	f := s.seeded()
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeUser, ShareWith: "bob",
		Owner: "alice", Permissions: models.PermissionRead,
	})

	item, err := f.engine.GetItemSharedWith(s.ctx, "bob", "file", "/doc.txt")
	s.Require().NoError(err)
	s.Equal("101", item.ItemSource)

	_, err = f.engine.GetItemSharedWith(s.ctx, "bob", "file", "/nope.txt")
	s.ErrorIs(err, ErrShareNotFound)
}

func (s *QuerySuite) TestDisplayNamesResolved() {
	f := s.seeded()
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeUser, ShareWith: "bob",
		Owner: "alice", Permissions: models.PermissionRead,
	})

	items, err := f.engine.GetItemsShared(s.ctx, "alice", "file")
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("Alice", items[0].DisplayOwner)
	s.Equal("Bob", items[0].DisplayShareWith)
}

func (s *QuerySuite) TestShareStatuses() {
	f := s.seeded()
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeUser, ShareWith: "bob",
		Owner: "alice", Permissions: models.PermissionRead,
	})
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeLink,
		Owner: "alice", Permissions: models.PermissionRead,
	})

	statuses, err := f.engine.ShareStatuses(s.ctx, "alice", "file")
	s.Require().NoError(err)
	s.Require().Contains(statuses, "101")
	s.True(statuses["101"].IsLink)
	s.Equal("/doc.txt", statuses["101"].Path)
}

func (s *QuerySuite) TestOwnerViewKeepsDistinctRecipients() {
	f := s.seeded()
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeUser, ShareWith: "bob",
		Owner: "alice", Permissions: models.PermissionRead,
	})
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeUser, ShareWith: "carol",
		Owner: "alice", Permissions: models.PermissionRead,
	})

	items, err := f.engine.GetItemShared(s.ctx, "alice", "file", "101")
	s.Require().NoError(err)
	s.Len(items, 2)
}

func (s *QuerySuite) TestExpiredLinkDroppedFromOwnerList() {
	f := s.seeded()
	f.mustShare(ShareRequest{
		ItemType: "file", ItemSource: "101",
		ShareType: models.ShareTypeUser, ShareWith: "bob",
		Owner: "alice", Permissions: models.PermissionRead,
	})
	expired := f.now.Add(-time.Hour)
	id, err := f.store.Insert(s.ctx, &models.Share{
		ItemType: "file", ItemSource: "101", ItemTarget: "doc.txt",
		ShareType: models.ShareTypeLink, Owner: "alice",
		Permissions: models.PermissionRead,
		ShareTime:   f.now.AddDate(0, 0, -10),
		Token:       "staletoken12345",
		Expiration:  &expired,
	})
	s.Require().NoError(err)

	items, err := f.engine.GetItemsShared(s.ctx, "alice", "file")
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(models.ShareTypeUser, items[0].Share.ShareType)

	_, err = f.store.ByID(s.ctx, id)
	s.ErrorIs(err, ErrShareNotFound)
}
