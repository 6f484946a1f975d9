package services

import (
	"context"
	"testing"
	"time"

	"github.com/kevgathuku/server/internal/cache"
	"github.com/kevgathuku/server/internal/config"
	"github.com/kevgathuku/server/internal/events"
	"github.com/kevgathuku/server/pkg/models"
	"github.com/kevgathuku/server/pkg/schemas"
	"github.com/kevgathuku/server/pkg/share"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type staticDirectory struct{}

func (staticDirectory) UserExists(_ context.Context, uid string) bool {
	return uid == "alice" || uid == "bob"
}
func (staticDirectory) GroupExists(context.Context, string) bool            { return false }
func (staticDirectory) UserGroups(context.Context, string) ([]string, error) { return nil, nil }
func (staticDirectory) GroupMembers(context.Context, string) ([]string, error) {
	return nil, nil
}
func (staticDirectory) DisplayName(_ context.Context, uid string) string { return uid }

type staticMounts struct{}

func (staticMounts) FilePath(_ context.Context, _ string, src int64) (string, error) {
	return "/docs/doc.txt", nil
}
func (staticMounts) FileSource(context.Context, string, string) (int64, error) { return 101, nil }
func (staticMounts) Reachable(context.Context, string, int64) bool             { return true }
func (staticMounts) ContainsSharedMount(context.Context, string, string) (bool, error) {
	return false, nil
}

type staticBackend struct{}

func (staticBackend) ItemType() string                                  { return "file" }
func (staticBackend) IsValidSource(context.Context, string, string) bool { return true }
func (staticBackend) DisplayName(context.Context, string, string) (string, error) {
	return "doc.txt", nil
}
func (staticBackend) IsShareTypeAllowed(models.ShareType) bool { return true }
func (staticBackend) FormatItems(_ context.Context, rows []*models.Share, _ share.Format) (any, error) {
	return rows, nil
}
func (staticBackend) FilePath(context.Context, string, string) (string, error) {
	return "/docs/doc.txt", nil
}

type ShareServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *share.MemoryStore
	service *ShareService
}

func TestShareServiceSuite(t *testing.T) {
	suite.Run(t, new(ShareServiceSuite))
}

func (s *ShareServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = share.NewMemoryStore()

	registry := share.NewRegistry()
	s.Require().NoError(registry.Register("file", staticBackend{}))

	engine := share.NewEngine(share.EngineParams{
		Store:     s.store,
		Registry:  registry,
		Directory: staticDirectory{},
		Mounts:    staticMounts{},
		Bus:       events.NewBus(zap.NewNop()),
		Notifier: share.NewNotifier(&config.FederationConfig{
			ConnectTimeout: time.Second,
		}, zap.NewNop()),
		Config: &config.ShareConfig{
			Enabled:           true,
			AllowLinks:        true,
			AllowResharing:    true,
			ExpireAfterDays:   7,
			LinkTokenLength:   15,
			RemoteTokenLength: 15,
		},
	})
	s.service = NewShareService(engine, cache.NewMemoryCache(1024*1024), zap.NewNop())
}

func (s *ShareServiceSuite) createLink(password *string) *schemas.ShareCreated {
	res, err := s.service.Create(s.ctx, "alice", &schemas.ShareCreate{
		ItemType:    "file",
		ItemSource:  "101",
		ShareType:   int(models.ShareTypeLink),
		Permissions: uint(models.PermissionRead),
		Password:    password,
	})
	s.Require().NoError(err)
	return res
}

func (s *ShareServiceSuite) TestCreateAndGetByToken() {
	res := s.createLink(nil)
	s.Require().NotEmpty(res.Token)

	got, err := s.service.GetByToken(s.ctx, res.Token)
	s.Require().NoError(err)
	s.Equal("101", got.ItemSource)
	s.Equal("alice", got.Owner)
	s.False(got.Protected)

	// Second lookup is served from cache.
	again, err := s.service.GetByToken(s.ctx, res.Token)
	s.Require().NoError(err)
	s.Equal(got.Id, again.Id)
}

func (s *ShareServiceSuite) TestUnlock() {
	pass := "hunter2"
	res := s.createLink(&pass)

	s.NoError(s.service.Unlock(s.ctx, res.Token, "hunter2"))
	s.ErrorIs(s.service.Unlock(s.ctx, res.Token, "wrong"), ErrInvalidPassword)
}

func (s *ShareServiceSuite) TestUnlockUnprotected() {
	res := s.createLink(nil)
	s.ErrorIs(s.service.Unlock(s.ctx, res.Token, "whatever"), ErrNotProtected)
}

func (s *ShareServiceSuite) TestDeleteInvalidatesTokenCache() {
	res := s.createLink(nil)

	_, err := s.service.GetByToken(s.ctx, res.Token)
	s.Require().NoError(err)

	err = s.service.Delete(s.ctx, "alice", &schemas.ShareDelete{
		ItemType:   "file",
		ItemSource: "101",
		ShareType:  int(models.ShareTypeLink),
	})
	s.Require().NoError(err)

	_, err = s.service.GetByToken(s.ctx, res.Token)
	s.ErrorIs(err, share.ErrShareNotFound)
}

func (s *ShareServiceSuite) TestUserShareRoundTrip() {
	_, err := s.service.Create(s.ctx, "alice", &schemas.ShareCreate{
		ItemType:    "file",
		ItemSource:  "101",
		ShareType:   int(models.ShareTypeUser),
		ShareWith:   "bob",
		Permissions: uint(models.PermissionRead),
	})
	s.Require().NoError(err)

	mine, err := s.service.ListShared(s.ctx, "alice", "file")
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal("bob", mine[0].ShareWith)

	theirs, err := s.service.ListSharedWithMe(s.ctx, "bob", "file")
	s.Require().NoError(err)
	s.Require().Len(theirs, 1)
	s.Equal("alice", theirs[0].Owner)
	s.Equal(uint(models.PermissionRead), theirs[0].Permissions)
}
