// Package services is the HTTP facing layer over the share engine:
// schema conversion, token lookup caching and link password unlocking.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/kevgathuku/server/internal/cache"
	"github.com/kevgathuku/server/pkg/mapper"
	"github.com/kevgathuku/server/pkg/models"
	"github.com/kevgathuku/server/pkg/schemas"
	"github.com/kevgathuku/server/pkg/share"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrNotProtected    = errors.New("share has no password")
)

const tokenCacheTTL = 5 * time.Minute

type ShareService struct {
	engine *share.Engine
	cacher cache.Cacher
	logger *zap.Logger
}

func NewShareService(engine *share.Engine, cacher cache.Cacher, logger *zap.Logger) *ShareService {
	return &ShareService{
		engine: engine,
		cacher: cacher,
		logger: logger.Named("shares"),
	}
}

func (s *ShareService) Create(ctx context.Context, owner string, req *schemas.ShareCreate) (*schemas.ShareCreated, error) {
	res, err := s.engine.ShareItem(ctx, share.ShareRequest{
		ItemType:    req.ItemType,
		ItemSource:  req.ItemSource,
		ShareType:   models.ShareType(req.ShareType),
		ShareWith:   req.ShareWith,
		Owner:       owner,
		Permissions: models.Permission(req.Permissions),
		Name:        req.Name,
		Expiration:  req.ExpireDate,
		Password:    req.Password,
	})
	if err != nil {
		return nil, err
	}
	if res.Token != "" {
		// A recreated link share may shadow a stale cached row.
		s.cacher.Delete(cache.KeyShareToken(res.Token))
	}
	return &schemas.ShareCreated{
		Ids:            res.IDs,
		Token:          res.Token,
		RemoteAccepted: res.RemoteAccepted,
	}, nil
}

func (s *ShareService) Delete(ctx context.Context, owner string, req *schemas.ShareDelete) error {
	s.invalidateTokens(ctx, owner, req.ItemType, req.ItemSource)
	return s.engine.Unshare(ctx, owner, req.ItemType, req.ItemSource,
		models.ShareType(req.ShareType), req.ShareWith)
}

// DeleteFromSelf removes a received share from the caller's own view.
func (s *ShareService) DeleteFromSelf(ctx context.Context, user, itemType, itemTarget string) error {
	return s.engine.UnshareFromSelf(ctx, user, itemType, itemTarget)
}

func (s *ShareService) ListShared(ctx context.Context, owner, itemType string) ([]*schemas.ShareOut, error) {
	items, err := s.engine.GetItemsShared(ctx, owner, itemType)
	if err != nil {
		return nil, err
	}
	return mapper.ToShareOuts(items), nil
}

func (s *ShareService) ListSharedWithMe(ctx context.Context, user, itemType string) ([]*schemas.ShareOut, error) {
	items, err := s.engine.GetItemsSharedWith(ctx, user, itemType)
	if err != nil {
		return nil, err
	}
	return mapper.ToShareOuts(items), nil
}

func (s *ShareService) Statuses(ctx context.Context, owner, itemType string) (map[string]share.Status, error) {
	return s.engine.ShareStatuses(ctx, owner, itemType)
}

// GetByToken resolves a link or federated share by token. The public
// endpoint is hit by unauthenticated clients, so results sit behind the
// cache; lazy expiry still runs on every cache miss.
func (s *ShareService) GetByToken(ctx context.Context, token string) (*schemas.TokenShare, error) {
	return cache.Fetch(s.cacher, cache.KeyShareToken(token), tokenCacheTTL,
		func() (*schemas.TokenShare, error) {
			row, err := s.engine.GetShareByToken(ctx, token)
			if err != nil {
				return nil, err
			}
			return mapper.ToTokenShare(row), nil
		})
}

// Unlock verifies the password of a protected link share. Always reads
// through to the store; password checks must not race cached state.
func (s *ShareService) Unlock(ctx context.Context, token, password string) error {
	row, err := s.engine.GetShareByToken(ctx, token)
	if err != nil {
		return err
	}
	if row.Password == nil {
		return ErrNotProtected
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*row.Password), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

func (s *ShareService) SetPermissions(ctx context.Context, owner string, req *schemas.SharePermissionsUpdate) error {
	return s.engine.SetPermissions(ctx, owner, req.ItemType, req.ItemSource,
		models.ShareType(req.ShareType), req.ShareWith, models.Permission(req.Permissions))
}

func (s *ShareService) SetExpiration(ctx context.Context, owner string, req *schemas.ShareExpirationUpdate) error {
	s.invalidateTokens(ctx, owner, req.ItemType, req.ItemSource)
	return s.engine.SetExpirationDate(ctx, owner, req.ItemType, req.ItemSource, req.ExpireDate)
}

func (s *ShareService) SetMailStatus(ctx context.Context, owner string, req *schemas.ShareMailUpdate) error {
	return s.engine.SetSendMailStatus(ctx, owner, req.ItemType, req.ItemSource,
		models.ShareType(req.ShareType), req.ShareWith, req.Sent)
}

// invalidateTokens drops cached token lookups for the item's link and
// remote shares before a mutation makes them stale.
func (s *ShareService) invalidateTokens(ctx context.Context, owner, itemType, itemSource string) {
	items, err := s.engine.GetItemShared(ctx, owner, itemType, itemSource)
	if err != nil {
		return
	}
	var keys []string
	for _, item := range items {
		if item.Token != "" {
			keys = append(keys, cache.KeyShareToken(item.Token))
		}
	}
	if len(keys) > 0 {
		if err := s.cacher.Delete(keys...); err != nil {
			s.logger.Warn("token cache invalidation failed", zap.Error(err))
		}
	}
}
