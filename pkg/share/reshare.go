package share

import (
	"context"
	"fmt"
	"time"

	"github.com/kevgathuku/server/pkg/models"
)

// reshareInfo is the outcome of the reshare legality check: the parent
// chain link, the inherited expiration ceiling and the target
// suggestions children should display consistently.
type reshareInfo struct {
	// Parent is the upstream share id; nil for a root share.
	Parent              *int64
	UpstreamPermissions models.Permission
	// Expiration is the tighter of the requested and upstream dates.
	Expiration *time.Time
	// Suggested targets propagated from the upstream share when the new
	// share covers the exact same source.
	SuggestedItemTarget string
	SuggestedFileTarget string
	// FileSource propagates the upstream's resolved file identity.
	FileSource *int64
}

// checkReshare decides whether the acting user is sharing somebody
// else's share. A root share only needs the backend to recognize the
// source; a reshare additionally needs resharing enabled, SHARE held
// upstream and a permission subset.
func (e *Engine) checkReshare(ctx context.Context, sc *shareContext) (*reshareInfo, error) {
	req := sc.req

	upstream, err := e.upstreamShare(ctx, req.ItemType, req.ItemSource, req.Owner)
	if err != nil {
		return nil, err
	}

	if upstream == nil {
		// Root share: the source must be genuine.
		if !sc.backend.IsValidSource(ctx, req.ItemSource, req.Owner) {
			return nil, fmt.Errorf("%w: %s %q for owner %s",
				ErrSourceNotFound, req.ItemType, req.ItemSource, req.Owner)
		}
		return &reshareInfo{}, nil
	}

	if !e.cfg.AllowResharing {
		return nil, violationf("resharing is not allowed")
	}
	if !upstream.Permissions.Contains(models.PermissionShare) {
		return nil, violationf("resharing is not allowed for %s %q", req.ItemType, req.ItemSource)
	}
	if sc.perms.Exceeds(upstream.Permissions) {
		return nil, exceededf("requested permissions %d exceed granted permissions %d",
			sc.perms, upstream.Permissions)
	}

	// Sharing back to the chain's original owner would cycle.
	if req.ShareType == models.ShareTypeUser {
		origin, err := e.chainOrigin(ctx, upstream)
		if err != nil {
			return nil, err
		}
		if req.ShareWith == origin {
			return nil, violationf("cannot share %q back to its original owner %s", req.ItemSource, origin)
		}
	}

	info := &reshareInfo{
		Parent:              &upstream.ID,
		UpstreamPermissions: upstream.Permissions,
		Expiration:          tighterExpiration(req.Expiration, upstream.Expiration),
	}
	if upstream.ItemSource == req.ItemSource {
		info.SuggestedItemTarget = upstream.ItemTarget
		info.SuggestedFileTarget = upstream.FileTarget
		info.FileSource = upstream.FileSource
	}
	return info, nil
}

// upstreamShare finds a share of the source granted to user by somebody
// else, preferring the most specific (latest) row.
func (e *Engine) upstreamShare(ctx context.Context, itemType, itemSource, user string) (*models.Share, error) {
	recipients := append([]string{user}, e.userGroups(ctx, user)...)
	rows, err := e.store.Find(ctx, Filter{
		ItemTypes:  []string{itemType},
		ItemSource: itemSource,
		ShareTypes: []models.ShareType{
			models.ShareTypeUser,
			models.ShareTypeGroup,
			models.ShareTypeGroupUserUnique,
		},
		ShareWithAny: recipients,
		Descending:   true,
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Owner != user {
			return row, nil
		}
	}
	return nil, nil
}

// chainOrigin walks the parent chain to the root share's owner.
func (e *Engine) chainOrigin(ctx context.Context, row *models.Share) (string, error) {
	for row.Parent != nil {
		parent, err := e.store.ByID(ctx, *row.Parent)
		if err != nil {
			return "", err
		}
		row = parent
	}
	return row.Owner, nil
}

func tighterExpiration(requested, upstream *time.Time) *time.Time {
	switch {
	case requested == nil:
		return upstream
	case upstream == nil:
		return requested
	case upstream.Before(*requested):
		return upstream
	default:
		return requested
	}
}
