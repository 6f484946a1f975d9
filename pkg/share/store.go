package share

import (
	"context"
	"time"

	"github.com/kevgathuku/server/pkg/models"
)

// Filter narrows a share row search. Zero values mean "any"; pointer
// fields distinguish "any" from an explicit empty match.
type Filter struct {
	ItemTypes  []string
	ItemSource string
	FileSource *int64
	ShareTypes []models.ShareType
	// ShareWith matches the exact recipient. Link shares have an empty
	// recipient, hence the pointer.
	ShareWith *string
	// ShareWithAny matches any of the given recipients, typically a user
	// plus their group ids.
	ShareWithAny []string
	Owner        string
	Parent       *int64
	Token        string
	// Limit caps the result count; 0 means unbounded.
	Limit int
	// Descending orders by id descending. Used for the grouped-target
	// probe with Limit 1 so a more specific unique-target override,
	// inserted after its group parent, wins over the group row.
	Descending bool
}

// Store is CRUD over the share relation. It owns the relational shape
// and carries no sharing policy.
type Store interface {
	Insert(ctx context.Context, row *models.Share) (int64, error)
	ByID(ctx context.Context, id int64) (*models.Share, error)
	ByToken(ctx context.Context, token string) (*models.Share, error)
	Find(ctx context.Context, f Filter) ([]*models.Share, error)

	UpdatePermissions(ctx context.Context, id int64, perms models.Permission) error
	UpdateExpiration(ctx context.Context, id int64, expiration *time.Time) error
	UpdateMailStatus(ctx context.Context, id int64, sent bool) error
	UpdateParent(ctx context.Context, id int64, parent *int64) error

	Delete(ctx context.Context, id int64) error
	// DeleteCascading removes the row and, recursively, every row whose
	// parent chain reaches it. The deleted set is returned for event
	// reporting, parent first.
	DeleteCascading(ctx context.Context, id int64) ([]*models.Share, error)
}
