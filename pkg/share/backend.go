package share

import (
	"context"

	"github.com/kevgathuku/server/pkg/models"
)

// Format selects how the query path renders its result set.
type Format int

const (
	// FormatNone returns the raw deduplicated rows.
	FormatNone Format = -1
	// FormatStatuses returns a target keyed {is-link, path} projection
	// restricted to link shares the querying session initiated.
	FormatStatuses Format = -2
	// FormatSources returns rows keyed by item source.
	FormatSources Format = -3
)

// Backend is the pluggable capability object registered per item type.
type Backend interface {
	// ItemType names the logical kind of thing this backend serves.
	ItemType() string

	// IsValidSource reports whether source exists for owner.
	IsValidSource(ctx context.Context, source, owner string) bool

	// DisplayName returns the item's own name, used as the target
	// suggestion when the caller supplies none.
	DisplayName(ctx context.Context, source, owner string) (string, error)

	// IsShareTypeAllowed reports whether this item type may be shared
	// with the given share type.
	IsShareTypeAllowed(t models.ShareType) bool

	// FormatItems renders raw rows into a caller-facing representation
	// for backend-specific format codes. The engine handles the generic
	// codes itself and only delegates positive codes.
	FormatItems(ctx context.Context, rows []*models.Share, format Format) (any, error)
}

// FileDependent is implemented by backends whose items live in the file
// tree. Their shares mirror item source/target in file-cache terms.
type FileDependent interface {
	Backend

	// FilePath resolves source to a real, sharable owner-relative path.
	FilePath(ctx context.Context, source, owner string) (string, error)
}

// Child is one member of a collection item.
type Child struct {
	Source string
	// File is the path suffix beyond the collection root, set for
	// file-dependent child types.
	File string
}

// Collection is implemented by backends whose item type aggregates child
// items of another registered type.
type Collection interface {
	Backend

	// Children enumerates the child sources of source.
	Children(ctx context.Context, source string) ([]Child, error)

	// Parents lists collection sources containing source, scoped to
	// shares visible between recipient and owner when both are set.
	Parents(ctx context.Context, source, recipient, owner string) ([]string, error)
}
