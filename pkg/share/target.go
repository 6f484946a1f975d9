package share

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/kevgathuku/server/pkg/models"
)

// Allocator produces collision-free, recipient-scoped display targets.
type Allocator struct {
	store Store
	dir   Directory
}

func NewAllocator(store Store, dir Directory) *Allocator {
	return &Allocator{store: store, dir: dir}
}

// AllocateParams describes one target allocation.
type AllocateParams struct {
	ItemType  string
	Source    string
	ShareType models.ShareType
	// Recipient is the user or group whose share list the target must be
	// unique in.
	Recipient string
	Owner     string
	// Suggested is the caller-suggested name; the item's own display
	// name when empty.
	Suggested string
	// PathLike suffixes collisions before the file extension.
	PathLike bool
	// Parent scopes the idempotency probe to children of an existing
	// share row.
	Parent *int64
	// Exclude reserves additional names beyond those already persisted.
	Exclude []string
}

// Allocate returns the display target for the given recipient. With no
// collision the suggested name is returned unchanged; collisions get a
// " (2)", " (3)"… suffix. Re-running for an already persisted child
// returns the persisted target.
func (a *Allocator) Allocate(ctx context.Context, p AllocateParams) (string, error) {
	if p.Suggested == "" {
		return "", fmt.Errorf("allocate target: no suggested name for %s %q", p.ItemType, p.Source)
	}

	// Idempotency: an existing row to this exact recipient for this
	// source keeps its target.
	existing, err := a.store.Find(ctx, Filter{
		ItemTypes:  []string{p.ItemType},
		ItemSource: p.Source,
		ShareWith:  &p.Recipient,
		Parent:     p.Parent,
		Limit:      1,
		Descending: true,
	})
	if err != nil {
		return "", err
	}
	if len(existing) == 1 && existing[0].ItemTarget != "" {
		if p.PathLike && existing[0].FileTarget != "" {
			return existing[0].FileTarget, nil
		}
		return existing[0].ItemTarget, nil
	}

	taken, err := a.takenTargets(ctx, p)
	if err != nil {
		return "", err
	}
	for _, name := range p.Exclude {
		taken[name] = true
	}

	target := p.Suggested
	for i := 2; taken[target]; i++ {
		target = suffixed(p.Suggested, i, p.PathLike)
	}
	return target, nil
}

func (a *Allocator) takenTargets(ctx context.Context, p AllocateParams) (map[string]bool, error) {
	recipients := []string{p.Recipient}
	if p.ShareType == models.ShareTypeUser || p.ShareType == models.ShareTypeGroupUserUnique {
		groups, err := a.dir.UserGroups(ctx, p.Recipient)
		if err == nil {
			recipients = append(recipients, groups...)
		}
	}

	rows, err := a.store.Find(ctx, Filter{
		ItemTypes:    []string{p.ItemType},
		ShareWithAny: recipients,
	})
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(rows))
	for _, row := range rows {
		// The same source keeps its own target reusable.
		if row.ItemSource == p.Source {
			continue
		}
		if row.ItemTarget != "" {
			taken[row.ItemTarget] = true
		}
		if row.FileTarget != "" {
			taken[row.FileTarget] = true
		}
	}
	return taken, nil
}

// suffixed inserts the counter before the extension for path-like names:
// "doc.txt" -> "doc (2).txt"; plain names append: "album" -> "album (2)".
func suffixed(name string, i int, pathLike bool) string {
	if !pathLike {
		return fmt.Sprintf("%s (%d)", name, i)
	}
	dir, base := path.Split(name)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s%s (%d)%s", dir, stem, i, ext)
}
