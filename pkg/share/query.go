package share

import (
	"context"
	"strings"

	"github.com/kevgathuku/server/pkg/models"
	"go.uber.org/zap"
)

// Item is one entry of a materialized query result: a deduplicated row
// plus resolved display information.
type Item struct {
	models.Share
	// Path is the viewer-relative display path for file-dependent items.
	Path             string
	DisplayOwner     string
	DisplayShareWith string
}

// Status is the FormatStatuses projection.
type Status struct {
	IsLink bool
	Path   string
}

// itemsQuery captures one read-path invocation.
type itemsQuery struct {
	itemType   string
	itemSource string
	itemTarget string
	shareTypes []models.ShareType
	// sharedWith selects the "user or their groups" view.
	sharedWith string
	// owner selects the "shared by owner" view.
	owner              string
	limit              int
	includeCollections bool
}

// GetItemsSharedWith returns everything of itemType shared with user,
// deduplicated and permission-merged, including items arriving through
// shared collections.
func (e *Engine) GetItemsSharedWith(ctx context.Context, user, itemType string) ([]*Item, error) {
	return e.getItems(ctx, itemsQuery{
		itemType:           itemType,
		sharedWith:         user,
		includeCollections: true,
	})
}

// GetItemSharedWith looks a received share up by its display target.
func (e *Engine) GetItemSharedWith(ctx context.Context, user, itemType, itemTarget string) (*Item, error) {
	items, err := e.getItems(ctx, itemsQuery{
		itemType:   itemType,
		itemTarget: itemTarget,
		sharedWith: user,
		limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrShareNotFound
	}
	return items[0], nil
}

// GetItemSharedWithBySource looks a received share up by the owner-side
// source, falling back to shares of collections containing the source.
func (e *Engine) GetItemSharedWithBySource(ctx context.Context, user, itemType, itemSource string) (*Item, error) {
	items, err := e.getItems(ctx, itemsQuery{
		itemType:           itemType,
		itemSource:         itemSource,
		sharedWith:         user,
		limit:              1,
		includeCollections: true,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrShareNotFound
	}
	return items[0], nil
}

// GetItemsShared returns the shares user created for itemType.
func (e *Engine) GetItemsShared(ctx context.Context, owner, itemType string) ([]*Item, error) {
	return e.getItems(ctx, itemsQuery{
		itemType: itemType,
		owner:    owner,
	})
}

// GetItemShared returns the shares user created for one source.
func (e *Engine) GetItemShared(ctx context.Context, owner, itemType, itemSource string) ([]*Item, error) {
	return e.getItems(ctx, itemsQuery{
		itemType:   itemType,
		itemSource: itemSource,
		owner:      owner,
	})
}

// GetShareByToken resolves a link or federated share by its token,
// lazily expiring it when overdue.
func (e *Engine) GetShareByToken(ctx context.Context, tok string) (*models.Share, error) {
	row, err := e.store.ByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	if e.expireItem(ctx, row) {
		return nil, ErrShareNotFound
	}
	return row, nil
}

// ShareStatuses returns the target keyed {is-link, path} projection of
// the session user's own shares.
func (e *Engine) ShareStatuses(ctx context.Context, sessionUser, itemType string) (map[string]Status, error) {
	items, err := e.getItems(ctx, itemsQuery{
		itemType: itemType,
		owner:    sessionUser,
	})
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]Status)
	for _, it := range items {
		key := it.ItemSource
		st := statuses[key]
		if it.Path != "" {
			st.Path = it.Path
		}
		if it.ShareType == models.ShareTypeLink {
			st.IsLink = true
		}
		statuses[key] = st
	}
	return statuses, nil
}

// FormatItems renders rows through the backend for app-defined format
// codes; the generic codes are handled by the typed query methods.
func (e *Engine) FormatItems(ctx context.Context, itemType string, rows []*models.Share, format Format) (any, error) {
	backend, err := e.registry.Resolve(itemType)
	if err != nil {
		return nil, err
	}
	return backend.FormatItems(ctx, rows, format)
}

// getItems builds the filtered row set and post-processes it in memory:
// reachability, group-override expansion, duplicate merging, lazy
// expiration, path rewriting and display-name resolution. Store failures
// degrade to an empty result; read paths stay resilient for display.
func (e *Engine) getItems(ctx context.Context, q itemsQuery) ([]*Item, error) {
	itemTypes := []string{q.itemType}
	if q.includeCollections {
		itemTypes = append(itemTypes, e.registry.CollectionsOf(q.itemType)...)
	}

	f := Filter{
		ItemTypes:  itemTypes,
		ItemSource: q.itemSource,
		ShareTypes: q.shareTypes,
		Owner:      q.owner,
	}
	if q.sharedWith != "" {
		f.ShareWithAny = append([]string{q.sharedWith}, e.userGroups(ctx, q.sharedWith)...)
		if len(f.ShareTypes) == 0 {
			f.ShareTypes = []models.ShareType{
				models.ShareTypeUser,
				models.ShareTypeGroup,
				models.ShareTypeGroupUserUnique,
			}
		}
	}
	if q.limit == 1 && q.itemTarget != "" {
		f.Descending = true
	}

	rows, err := e.store.Find(ctx, f)
	if err != nil {
		e.logger.Error("share query failed", zap.Error(err))
		return nil, nil
	}

	// Expanding a collection share by source needs the collection rows
	// too, which the source filter excluded.
	if q.includeCollections && q.itemSource != "" {
		extra, err := e.collectionRows(ctx, q, f)
		if err == nil {
			rows = append(rows, extra...)
		}
	}

	b := newResultBuilder(e, q)
	for _, row := range rows {
		b.add(ctx, row.Clone())
	}
	items := b.finish(ctx)

	if q.limit > 0 && len(items) > q.limit {
		items = items[:q.limit]
	}
	return items, nil
}

// collectionRows fetches shares of collection types when a by-source
// query may be answered by a shared parent collection.
func (e *Engine) collectionRows(ctx context.Context, q itemsQuery, base Filter) ([]*models.Share, error) {
	collections := e.registry.CollectionsOf(q.itemType)
	if len(collections) == 0 {
		return nil, nil
	}
	f := base
	f.ItemTypes = collections
	f.ItemSource = ""
	f.ShareTypes = nil
	if q.sharedWith != "" {
		f.ShareTypes = []models.ShareType{
			models.ShareTypeUser,
			models.ShareTypeGroup,
			models.ShareTypeGroupUserUnique,
		}
	}
	return e.store.Find(ctx, f)
}

// resultBuilder accumulates per-recipient result entries keyed by a
// stable identifier, with deduplication expressed as a pure merge over
// two candidate entries.
type resultBuilder struct {
	e *Engine
	q itemsQuery

	order   []string
	entries map[string]*Item
	// switched maps merged-away row ids to the surviving row id for
	// subsequent parent lookups.
	switched map[int64]int64
	// overridden collects group rows shadowed by a per-member unique row
	// for this viewer.
	overridden map[int64]bool
	// collection rows pending child expansion.
	pending []*models.Share
}

func newResultBuilder(e *Engine, q itemsQuery) *resultBuilder {
	return &resultBuilder{
		e:          e,
		q:          q,
		entries:    make(map[string]*Item),
		switched:   make(map[int64]int64),
		overridden: make(map[int64]bool),
	}
}

func (b *resultBuilder) add(ctx context.Context, row *models.Share) {
	e := b.e

	if b.q.sharedWith != "" && row.FileSource != nil &&
		!e.mounts.Reachable(ctx, b.q.sharedWith, *row.FileSource) {
		return
	}
	if e.expireItem(ctx, row) {
		return
	}

	if b.q.sharedWith != "" {
		switch row.ShareType {
		case models.ShareTypeGroupUserUnique:
			if row.ShareWith != b.q.sharedWith {
				return
			}
			if row.Parent != nil {
				b.overridden[*row.Parent] = true
			}
			// A zero permission override means this member was excluded
			// from the group share.
			if row.Permissions == 0 {
				return
			}
			// The override presents as the logical group share with its
			// own target and permissions.
			row.ShareType = models.ShareTypeGroup
		case models.ShareTypeGroup:
			// May be shadowed by a later unique row; resolved in finish.
		}
	}

	if row.ItemType != b.q.itemType {
		// A collection share; expanded into children in finish.
		b.pending = append(b.pending, row)
		return
	}
	if b.q.itemTarget != "" && row.ItemTarget != b.q.itemTarget && row.FileTarget != b.q.itemTarget {
		return
	}

	b.insert(ctx, b.toItem(ctx, row))
}

func (b *resultBuilder) insert(ctx context.Context, item *Item) {
	key := item.FileTarget
	if key == "" {
		key = item.ItemTarget
	}
	key = item.ItemType + "\x00" + key

	if existing, ok := b.entries[key]; ok && b.q.sharedWith != "" {
		b.entries[key] = b.merge(existing, item)
		return
	}
	if _, ok := b.entries[key]; ok {
		// Owner view keeps every distinct row; disambiguate by id.
		key = key + "\x00" + item.ShareWith
	}
	b.entries[key] = item
	b.order = append(b.order, key)
}

// merge folds two entries for the same target arriving via different
// share paths. Permissions merge with OR; when the owners differ on the
// two paths the effective share presents as a group share so resharing
// rights stay consistent; the more permissive path becomes the source of
// truth for subsequent parent lookups.
func (b *resultBuilder) merge(a, c *Item) *Item {
	winner, loser := a, c
	// Prefer the path that carries resharing rights, then the wider
	// permission set.
	switch {
	case c.Permissions.Contains(models.PermissionShare) && !a.Permissions.Contains(models.PermissionShare):
		winner, loser = c, a
	case a.Permissions.Contains(models.PermissionShare) && !c.Permissions.Contains(models.PermissionShare):
		// keep a
	case c.Permissions.Contains(a.Permissions) && c.Permissions != a.Permissions:
		winner, loser = c, a
	}

	merged := *winner
	merged.Permissions = winner.Permissions | loser.Permissions
	if winner.Owner != loser.Owner {
		merged.Share.ShareType = models.ShareTypeGroup
	}
	b.switched[loser.ID] = winner.ID
	return &merged
}

func (b *resultBuilder) finish(ctx context.Context) []*Item {
	// Drop group rows shadowed by a member override.
	for key, item := range b.entries {
		if item.Share.ShareType == models.ShareTypeGroup && b.overridden[item.ID] {
			delete(b.entries, key)
		}
	}

	b.expandPending(ctx)

	items := make([]*Item, 0, len(b.entries))
	for _, key := range b.order {
		item, ok := b.entries[key]
		if !ok {
			continue
		}
		b.finalize(ctx, item)
		items = append(items, item)
	}
	return items
}

// expandPending turns collection shares into entries for their children
// of the requested type.
func (b *resultBuilder) expandPending(ctx context.Context) {
	e := b.e
	for _, row := range b.pending {
		if b.overridden[row.ID] && row.ShareType == models.ShareTypeGroup {
			continue
		}
		backend, err := e.registry.Resolve(row.ItemType)
		if err != nil {
			continue
		}
		coll, ok := backend.(Collection)
		if !ok {
			continue
		}
		children, err := coll.Children(ctx, row.ItemSource)
		if err != nil {
			e.logger.Warn("collection expansion failed",
				zap.String("item_type", row.ItemType),
				zap.String("item_source", row.ItemSource),
				zap.Error(err))
			continue
		}
		for _, child := range children {
			if b.q.itemSource != "" && child.Source != b.q.itemSource {
				continue
			}
			childRow := row.Clone()
			childRow.ItemType = b.q.itemType
			childRow.ItemSource = child.Source
			childRow.Parent = &row.ID
			if child.File != "" && childRow.FileTarget != "" {
				childRow.FileTarget = strings.TrimSuffix(childRow.FileTarget, "/") + "/" + child.File
				childRow.ItemTarget = childRow.FileTarget
			}
			if b.q.itemTarget != "" && childRow.ItemTarget != b.q.itemTarget && childRow.FileTarget != b.q.itemTarget {
				continue
			}
			b.insert(ctx, b.toItem(ctx, childRow))
		}
	}
}

func (b *resultBuilder) toItem(ctx context.Context, row *models.Share) *Item {
	e := b.e
	item := &Item{Share: *row}

	// Resharing rights disappear from the view when resharing is off,
	// globally or for this viewer.
	if b.q.sharedWith != "" && item.Permissions.Contains(models.PermissionShare) {
		if !e.cfg.AllowResharing || e.sharingDisabledFor(ctx, b.q.sharedWith) {
			item.Permissions &^= models.PermissionShare
		}
	}
	return item
}

func (b *resultBuilder) finalize(ctx context.Context, item *Item) {
	e := b.e

	item.Path = b.displayPath(ctx, item)

	item.DisplayOwner = e.dir.DisplayName(ctx, item.Owner)
	if item.ShareWith != "" {
		item.DisplayShareWith = e.dir.DisplayName(ctx, item.ShareWith)
	}
}

// displayPath rewrites the file path relative to the viewer's root. A
// share derived from a parent mount reconstructs the path from the
// parent's target plus the suffix beyond the parent.
func (b *resultBuilder) displayPath(ctx context.Context, item *Item) string {
	e := b.e

	if item.FileTarget != "" {
		return item.FileTarget
	}
	if item.FileSource == nil {
		return ""
	}
	if b.q.owner != "" {
		path, err := e.mounts.FilePath(ctx, b.q.owner, *item.FileSource)
		if err != nil {
			return ""
		}
		return path
	}

	if item.Parent == nil {
		return ""
	}
	parentID := *item.Parent
	if switched, ok := b.switched[parentID]; ok {
		parentID = switched
	}
	parent, err := e.store.ByID(ctx, parentID)
	if err != nil || parent.FileSource == nil || parent.FileTarget == "" {
		return ""
	}
	parentPath, err := e.mounts.FilePath(ctx, parent.Owner, *parent.FileSource)
	if err != nil {
		return ""
	}
	childPath, err := e.mounts.FilePath(ctx, item.Owner, *item.FileSource)
	if err != nil {
		return ""
	}
	suffix := strings.TrimPrefix(childPath, parentPath)
	return strings.TrimSuffix(parent.FileTarget, "/") + suffix
}
