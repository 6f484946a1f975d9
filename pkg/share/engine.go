// Package share implements the share-resolution and target-allocation
// engine: deciding whether a requested share is legal, allocating
// collision-free display targets, reconstructing the deduplicated
// permission-merged view of everything shared with a user, and tracking
// the resharing parent chain.
package share

import (
	"context"
	"time"

	"github.com/kevgathuku/server/internal/config"
	"github.com/kevgathuku/server/internal/events"
	"github.com/kevgathuku/server/internal/token"
	"github.com/kevgathuku/server/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Engine enforces all sharing policy. All mutations validate before any
// row is written; remote share creation is the documented exception,
// compensating with a local delete when the peer cannot be notified.
type Engine struct {
	store        Store
	registry     *Registry
	alloc        *Allocator
	dir          Directory
	mounts       MountResolver
	bus          *events.Bus
	notifier     *Notifier
	linkTokens   token.Generator
	remoteTokens token.Generator
	cfg          *config.ShareConfig
	serverHost   string
	logger       *zap.Logger
	now          func() time.Time
}

// EngineParams collects the engine's collaborators. Store, Registry,
// Directory, Mounts, Bus and Config are required.
type EngineParams struct {
	Store      Store
	Registry   *Registry
	Directory  Directory
	Mounts     MountResolver
	Bus        *events.Bus
	Notifier   *Notifier
	Config     *config.ShareConfig
	ServerHost string
	Logger     *zap.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func NewEngine(p EngineParams) *Engine {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Now == nil {
		p.Now = func() time.Time { return time.Now().UTC() }
	}
	linkAlphabet := token.AlphabetAlphanumeric
	if p.Config.HumanReadableTokens {
		linkAlphabet = token.AlphabetHumanReadable
	}
	return &Engine{
		store:        p.Store,
		registry:     p.Registry,
		alloc:        NewAllocator(p.Store, p.Directory),
		dir:          p.Directory,
		mounts:       p.Mounts,
		bus:          p.Bus,
		notifier:     p.Notifier,
		linkTokens:   token.NewGenerator(linkAlphabet),
		remoteTokens: token.NewGenerator(token.AlphabetAlphanumeric),
		cfg:          p.Config,
		serverHost:   p.ServerHost,
		logger:       p.Logger.Named("share"),
		now:          p.Now,
	}
}

// ShareRequest describes one share creation.
type ShareRequest struct {
	ItemType   string
	ItemSource string
	ShareType  models.ShareType
	// ShareWith is the user id, group id or remote user@host. Empty for
	// link shares.
	ShareWith   string
	Owner       string
	Permissions models.Permission
	// Name optionally overrides the item's own display name as the
	// target suggestion.
	Name       string
	Expiration *time.Time
	// Password applies to link shares: nil leaves any existing password
	// in place, the empty string removes it, anything else replaces it.
	Password *string
}

// Result reports a successful share creation.
type Result struct {
	IDs []int64
	// Token is set for link and remote shares.
	Token string
	// RemoteAccepted is set when the federated peer acknowledged.
	RemoteAccepted bool
}

// SharePayload is carried by pre_shared/post_shared events.
type SharePayload struct {
	ItemType    string
	ItemSource  string
	ShareType   models.ShareType
	ShareWith   string
	Owner       string
	Permissions models.Permission
	Expiration  *time.Time
	Token       string
	// Rows holds the materialized share rows, post events only.
	Rows []*models.Share
}

// UnsharePayload is carried by pre_unshare/post_unshare events.
type UnsharePayload struct {
	Share *models.Share
	// Deleted holds the full cascaded set, post events only.
	Deleted []*models.Share
}

// shareContext accumulates per-request state through the validation
// pipeline.
type shareContext struct {
	req      ShareRequest
	backend  Backend
	perms    models.Permission
	filePath string
	fileSrc  *int64
	reshare  *reshareInfo
	name     string
}

// ShareItem validates and persists a share. The validation pipeline
// fails fast; no row is written before every check has passed and the
// pre_shared hook allowed the mutation.
func (e *Engine) ShareItem(ctx context.Context, req ShareRequest) (*Result, error) {
	if !req.ShareType.Requestable() {
		return nil, violationf("share type %d is not valid", req.ShareType)
	}
	backend, err := e.registry.Resolve(req.ItemType)
	if err != nil {
		return nil, err
	}
	if !backend.IsShareTypeAllowed(req.ShareType) {
		return nil, violationf("%s items cannot be shared as %s", req.ItemType, req.ShareType)
	}
	if !e.cfg.Enabled {
		return nil, violationf("sharing is disabled")
	}
	if e.sharingDisabledFor(ctx, req.Owner) {
		return nil, violationf("sharing is disabled for %s", req.Owner)
	}

	sc := &shareContext{req: req, backend: backend, perms: req.Permissions}

	if fd, ok := backend.(FileDependent); ok {
		path, err := fd.FilePath(ctx, req.ItemSource, req.Owner)
		if err != nil || path == "" {
			return nil, violationf("%s %q is not a sharable path", req.ItemType, req.ItemSource)
		}
		sc.filePath = path
		if src, err := e.mounts.FileSource(ctx, req.Owner, path); err == nil {
			sc.fileSrc = &src
		}
		if _, isCollection := backend.(Collection); isCollection {
			shared, err := e.mounts.ContainsSharedMount(ctx, req.Owner, path)
			if err != nil {
				return nil, err
			}
			if shared {
				return nil, violationf("folder %q contains storage shared with you and cannot be shared onward as a whole", path)
			}
		}
	}

	// Single-file shares never carry delete.
	if req.ItemType == "file" {
		sc.perms &^= models.PermissionDelete
	}

	if req.Expiration != nil {
		// A zero anchor lets the check pick up the share time of an
		// existing row when a link share is being re-created.
		if err := e.ValidateExpireDate(ctx, *req.Expiration, time.Time{}, req.ItemType, req.ItemSource); err != nil {
			return nil, err
		}
	}

	sc.name = req.Name
	if sc.name == "" {
		if sc.name, err = backend.DisplayName(ctx, req.ItemSource, req.Owner); err != nil {
			return nil, violationf("no display name for %s %q", req.ItemType, req.ItemSource)
		}
	}

	switch req.ShareType {
	case models.ShareTypeUser:
		return e.shareWithUser(ctx, sc)
	case models.ShareTypeGroup:
		return e.shareWithGroup(ctx, sc)
	case models.ShareTypeLink:
		return e.shareWithLink(ctx, sc)
	case models.ShareTypeRemote:
		return e.shareWithRemote(ctx, sc)
	default:
		return nil, violationf("share type %d is not valid", req.ShareType)
	}
}

func (e *Engine) shareWithUser(ctx context.Context, sc *shareContext) (*Result, error) {
	req := sc.req
	if req.ShareWith == req.Owner {
		return nil, violationf("cannot share with yourself")
	}
	if !e.dir.UserExists(ctx, req.ShareWith) {
		return nil, violationf("user %s does not exist", req.ShareWith)
	}
	if e.cfg.GroupOnly && !e.haveCommonGroup(ctx, req.Owner, req.ShareWith) {
		return nil, violationf("sharing is only allowed with members of your groups")
	}

	// An existing direct share by the same owner may only be increased,
	// never re-created.
	existing, err := e.store.Find(ctx, Filter{
		ItemTypes:  []string{req.ItemType},
		ItemSource: req.ItemSource,
		ShareTypes: []models.ShareType{models.ShareTypeUser},
		ShareWith:  &req.ShareWith,
		Owner:      req.Owner,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) == 1 {
		old := existing[0]
		if !sc.perms.Exceeds(old.Permissions) {
			return nil, violationf("%s %q is already shared with %s", req.ItemType, req.ItemSource, req.ShareWith)
		}
		// The merged set is what ends up persisted, so it is what the
		// reshare ceiling applies to.
		sc.perms |= old.Permissions
		ri, err := e.checkReshare(ctx, sc)
		if err != nil {
			return nil, err
		}
		sc.reshare = ri
		if err := e.validateShareBit(sc.perms, ri); err != nil {
			return nil, err
		}
		if err := e.bus.PublishPre(ctx, events.PreShared, e.prePayload(sc)); err != nil {
			return nil, err
		}
		if err := e.store.UpdatePermissions(ctx, old.ID, sc.perms); err != nil {
			return nil, err
		}
		old.Permissions = sc.perms
		e.publishShared(ctx, sc, old)
		return &Result{IDs: []int64{old.ID}}, nil
	}

	ri, err := e.checkReshare(ctx, sc)
	if err != nil {
		return nil, err
	}
	sc.reshare = ri
	if err := e.validateShareBit(sc.perms, ri); err != nil {
		return nil, err
	}

	if err := e.bus.PublishPre(ctx, events.PreShared, e.prePayload(sc)); err != nil {
		return nil, err
	}

	row, err := e.buildRow(ctx, sc, models.ShareTypeUser, req.ShareWith, nil)
	if err != nil {
		return nil, err
	}
	id, err := e.store.Insert(ctx, row)
	if err != nil {
		return nil, err
	}

	e.publishShared(ctx, sc, row)
	return &Result{IDs: []int64{id}}, nil
}

func (e *Engine) shareWithGroup(ctx context.Context, sc *shareContext) (*Result, error) {
	req := sc.req
	if !e.dir.GroupExists(ctx, req.ShareWith) {
		return nil, violationf("group %s does not exist", req.ShareWith)
	}
	if e.cfg.GroupOnly && !containsString(e.userGroups(ctx, req.Owner), req.ShareWith) {
		return nil, violationf("sharing is only allowed within your own groups")
	}

	existing, err := e.store.Find(ctx, Filter{
		ItemTypes:  []string{req.ItemType},
		ItemSource: req.ItemSource,
		ShareTypes: []models.ShareType{models.ShareTypeGroup},
		ShareWith:  &req.ShareWith,
		Owner:      req.Owner,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) == 1 {
		return nil, violationf("%s %q is already shared with group %s", req.ItemType, req.ItemSource, req.ShareWith)
	}

	ri, err := e.checkReshare(ctx, sc)
	if err != nil {
		return nil, err
	}
	sc.reshare = ri
	if err := e.validateShareBit(sc.perms, ri); err != nil {
		return nil, err
	}

	members, err := e.dir.GroupMembers(ctx, req.ShareWith)
	if err != nil {
		return nil, err
	}

	if err := e.bus.PublishPre(ctx, events.PreShared, e.prePayload(sc)); err != nil {
		return nil, err
	}

	groupRow, err := e.buildRow(ctx, sc, models.ShareTypeGroup, req.ShareWith, nil)
	if err != nil {
		return nil, err
	}
	gid, err := e.store.Insert(ctx, groupRow)
	if err != nil {
		return nil, err
	}

	rows := []*models.Share{groupRow}
	ids := []int64{gid}
	for _, member := range members {
		if member == req.Owner {
			continue
		}
		memberRow, err := e.buildRow(ctx, sc, models.ShareTypeGroupUserUnique, member, &gid)
		if err != nil {
			return nil, err
		}
		// A member whose targets match the group default needs no
		// override row.
		if memberRow.ItemTarget == groupRow.ItemTarget && memberRow.FileTarget == groupRow.FileTarget {
			continue
		}
		id, err := e.store.Insert(ctx, memberRow)
		if err != nil {
			return nil, err
		}
		rows = append(rows, memberRow)
		ids = append(ids, id)
	}

	e.publishShared(ctx, sc, rows...)
	return &Result{IDs: ids}, nil
}

func (e *Engine) shareWithLink(ctx context.Context, sc *shareContext) (*Result, error) {
	req := sc.req
	if !e.cfg.AllowLinks {
		return nil, violationf("public link shares are disabled")
	}

	none := ""
	existing, err := e.store.Find(ctx, Filter{
		ItemTypes:  []string{req.ItemType},
		ItemSource: req.ItemSource,
		ShareTypes: []models.ShareType{models.ShareTypeLink},
		ShareWith:  &none,
		Owner:      req.Owner,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	var old *models.Share
	if len(existing) == 1 {
		old = existing[0]
	}

	// Resolve the password before anything is written.
	var passwordHash *string
	switch {
	case req.Password == nil:
		if old != nil {
			passwordHash = old.Password
		}
	case *req.Password == "":
		passwordHash = nil
	default:
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		h := string(hashed)
		passwordHash = &h
	}
	if e.cfg.EnforceLinkPassword && passwordHash == nil {
		return nil, violationf("passwords are enforced for public link shares")
	}

	shareTime := e.now()
	expiration := req.Expiration
	if expiration == nil {
		switch {
		case old != nil && old.Expiration != nil:
			expiration = old.Expiration
		case e.cfg.DefaultExpireDate:
			exp := shareTime.AddDate(0, 0, e.cfg.ExpireAfterDays)
			expiration = &exp
		}
	}

	tok := ""
	if old != nil {
		tok = old.Token
	}
	if tok == "" {
		if tok, err = e.linkTokens.Generate(e.cfg.LinkTokenLength); err != nil {
			return nil, err
		}
	}

	if err := e.bus.PublishPre(ctx, events.PreShared, e.prePayload(sc)); err != nil {
		return nil, err
	}

	if old != nil {
		if _, err := e.store.DeleteCascading(ctx, old.ID); err != nil {
			return nil, err
		}
	}

	row := &models.Share{
		ItemType:    req.ItemType,
		ItemSource:  req.ItemSource,
		ItemTarget:  sc.name,
		FileSource:  sc.fileSrc,
		ShareType:   models.ShareTypeLink,
		Owner:       req.Owner,
		Permissions: sc.perms,
		ShareTime:   shareTime,
		Token:       tok,
		Expiration:  expiration,
		Password:    passwordHash,
	}
	if sc.filePath != "" {
		row.FileTarget = "/" + sc.name
	}
	id, err := e.store.Insert(ctx, row)
	if err != nil {
		return nil, err
	}

	e.publishShared(ctx, sc, row)
	return &Result{IDs: []int64{id}, Token: tok}, nil
}

func (e *Engine) shareWithRemote(ctx context.Context, sc *shareContext) (*Result, error) {
	req := sc.req
	if e.notifier == nil {
		return nil, violationf("federated sharing is not configured")
	}
	remoteUser, remoteHost, err := SplitRemoteUser(req.ShareWith)
	if err != nil {
		return nil, err
	}
	if e.serverHost != "" && remoteHost == e.serverHost && remoteUser == req.Owner {
		return nil, violationf("%s resolves to this server and user, cannot share with yourself", req.ShareWith)
	}

	existing, err := e.store.Find(ctx, Filter{
		ItemTypes:  []string{req.ItemType},
		ItemSource: req.ItemSource,
		ShareTypes: []models.ShareType{models.ShareTypeRemote},
		ShareWith:  &req.ShareWith,
		Owner:      req.Owner,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) == 1 {
		return nil, violationf("%s %q is already shared with %s", req.ItemType, req.ItemSource, req.ShareWith)
	}

	tok, err := e.remoteTokens.Generate(e.cfg.RemoteTokenLength)
	if err != nil {
		return nil, err
	}

	if err := e.bus.PublishPre(ctx, events.PreShared, e.prePayload(sc)); err != nil {
		return nil, err
	}

	row := &models.Share{
		ItemType:    req.ItemType,
		ItemSource:  req.ItemSource,
		ItemTarget:  sc.name,
		FileSource:  sc.fileSrc,
		ShareType:   models.ShareTypeRemote,
		ShareWith:   req.ShareWith,
		Owner:       req.Owner,
		Permissions: sc.perms,
		ShareTime:   e.now(),
		Token:       tok,
	}
	if sc.filePath != "" {
		row.FileTarget = "/" + sc.name
	}
	id, err := e.store.Insert(ctx, row)
	if err != nil {
		return nil, err
	}

	// Best-effort saga: the peer is notified after the local write and
	// the row is compensated away when notification fails.
	if err := e.notifier.CreateShare(ctx, remoteHost, tok, sc.name, req.Owner, remoteUser, id); err != nil {
		if _, derr := e.store.DeleteCascading(ctx, id); derr != nil {
			e.logger.Error("failed to compensate remote share",
				zap.Int64("id", id), zap.Error(derr))
		}
		return nil, err
	}

	e.publishShared(ctx, sc, row)
	e.bus.Publish(ctx, events.FederatedShareAdded, SharePayload{
		ItemType: req.ItemType, ItemSource: req.ItemSource,
		ShareType: req.ShareType, ShareWith: req.ShareWith,
		Owner: req.Owner, Permissions: sc.perms, Token: tok,
		Rows: []*models.Share{row},
	})
	return &Result{IDs: []int64{id}, Token: tok, RemoteAccepted: true}, nil
}

// buildRow allocates targets and assembles one share row for recipient.
func (e *Engine) buildRow(ctx context.Context, sc *shareContext, shareType models.ShareType, recipient string, parent *int64) (*models.Share, error) {
	req := sc.req

	suggestedItem := sc.name
	suggestedFile := "/" + sc.name
	if sc.reshare != nil {
		if sc.reshare.SuggestedItemTarget != "" {
			suggestedItem = sc.reshare.SuggestedItemTarget
		}
		if sc.reshare.SuggestedFileTarget != "" {
			suggestedFile = sc.reshare.SuggestedFileTarget
		}
	}

	itemTarget, err := e.alloc.Allocate(ctx, AllocateParams{
		ItemType:  req.ItemType,
		Source:    req.ItemSource,
		ShareType: shareType,
		Recipient: recipient,
		Owner:     req.Owner,
		Suggested: suggestedItem,
		Parent:    parent,
	})
	if err != nil {
		return nil, err
	}

	fileTarget := ""
	if sc.filePath != "" {
		if fileTarget, err = e.alloc.Allocate(ctx, AllocateParams{
			ItemType:  req.ItemType,
			Source:    req.ItemSource,
			ShareType: shareType,
			Recipient: recipient,
			Owner:     req.Owner,
			Suggested: suggestedFile,
			PathLike:  true,
			Parent:    parent,
		}); err != nil {
			return nil, err
		}
	}

	row := &models.Share{
		ItemType:    req.ItemType,
		ItemSource:  req.ItemSource,
		ItemTarget:  itemTarget,
		FileSource:  sc.fileSrc,
		FileTarget:  fileTarget,
		ShareType:   shareType,
		ShareWith:   recipient,
		Owner:       req.Owner,
		Permissions: sc.perms,
		ShareTime:   e.now(),
		Parent:      parent,
	}
	if sc.reshare != nil {
		if parent == nil {
			row.Parent = sc.reshare.Parent
		}
		if sc.reshare.Expiration != nil {
			row.Expiration = sc.reshare.Expiration
		}
		if sc.reshare.FileSource != nil {
			row.FileSource = sc.reshare.FileSource
		}
	}
	if req.Expiration != nil && row.ShareType == models.ShareTypeLink {
		row.Expiration = req.Expiration
	}
	return row, nil
}

// validateShareBit rejects permission sets carrying SHARE when resharing
// is off or the acting user does not hold SHARE upstream.
func (e *Engine) validateShareBit(perms models.Permission, ri *reshareInfo) error {
	if !perms.Contains(models.PermissionShare) {
		return nil
	}
	if !e.cfg.AllowResharing {
		return violationf("resharing is not allowed")
	}
	if ri != nil && ri.Parent != nil && !ri.UpstreamPermissions.Contains(models.PermissionShare) {
		return exceededf("share permission is not granted upstream")
	}
	return nil
}

func (e *Engine) prePayload(sc *shareContext) SharePayload {
	return SharePayload{
		ItemType:    sc.req.ItemType,
		ItemSource:  sc.req.ItemSource,
		ShareType:   sc.req.ShareType,
		ShareWith:   sc.req.ShareWith,
		Owner:       sc.req.Owner,
		Permissions: sc.perms,
		Expiration:  sc.req.Expiration,
	}
}

func (e *Engine) publishShared(ctx context.Context, sc *shareContext, rows ...*models.Share) {
	payload := e.prePayload(sc)
	payload.Rows = rows
	if len(rows) > 0 {
		payload.Token = rows[0].Token
	}
	e.bus.Publish(ctx, events.PostShared, payload)
	e.logger.Info("share created",
		zap.String("item_type", sc.req.ItemType),
		zap.String("item_source", sc.req.ItemSource),
		zap.String("share_type", sc.req.ShareType.String()),
		zap.String("share_with", sc.req.ShareWith),
		zap.String("owner", sc.req.Owner))
}

// Unshare removes the share of (itemType, itemSource) from shareWith
// created by owner, cascading to derived rows.
func (e *Engine) Unshare(ctx context.Context, owner, itemType, itemSource string, shareType models.ShareType, shareWith string) error {
	rows, err := e.store.Find(ctx, Filter{
		ItemTypes:  []string{itemType},
		ItemSource: itemSource,
		ShareWith:  &shareWith,
	})
	if err != nil {
		return err
	}

	var target *models.Share
	var siblings []*models.Share
	for _, row := range rows {
		if row.ShareType == shareType && row.Owner == owner {
			target = row
		} else {
			siblings = append(siblings, row)
		}
	}
	if target == nil {
		return ErrShareNotFound
	}

	if err := e.bus.PublishPre(ctx, events.PreUnshare, UnsharePayload{Share: target}); err != nil {
		return err
	}

	// Surviving siblings adopt any reshare children. A group-derived
	// unique row never becomes the new root; its own parent does.
	if len(siblings) > 0 {
		newParent := siblings[0].ID
		if siblings[0].ShareType == models.ShareTypeGroupUserUnique && siblings[0].Parent != nil {
			newParent = *siblings[0].Parent
		}
		children, err := e.store.Find(ctx, Filter{Parent: &target.ID})
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.ShareType == models.ShareTypeGroupUserUnique {
				continue
			}
			if err := e.store.UpdateParent(ctx, child.ID, &newParent); err != nil {
				return err
			}
		}
	}

	deleted, err := e.store.DeleteCascading(ctx, target.ID)
	if err != nil {
		return err
	}

	e.publishUnshared(ctx, target, deleted)

	if target.ShareType == models.ShareTypeRemote && e.notifier != nil {
		if _, remoteHost, err := SplitRemoteUser(target.ShareWith); err == nil {
			// Fire and forget: the local unshare already succeeded.
			go func(host, tok string, id int64) {
				nctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := e.notifier.RevokeShare(nctx, host, tok, id); err != nil {
					e.logger.Warn("failed to notify remote server of unshare",
						zap.String("remote", host), zap.Error(err))
				}
			}(remoteHost, target.Token, target.ID)
		}
	}
	return nil
}

// UnshareFromSelf removes a received share from the recipient's own
// view. A direct share is deleted; membership in a group share turns
// into a zero-permission override row meaning "excluded".
func (e *Engine) UnshareFromSelf(ctx context.Context, recipient, itemType, itemTarget string) error {
	recipients := append([]string{recipient}, e.userGroups(ctx, recipient)...)
	rows, err := e.store.Find(ctx, Filter{
		ItemTypes:    []string{itemType},
		ShareWithAny: recipients,
	})
	if err != nil {
		return err
	}

	for _, row := range rows {
		if row.ItemTarget != itemTarget && row.FileTarget != itemTarget {
			continue
		}
		switch row.ShareType {
		case models.ShareTypeUser, models.ShareTypeGroupUserUnique:
			if row.ShareWith != recipient {
				continue
			}
			if row.ShareType == models.ShareTypeGroupUserUnique {
				// Keep the row as an exclusion marker.
				if err := e.store.UpdatePermissions(ctx, row.ID, 0); err != nil {
					return err
				}
				return nil
			}
			deleted, err := e.store.DeleteCascading(ctx, row.ID)
			if err != nil {
				return err
			}
			e.publishUnshared(ctx, row, deleted)
			return nil
		case models.ShareTypeGroup:
			excluded := &models.Share{
				ItemType:    row.ItemType,
				ItemSource:  row.ItemSource,
				ItemTarget:  row.ItemTarget,
				FileSource:  row.FileSource,
				FileTarget:  row.FileTarget,
				ShareType:   models.ShareTypeGroupUserUnique,
				ShareWith:   recipient,
				Owner:       row.Owner,
				Permissions: 0,
				ShareTime:   e.now(),
				Parent:      &row.ID,
			}
			if _, err := e.store.Insert(ctx, excluded); err != nil {
				return err
			}
			return nil
		}
	}
	return ErrShareNotFound
}

// SetPermissions replaces the permissions of an existing share. The new
// set must respect the upstream reshare ceiling; reductions cascade to
// derived shares.
func (e *Engine) SetPermissions(ctx context.Context, owner, itemType, itemSource string, shareType models.ShareType, shareWith string, perms models.Permission) error {
	row, err := e.findExact(ctx, owner, itemType, itemSource, shareType, shareWith)
	if err != nil {
		return err
	}

	if row.Parent != nil {
		parent, err := e.store.ByID(ctx, *row.Parent)
		if err == nil && perms.Exceeds(parent.Permissions) {
			return exceededf("permissions exceed the permissions granted to %s", owner)
		}
	}
	if perms.Contains(models.PermissionShare) && !e.cfg.AllowResharing {
		return violationf("resharing is not allowed")
	}

	if err := e.store.UpdatePermissions(ctx, row.ID, perms); err != nil {
		return err
	}

	// Derived shares never keep bits their parent lost.
	return e.reducePermissions(ctx, row.ID, perms)
}

func (e *Engine) reducePermissions(ctx context.Context, parent int64, ceiling models.Permission) error {
	children, err := e.store.Find(ctx, Filter{Parent: &parent})
	if err != nil {
		return err
	}
	for _, child := range children {
		if !child.Permissions.Exceeds(ceiling) {
			continue
		}
		reduced := child.Permissions & ceiling
		if err := e.store.UpdatePermissions(ctx, child.ID, reduced); err != nil {
			return err
		}
		if err := e.reducePermissions(ctx, child.ID, reduced); err != nil {
			return err
		}
	}
	return nil
}

// SetExpirationDate sets or clears the expiration of a link share.
func (e *Engine) SetExpirationDate(ctx context.Context, owner, itemType, itemSource string, date *time.Time) error {
	if date != nil {
		if err := e.ValidateExpireDate(ctx, *date, time.Time{}, itemType, itemSource); err != nil {
			return err
		}
	}
	none := ""
	rows, err := e.store.Find(ctx, Filter{
		ItemTypes:  []string{itemType},
		ItemSource: itemSource,
		ShareTypes: []models.ShareType{models.ShareTypeLink},
		ShareWith:  &none,
		Owner:      owner,
		Limit:      1,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrShareNotFound
	}
	return e.store.UpdateExpiration(ctx, rows[0].ID, date)
}

// SetSendMailStatus records whether the recipient was notified.
func (e *Engine) SetSendMailStatus(ctx context.Context, owner, itemType, itemSource string, shareType models.ShareType, shareWith string, sent bool) error {
	row, err := e.findExact(ctx, owner, itemType, itemSource, shareType, shareWith)
	if err != nil {
		return err
	}
	return e.store.UpdateMailStatus(ctx, row.ID, sent)
}

func (e *Engine) findExact(ctx context.Context, owner, itemType, itemSource string, shareType models.ShareType, shareWith string) (*models.Share, error) {
	rows, err := e.store.Find(ctx, Filter{
		ItemTypes:  []string{itemType},
		ItemSource: itemSource,
		ShareTypes: []models.ShareType{shareType},
		ShareWith:  &shareWith,
		Owner:      owner,
		Limit:      1,
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrShareNotFound
	}
	return rows[0], nil
}

func (e *Engine) publishUnshared(ctx context.Context, row *models.Share, deleted []*models.Share) {
	e.bus.Publish(ctx, events.PostUnshare, UnsharePayload{Share: row, Deleted: deleted})
	e.logger.Info("share removed",
		zap.Int64("id", row.ID),
		zap.String("item_type", row.ItemType),
		zap.String("item_source", row.ItemSource),
		zap.Int("cascaded", len(deleted)))
}

// sharingDisabledFor reports whether the user belongs to a group that is
// excluded from sharing.
func (e *Engine) sharingDisabledFor(ctx context.Context, uid string) bool {
	if len(e.cfg.ExcludedGroups) == 0 {
		return false
	}
	for _, g := range e.userGroups(ctx, uid) {
		if containsString(e.cfg.ExcludedGroups, g) {
			return true
		}
	}
	return false
}

func (e *Engine) userGroups(ctx context.Context, uid string) []string {
	groups, err := e.dir.UserGroups(ctx, uid)
	if err != nil {
		e.logger.Warn("group lookup failed", zap.String("user", uid), zap.Error(err))
		return nil
	}
	return groups
}

func (e *Engine) haveCommonGroup(ctx context.Context, a, b string) bool {
	groupsA := e.userGroups(ctx, a)
	for _, g := range e.userGroups(ctx, b) {
		if containsString(groupsA, g) {
			return true
		}
	}
	return false
}
