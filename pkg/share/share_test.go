package share

import (
	"context"
	"fmt"
	"time"

	"github.com/kevgathuku/server/internal/config"
	"github.com/kevgathuku/server/internal/events"
	"github.com/kevgathuku/server/pkg/models"
	"go.uber.org/zap"
)

// Test fakes shared by the package tests. The store is the real
// in-memory implementation; directory, mounts and backends are scripted.

type fakeDirectory struct {
	users  map[string]string   // id -> display name
	groups map[string][]string // gid -> member ids
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:  make(map[string]string),
		groups: make(map[string][]string),
	}
}

func (d *fakeDirectory) addUser(id, name string) *fakeDirectory {
	d.users[id] = name
	return d
}

func (d *fakeDirectory) addGroup(gid string, members ...string) *fakeDirectory {
	d.groups[gid] = members
	return d
}

func (d *fakeDirectory) UserExists(_ context.Context, uid string) bool {
	_, ok := d.users[uid]
	return ok
}

func (d *fakeDirectory) GroupExists(_ context.Context, gid string) bool {
	_, ok := d.groups[gid]
	return ok
}

func (d *fakeDirectory) UserGroups(_ context.Context, uid string) ([]string, error) {
	var out []string
	for gid, members := range d.groups {
		for _, m := range members {
			if m == uid {
				out = append(out, gid)
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) GroupMembers(_ context.Context, gid string) ([]string, error) {
	return d.groups[gid], nil
}

func (d *fakeDirectory) DisplayName(_ context.Context, uid string) string {
	if name, ok := d.users[uid]; ok && name != "" {
		return name
	}
	return uid
}

type fakeMounts struct {
	paths        map[int64]string // file source -> path
	sources      map[string]int64 // owner + path -> file source
	unreachable  map[int64]bool
	sharedMounts map[string]bool // owner + path
}

func newFakeMounts() *fakeMounts {
	return &fakeMounts{
		paths:        make(map[int64]string),
		sources:      make(map[string]int64),
		unreachable:  make(map[int64]bool),
		sharedMounts: make(map[string]bool),
	}
}

func (m *fakeMounts) addFile(owner, path string, src int64) *fakeMounts {
	m.paths[src] = path
	m.sources[owner+":"+path] = src
	return m
}

func (m *fakeMounts) FilePath(_ context.Context, _ string, fileSource int64) (string, error) {
	path, ok := m.paths[fileSource]
	if !ok {
		return "", ErrSourceNotFound
	}
	return path, nil
}

func (m *fakeMounts) FileSource(_ context.Context, owner, path string) (int64, error) {
	src, ok := m.sources[owner+":"+path]
	if !ok {
		return 0, ErrSourceNotFound
	}
	return src, nil
}

func (m *fakeMounts) Reachable(_ context.Context, _ string, fileSource int64) bool {
	return !m.unreachable[fileSource]
}

func (m *fakeMounts) ContainsSharedMount(_ context.Context, owner, path string) (bool, error) {
	return m.sharedMounts[owner+":"+path], nil
}

// fakeBackend is file dependent; every scripted source has a name and a
// path.
type fakeBackend struct {
	itemType string
	names    map[string]string // source -> display name
	paths    map[string]string // source -> owner relative path
	disallow map[models.ShareType]bool
}

func newFakeBackend(itemType string) *fakeBackend {
	return &fakeBackend{
		itemType: itemType,
		names:    make(map[string]string),
		paths:    make(map[string]string),
		disallow: make(map[models.ShareType]bool),
	}
}

func (b *fakeBackend) addSource(source, name, path string) *fakeBackend {
	b.names[source] = name
	b.paths[source] = path
	return b
}

func (b *fakeBackend) ItemType() string { return b.itemType }

func (b *fakeBackend) IsValidSource(_ context.Context, source, _ string) bool {
	_, ok := b.names[source]
	return ok
}

func (b *fakeBackend) DisplayName(_ context.Context, source, _ string) (string, error) {
	name, ok := b.names[source]
	if !ok {
		return "", ErrSourceNotFound
	}
	return name, nil
}

func (b *fakeBackend) IsShareTypeAllowed(t models.ShareType) bool {
	return !b.disallow[t]
}

func (b *fakeBackend) FormatItems(_ context.Context, rows []*models.Share, _ Format) (any, error) {
	return rows, nil
}

func (b *fakeBackend) FilePath(_ context.Context, source, _ string) (string, error) {
	path, ok := b.paths[source]
	if !ok {
		return "", ErrSourceNotFound
	}
	return path, nil
}

// fakeCollection aggregates children of another item type.
type fakeCollection struct {
	fakeBackend
	children map[string][]Child
}

func newFakeCollection(itemType string) *fakeCollection {
	return &fakeCollection{
		fakeBackend: *newFakeBackend(itemType),
		children:    make(map[string][]Child),
	}
}

func (c *fakeCollection) addChild(source string, child Child) *fakeCollection {
	c.children[source] = append(c.children[source], child)
	return c
}

func (c *fakeCollection) Children(_ context.Context, source string) ([]Child, error) {
	return c.children[source], nil
}

func (c *fakeCollection) Parents(_ context.Context, source, _, _ string) ([]string, error) {
	var out []string
	for coll, children := range c.children {
		for _, child := range children {
			if child.Source == source {
				out = append(out, coll)
			}
		}
	}
	return out, nil
}

// fixture bundles an engine over scripted collaborators with a frozen
// clock.
type fixture struct {
	store    *MemoryStore
	dir      *fakeDirectory
	mounts   *fakeMounts
	bus      *events.Bus
	registry *Registry
	files    *fakeBackend
	folders  *fakeCollection
	cfg      *config.ShareConfig
	now      time.Time
	engine   *Engine
}

func defaultShareConfig() *config.ShareConfig {
	return &config.ShareConfig{
		Enabled:           true,
		AllowLinks:        true,
		AllowResharing:    true,
		ExpireAfterDays:   7,
		LinkTokenLength:   15,
		RemoteTokenLength: 15,
	}
}

func newFixture(opts ...func(*fixture)) *fixture {
	f := &fixture{
		store:    NewMemoryStore(),
		dir:      newFakeDirectory(),
		mounts:   newFakeMounts(),
		bus:      events.NewBus(zap.NewNop()),
		registry: NewRegistry(),
		files:    newFakeBackend("file"),
		folders:  newFakeCollection("folder"),
		cfg:      defaultShareConfig(),
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.registry.Register("file", f.files); err != nil {
		panic(err)
	}
	if err := f.registry.Register("folder", f.folders, "file"); err != nil {
		panic(err)
	}
	f.engine = NewEngine(EngineParams{
		Store:      f.store,
		Registry:   f.registry,
		Directory:  f.dir,
		Mounts:     f.mounts,
		Bus:        f.bus,
		Notifier:   newTestNotifier(),
		Config:     f.cfg,
		ServerHost: "local.example.com",
		Now:        func() time.Time { return f.now },
	})
	return f
}

func newTestNotifier() *Notifier {
	return NewNotifier(&config.FederationConfig{
		ConnectTimeout:    time.Second,
		AllowHTTPFallback: true,
	}, zap.NewNop())
}

// seedFile scripts one sharable file across backend and mounts.
func (f *fixture) seedFile(owner, source, name, path string, fileSrc int64) {
	f.files.addSource(source, name, path)
	f.mounts.addFile(owner, path, fileSrc)
}

func (f *fixture) seedFolder(owner, source, name, path string, fileSrc int64) {
	f.folders.addSource(source, name, path)
	f.mounts.addFile(owner, path, fileSrc)
}

func (f *fixture) share(req ShareRequest) (*Result, error) {
	return f.engine.ShareItem(context.Background(), req)
}

func (f *fixture) mustShare(req ShareRequest) *Result {
	res, err := f.share(req)
	if err != nil {
		panic(fmt.Sprintf("share failed: %v", err))
	}
	return res
}
