package entitystore

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/pkg/testsupport"
	"github.com/goliatone/go-entity-cache/relation"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/storage"
)

// callLog is shared by the storage and cache fakes so tests can assert the
// relative order of cache and storage operations.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) getCalls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) clearCalls() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// count returns how many recorded calls start with prefix.
func (l *callLog) count(prefix string) int {
	n := 0
	for _, c := range l.getCalls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// countingStorage wraps the memory adapter and records "<Method> <table>".
type countingStorage struct {
	log *callLog
	mem *storage.MemoryAdapter

	loadErr   error
	findErr   error
	upsertErr error
	deleteErr error

	// afterLoad runs once the row is read but before it is returned.
	afterLoad func(ctx context.Context)
	// beforeDelete runs before rows are removed from the memory adapter.
	beforeDelete func(ctx context.Context)
}

func (s *countingStorage) Load(ctx context.Context, table, pk string, id any) (storage.Row, error) {
	s.log.record("Load " + table)
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	row, err := s.mem.Load(ctx, table, pk, id)
	if hook := s.afterLoad; hook != nil {
		s.afterLoad = nil
		hook(ctx)
	}
	return row, err
}

func (s *countingStorage) FindOne(ctx context.Context, table string, filter storage.Filter) (storage.Row, error) {
	s.log.record("FindOne " + table)
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.mem.FindOne(ctx, table, filter)
}

func (s *countingStorage) FindAllIDs(ctx context.Context, table, pk string, filter storage.Filter) ([]any, error) {
	s.log.record("FindAllIDs " + table)
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.mem.FindAllIDs(ctx, table, pk, filter)
}

func (s *countingStorage) Upsert(ctx context.Context, table, pk string, row storage.Row) (any, error) {
	s.log.record("Upsert " + table)
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	return s.mem.Upsert(ctx, table, pk, row)
}

func (s *countingStorage) Delete(ctx context.Context, table string, filter storage.Filter) (int64, error) {
	s.log.record("Delete " + table)
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	if hook := s.beforeDelete; hook != nil {
		s.beforeDelete = nil
		hook(ctx)
	}
	return s.mem.Delete(ctx, table, filter)
}

func (s *countingStorage) RawQuery(ctx context.Context, column, table string, filter storage.Filter) ([]storage.Row, error) {
	s.log.record("RawQuery " + table)
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.mem.RawQuery(ctx, column, table, filter)
}

// countingCache is a map backed cache adapter recording "<Method> <key>".
type countingCache struct {
	log *callLog

	mu   sync.Mutex
	data map[string][]byte

	getErr    error
	setErr    error
	deleteErr error
}

func (c *countingCache) Get(_ context.Context, key string) ([]byte, error) {
	c.log.record("Get " + key)
	if c.getErr != nil {
		return nil, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return append([]byte(nil), v...), nil
}

func (c *countingCache) Set(_ context.Context, key string, value []byte) error {
	c.log.record("Set " + key)
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *countingCache) Delete(_ context.Context, key string) error {
	c.log.record("Delete " + key)
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *countingCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *countingCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *countingCache) payload(key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.data[key]...)
}

// blogRegistry declares a small blog domain:
// User has_many Entry and has_one Profile, Entry belongs_to User and
// Category and is habtm Tag, Session is keyed by string ids and Audit is
// never cached.
func blogRegistry(t testing.TB) *schema.Registry {
	t.Helper()

	registry := schema.NewRegistry(relation.DefaultNaming())
	err := registry.Register(
		&schema.Schema{
			Type: "User",
			Fields: []schema.Field{
				{Name: "name", Type: schema.TypeString, Required: true, MaxLength: 40},
				{Name: "email", Type: schema.TypeString},
			},
			HasMany: []string{"Entry"},
			HasOne:  []string{"Profile"},
		},
		&schema.Schema{
			Type: "Entry",
			Fields: []schema.Field{
				{Name: "title", Type: schema.TypeString, Required: true},
				{Name: "body", Type: schema.TypeString},
			},
			BelongsTo: []string{"User", "Category"},
			HABTM:     []string{"Tag"},
		},
		&schema.Schema{
			Type:    "Category",
			Fields:  []schema.Field{{Name: "name", Type: schema.TypeString}},
			HasMany: []string{"Entry"},
		},
		&schema.Schema{
			Type:   "Tag",
			Fields: []schema.Field{{Name: "name", Type: schema.TypeString}},
			HABTM:  []string{"Entry"},
		},
		&schema.Schema{
			Type:      "Profile",
			Fields:    []schema.Field{{Name: "bio", Type: schema.TypeString}},
			BelongsTo: []string{"User"},
		},
		&schema.Schema{
			Type: "Session",
			Fields: []schema.Field{
				{Name: "id", Type: schema.TypeString},
				{Name: "data", Type: schema.TypeAny},
			},
		},
		&schema.Schema{
			Type:    "Audit",
			Fields:  []schema.Field{{Name: "action", Type: schema.TypeString}},
			NoCache: true,
		},
	)
	if err != nil {
		t.Fatalf("failed to register blog schemas: %v", err)
	}
	if err := registry.CheckRelations(); err != nil {
		t.Fatalf("relation check failed: %v", err)
	}
	return registry
}

type harness struct {
	log     *callLog
	storage *countingStorage
	cache   *countingCache
	store   *Store
}

func newHarness(t testing.TB, opts ...Option) *harness {
	t.Helper()

	log := &callLog{}
	h := &harness{
		log:     log,
		storage: &countingStorage{log: log, mem: storage.NewMemory()},
		cache:   &countingCache{log: log, data: make(map[string][]byte)},
	}

	opts = append([]Option{WithLogger(testsupport.NewTestLogger(t))}, opts...)
	store, err := New(blogRegistry(t), h.storage, h.cache, opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	h.store = store
	return h
}

// seedBlog loads the blog fixture straight into the memory adapter so
// seeding does not show up in the call log.
func (h *harness) seedBlog(t testing.TB) {
	t.Helper()
	testsupport.MustSeed(t, h.storage.mem, testsupport.LoadDataset(t, testsupport.FixturePath("blog.json")))
}
