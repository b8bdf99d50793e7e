package entitystore

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/storage"
)

func TestNew_RequiresRegistryAndStorage(t *testing.T) {
	registry := blogRegistry(t)

	if _, err := New(nil, storage.NewMemory(), nil); !IsBadInput(err) {
		t.Errorf("expected bad input for nil registry, got %v", err)
	}
	if _, err := New(registry, nil, nil); !IsBadInput(err) {
		t.Errorf("expected bad input for nil storage, got %v", err)
	}

	store, err := New(registry, storage.NewMemory(), nil)
	if err != nil {
		t.Fatalf("New() with nil cache failed: %v", err)
	}
	if store.Registry() != registry {
		t.Error("Registry() should return the registry passed to New")
	}
}

func TestStore_New(t *testing.T) {
	h := newHarness(t)

	user, err := h.store.New("User")
	if err != nil {
		t.Fatal(err)
	}
	if user.HasID() || user.Type() != "User" {
		t.Errorf("expected transient User without id, got %v %v", user.Type(), user.ID())
	}
	if calls := h.log.getCalls(); len(calls) != 0 {
		t.Errorf("New() must not perform I/O, got %v", calls)
	}

	if _, err := h.store.New("Nope"); !IsBadInput(err) {
		t.Errorf("expected bad input for unknown type, got %v", err)
	}
}

func TestStore_PersistThenHydrate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	user, _ := h.store.New("User")
	if err := user.SetFields(map[string]any{"name": "ada", "email": "ada@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := user.Persist(ctx); err != nil {
		t.Fatalf("Persist() failed: %v", err)
	}
	if user.ID() != int64(1) {
		t.Fatalf("expected generated id 1, got %#v", user.ID())
	}
	if got, want := h.log.getCalls(), []string{"Upsert User", "Set User_1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Persist() calls = %v, want %v", got, want)
	}

	h.log.clearCalls()
	cached, err := h.store.Hydrate(ctx, "User", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cached.Fields(), user.Fields()) {
		t.Errorf("cached fields = %v, want %v", cached.Fields(), user.Fields())
	}
	if h.log.count("Load") != 0 {
		t.Errorf("hydrate after write-through should not touch storage, got %v", h.log.getCalls())
	}

	// a store with a cold cache over the same rows sees the same values.
	cold, err := New(h.store.Registry(), h.storage.mem, nil)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := cold.Hydrate(ctx, "User", int64(1))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded.Fields(), user.Fields()) {
		t.Errorf("loaded fields = %v, want %v", loaded.Fields(), user.Fields())
	}
}

func TestStore_PersistUpdatesExistingRow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	user, err := h.store.Hydrate(ctx, "User", 5)
	if err != nil {
		t.Fatal(err)
	}
	if err := user.Set("name", "ada lovelace"); err != nil {
		t.Fatal(err)
	}
	if err := user.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	if n := h.storage.mem.Len("User"); n != 2 {
		t.Errorf("expected update in place, table has %d rows", n)
	}
	again, err := h.store.Hydrate(WithoutCache(ctx), "User", 5)
	if err != nil {
		t.Fatal(err)
	}
	if again.Get("name") != "ada lovelace" {
		t.Errorf("expected updated name, got %v", again.Get("name"))
	}
}

func TestStore_PartialUpdateCachesFullRow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	user, _ := h.store.New("User")
	if err := user.SetFields(map[string]any{"id": 5, "name": "ada lovelace"}); err != nil {
		t.Fatal(err)
	}
	if err := user.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	if got, want := h.log.getCalls(), []string{"Upsert User", "Load User", "Set User_5"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if user.Get("email") != "ada@example.com" {
		t.Errorf("entity should pick up the stored email, got %v", user.Get("email"))
	}

	h.log.clearCalls()
	cached, err := h.store.Hydrate(ctx, "User", 5)
	if err != nil {
		t.Fatal(err)
	}
	if h.log.count("Load") != 0 {
		t.Fatalf("expected a cache hit, got %v", h.log.getCalls())
	}
	want := map[string]any{"id": int64(5), "name": "ada lovelace", "email": "ada@example.com"}
	if !reflect.DeepEqual(cached.Fields(), want) {
		t.Errorf("cached fields = %v, want %v", cached.Fields(), want)
	}

	t.Run("reload failure drops the entry", func(t *testing.T) {
		h.storage.loadErr = errors.New("timeout")
		defer func() { h.storage.loadErr = nil }()

		partial, _ := h.store.New("User")
		_ = partial.SetFields(map[string]any{"id": 5, "name": "countess"})
		if err := partial.Persist(ctx); err != nil {
			t.Fatalf("a dropped entry is not a failure, got %v", err)
		}
		if h.cache.has("User_5") {
			t.Error("partial snapshot should not stay cached")
		}
	})
}

func TestStore_CacheEntityIsDeterministic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	entry, err := h.store.Hydrate(ctx, "Entry", 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.store.CacheEntity(ctx, entry); err != nil {
		t.Fatal(err)
	}
	first := h.cache.payload("Entry_1")
	for i := 0; i < 10; i++ {
		if err := h.store.CacheEntity(ctx, entry); err != nil {
			t.Fatal(err)
		}
		if next := h.cache.payload("Entry_1"); !bytes.Equal(first, next) {
			t.Fatalf("payload changed between writes:\n%x\n%x", first, next)
		}
	}
}

func TestStore_CacheEntityRequiresID(t *testing.T) {
	h := newHarness(t)
	user, _ := h.store.New("User")

	if err := h.store.CacheEntity(context.Background(), user); !IsBadInput(err) {
		t.Errorf("expected bad input, got %v", err)
	}
}

func TestStore_HydrateReadsCacheFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	if _, err := h.store.Hydrate(ctx, "User", 5); err != nil {
		t.Fatal(err)
	}
	if got, want := h.log.getCalls(), []string{"Get User_5", "Load User", "Set User_5"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("cold hydrate calls = %v, want %v", got, want)
	}

	h.log.clearCalls()
	user, err := h.store.Hydrate(ctx, "User", "5")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := h.log.getCalls(), []string{"Get User_5"}; !reflect.DeepEqual(got, want) {
		t.Errorf("warm hydrate calls = %v, want %v", got, want)
	}
	if user.ID() != int64(5) || user.Get("name") != "ada" {
		t.Errorf("unexpected cached user: %v", user.Fields())
	}
}

func TestStore_HydrateNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.store.Hydrate(context.Background(), "User", 42)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if h.log.count("Set") != 0 {
		t.Error("a miss in storage must not populate the cache")
	}
}

func TestStore_HydrateBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		typeName string
		id       any
	}{
		{"unknown type", "Nope", 1},
		{"nil id", "User", nil},
		{"id not coercible", "User", "five"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.store.Hydrate(ctx, tt.typeName, tt.id); !IsBadInput(err) {
				t.Errorf("expected bad input, got %v", err)
			}
		})
	}
}

func TestStore_CacheReadFailureFallsBackToStorage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)
	h.cache.getErr = errors.New("connection refused")

	user, err := h.store.Hydrate(ctx, "User", 5)
	if err != nil {
		t.Fatalf("cache read failure should degrade to storage, got %v", err)
	}
	if user.Get("name") != "ada" {
		t.Errorf("unexpected user: %v", user.Fields())
	}
	if h.log.count("Load User") != 1 {
		t.Errorf("expected one storage load, got %v", h.log.getCalls())
	}
}

func TestStore_UndecodablePayloadIsReplaced(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)
	h.cache.put("User_5", []byte("{not msgpack"))

	user, err := h.store.Hydrate(ctx, "User", 5)
	if err != nil {
		t.Fatalf("undecodable payload should degrade to storage, got %v", err)
	}
	if user.Get("name") != "ada" {
		t.Errorf("unexpected user: %v", user.Fields())
	}
	want := []string{"Get User_5", "Delete User_5", "Load User", "Set User_5"}
	if got := h.log.getCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if _, err := user.Schema().DecodeSnapshot(h.cache.payload("User_5")); err != nil {
		t.Errorf("cache entry was not replaced with a valid snapshot: %v", err)
	}
}

func TestStore_CachePopulateFailureStillReturnsEntity(t *testing.T) {
	h := newHarness(t)
	h.seedBlog(t)
	h.cache.setErr = errors.New("cache full")

	if _, err := h.store.Hydrate(context.Background(), "User", 5); err != nil {
		t.Errorf("populate failure should only be logged, got %v", err)
	}
}

func TestStore_StorageFailureIsAdapterFailure(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("disk on fire")
	h.storage.loadErr = boom

	_, err := h.store.Hydrate(context.Background(), "User", 5)
	if !IsAdapterFailure(err) {
		t.Fatalf("expected adapter failure, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("adapter failure should unwrap to the storage error")
	}
}

func TestStore_WithoutCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	if _, err := h.store.Hydrate(ctx, "User", 5); err != nil {
		t.Fatal(err)
	}
	h.log.clearCalls()

	if _, err := h.store.Hydrate(WithoutCache(ctx), "User", 5); err != nil {
		t.Fatal(err)
	}
	if got, want := h.log.getCalls(), []string{"Load User", "Set User_5"}; !reflect.DeepEqual(got, want) {
		t.Errorf("bypass calls = %v, want %v", got, want)
	}
}

func TestStore_NoCacheType(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	audit, _ := h.store.New("Audit")
	_ = audit.Set("action", "login")
	if err := audit.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.Hydrate(ctx, "Audit", audit.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := audit.Delete(ctx, nil); err != nil {
		t.Fatal(err)
	}

	for _, op := range []string{"Get", "Set", "Delete Audit_"} {
		if n := h.log.count(op); n != 0 {
			t.Errorf("no_cache type issued %d %q cache calls: %v", n, op, h.log.getCalls())
		}
	}
}

func TestStore_StringPrimaryKeys(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithIDGenerator(func() string { return "sess-1" }))

	session, _ := h.store.New("Session")
	_ = session.Set("data", map[string]any{"user": "ada"})
	if err := session.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	if session.ID() != "sess-1" {
		t.Fatalf("expected generated string id, got %#v", session.ID())
	}
	if !h.cache.has("Session_sess-1") {
		t.Error("expected write-through under the string key")
	}

	explicit, _ := h.store.New("Session")
	_ = explicit.Set("id", "chosen")
	if err := explicit.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	if explicit.ID() != "chosen" {
		t.Errorf("caller supplied id was replaced: %#v", explicit.ID())
	}

	found, err := h.store.FindOne(ctx, "Session", storage.Filter{"id": "sess-1"})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := found.Get("data").(map[string]any)
	if data["user"] != "ada" {
		t.Errorf("unexpected session data: %#v", found.Get("data"))
	}
}

func TestStore_PersistCacheFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("stale entry dropped", func(t *testing.T) {
		h := newHarness(t)
		h.cache.setErr = errors.New("cache full")

		user, _ := h.store.New("User")
		_ = user.Set("name", "ada")
		if err := user.Persist(ctx); err != nil {
			t.Fatalf("a dropped entry is not a failure, got %v", err)
		}
		if got, want := h.log.getCalls(), []string{"Upsert User", "Set User_1", "Delete User_1"}; !reflect.DeepEqual(got, want) {
			t.Errorf("calls = %v, want %v", got, want)
		}
	})

	t.Run("delete also fails", func(t *testing.T) {
		h := newHarness(t)
		h.cache.setErr = errors.New("cache full")
		h.cache.deleteErr = errors.New("cache gone")

		user, _ := h.store.New("User")
		_ = user.Set("name", "ada")
		err := user.Persist(ctx)
		if !IsAdapterFailure(err) {
			t.Fatalf("expected adapter failure, got %v", err)
		}
		if user.ID() != int64(1) {
			t.Error("the row was written, the entity should carry its id")
		}
	})
}

func TestStore_PersistStorageFailure(t *testing.T) {
	h := newHarness(t)
	h.storage.upsertErr = errors.New("constraint violation")

	user, _ := h.store.New("User")
	_ = user.Set("name", "ada")
	if err := user.Persist(context.Background()); !IsAdapterFailure(err) {
		t.Fatalf("expected adapter failure, got %v", err)
	}
	if user.HasID() {
		t.Error("failed persist must not assign an id")
	}
	if h.log.count("Set") != 0 {
		t.Error("failed persist must not write the cache")
	}
}

func TestStore_PersistValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("schema rules", func(t *testing.T) {
		h := newHarness(t)
		user, _ := h.store.New("User")

		if err := user.Persist(ctx); !IsValidation(err) {
			t.Fatalf("expected validation error for missing name, got %v", err)
		}
		if h.log.count("Upsert") != 0 {
			t.Error("invalid entity reached storage")
		}
	})

	t.Run("nop validator", func(t *testing.T) {
		h := newHarness(t, WithValidator(NopValidator{}))
		user, _ := h.store.New("User")

		if err := user.Persist(ctx); err != nil {
			t.Fatalf("NopValidator should accept, got %v", err)
		}
	})

	t.Run("plain errors become validation errors", func(t *testing.T) {
		h := newHarness(t, WithValidator(ValidatorFunc(func(context.Context, *schema.Schema, map[string]any) error {
			return errors.New("name is reserved")
		})))
		user, _ := h.store.New("User")
		_ = user.Set("name", "root")

		if err := user.Persist(ctx); !IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestStore_FindOne(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	entry, err := h.store.FindOne(ctx, "Entry", storage.Filter{"title": "Second"})
	if err != nil {
		t.Fatal(err)
	}
	if entry.ID() != int64(2) {
		t.Errorf("expected Entry 2, got %v", entry.ID())
	}

	if _, err := h.store.FindOne(ctx, "Entry", storage.Filter{"title": "missing"}); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := h.store.FindOne(ctx, "Entry", storage.Filter{"User_id": 5}); !IsAmbiguousMatch(err) {
		t.Errorf("expected ambiguous match, got %v", err)
	}
	if _, err := h.store.FindOne(ctx, "Nope", nil); !IsBadInput(err) {
		t.Errorf("expected bad input, got %v", err)
	}
}

func TestStore_FindAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	entries, err := h.store.FindAll(ctx, "Entry", storage.Filter{"Category_id": 7})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := entries.IDs(), []any{int64(1), int64(3)}; !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}

	all, err := h.store.FindAll(ctx, "Entry", nil)
	if err != nil {
		t.Fatal(err)
	}
	if all.Len() != 3 || all.Type() != "Entry" {
		t.Errorf("expected all 3 entries, got %d %s", all.Len(), all.Type())
	}

	h.storage.findErr = errors.New("timeout")
	if _, err := h.store.FindAll(ctx, "Entry", nil); !IsAdapterFailure(err) {
		t.Errorf("expected adapter failure, got %v", err)
	}
}

func TestStore_DeleteOwnRow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	user, err := h.store.Hydrate(ctx, "User", 6)
	if err != nil {
		t.Fatal(err)
	}
	h.log.clearCalls()

	n, err := user.Delete(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 row deleted, got %d", n)
	}
	if got, want := h.log.getCalls(), []string{"Delete User_6", "Delete User"}; !reflect.DeepEqual(got, want) {
		t.Errorf("delete order = %v, want cache before storage %v", got, want)
	}
	if h.cache.has("User_6") {
		t.Error("cache entry survived delete")
	}
	if _, err := h.store.Hydrate(ctx, "User", 6); !IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestStore_DeleteByFilter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	for _, id := range []int{1, 2, 3} {
		if _, err := h.store.Hydrate(ctx, "Entry", id); err != nil {
			t.Fatal(err)
		}
	}
	h.log.clearCalls()

	entry, _ := h.store.New("Entry")
	n, err := entry.Delete(ctx, storage.Filter{"User_id": 5})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows deleted, got %d", n)
	}
	want := []string{"FindAllIDs Entry", "Delete Entry_1", "Delete Entry_2", "Delete Entry"}
	if got := h.log.getCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if !h.cache.has("Entry_3") {
		t.Error("unmatched entry should stay cached")
	}
}

func TestStore_DeleteAbortsWhenInvalidationFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)
	h.cache.deleteErr = errors.New("cache gone")

	user, err := h.store.Hydrate(ctx, "User", 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := user.Delete(ctx, nil); !IsAdapterFailure(err) {
		t.Fatalf("expected adapter failure, got %v", err)
	}
	for _, call := range h.log.getCalls() {
		if call == "Delete User" {
			t.Errorf("storage delete ran after failed invalidation: %v", h.log.getCalls())
		}
	}
	if h.storage.mem.Len("User") != 2 {
		t.Error("row should still exist")
	}
}

func TestStore_DeleteRequiresIDOrFilter(t *testing.T) {
	h := newHarness(t)
	user, _ := h.store.New("User")

	if _, err := user.Delete(context.Background(), nil); !IsBadInput(err) {
		t.Errorf("expected bad input, got %v", err)
	}
}

func TestStore_InvalidateType(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t)
	if err := h.store.InvalidateType(ctx, "User"); !IsAdapterFailure(err) {
		t.Errorf("expected adapter failure for a cache without key enumeration, got %v", err)
	}
	if err := h.store.InvalidateType(ctx, "Nope"); !IsBadInput(err) {
		t.Errorf("expected bad input, got %v", err)
	}

	mem, err := cache.NewMemoryAdapter(cache.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	rows := storage.NewMemory()
	store, err := New(blogRegistry(t), rows, mem)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = rows.Upsert(ctx, "User", "id", storage.Row{"id": 1, "name": "ada"})
	_, _ = rows.Upsert(ctx, "Tag", "id", storage.Row{"id": 1, "name": "go"})
	if _, err := store.Hydrate(ctx, "User", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Hydrate(ctx, "Tag", 1); err != nil {
		t.Fatal(err)
	}

	if err := store.InvalidateType(ctx, "User"); err != nil {
		t.Fatal(err)
	}
	if _, err := mem.Get(ctx, "User_1"); !cache.IsMiss(err) {
		t.Errorf("expected User_1 to be invalidated, got %v", err)
	}
	if _, err := mem.Get(ctx, "Tag_1"); err != nil {
		t.Errorf("expected Tag_1 to stay cached, got %v", err)
	}
}

func TestStore_CompositeValuesKeepTheirShape(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithIDGenerator(func() string { return "sess-1" }))

	session, _ := h.store.New("Session")
	err := session.Set("data", map[string]any{
		"tags":   []string{"a", "b"},
		"counts": map[string]int{"x": 1},
		"score":  float32(1.5),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"tags":   []any{"a", "b"},
		"counts": map[string]any{"x": int64(1)},
		"score":  float64(1.5),
	}
	if !reflect.DeepEqual(session.Get("data"), want) {
		t.Fatalf("Set() stored %#v, want %#v", session.Get("data"), want)
	}
	if err := session.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	cached, err := h.store.Hydrate(ctx, "Session", "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if h.log.count("Load") != 0 {
		t.Fatalf("expected a cache hit, got %v", h.log.getCalls())
	}
	if !reflect.DeepEqual(cached.Fields(), session.Fields()) {
		t.Errorf("cached fields = %#v, want %#v", cached.Fields(), session.Fields())
	}

	cold, err := h.store.Hydrate(WithoutCache(ctx), "Session", "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cold.Fields(), session.Fields()) {
		t.Errorf("storage fields = %#v, want %#v", cold.Fields(), session.Fields())
	}
}

// A reader hydrating between the cache invalidation and the storage delete
// puts the doomed row back in the cache. The store does no locking, so the
// entry outlives the row until it expires or is invalidated again.
func TestStore_DeleteInterleavedWithHydrate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	user, err := h.store.Hydrate(ctx, "User", 6)
	if err != nil {
		t.Fatal(err)
	}
	h.storage.beforeDelete = func(ctx context.Context) {
		if _, err := h.store.Hydrate(ctx, "User", 6); err != nil {
			t.Errorf("interleaved hydrate failed: %v", err)
		}
	}
	h.log.clearCalls()

	if _, err := user.Delete(ctx, nil); err != nil {
		t.Fatal(err)
	}
	want := []string{"Delete User_6", "Delete User", "Get User_6", "Load User", "Set User_6"}
	if got := h.log.getCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if h.storage.mem.Len("User") != 1 {
		t.Error("row should be gone from storage")
	}
	if !h.cache.has("User_6") {
		t.Fatal("expected the interleaved read to re-cache the deleted row")
	}
	if _, err := h.store.Hydrate(ctx, "User", 6); err != nil {
		t.Errorf("stale entry should still be served, got %v", err)
	}

	if _, err := h.store.Hydrate(WithoutCache(ctx), "User", 6); !IsNotFound(err) {
		t.Errorf("expected storage to report the row deleted, got %v", err)
	}
}

// A cold read that loads a row just before a concurrent persist writes the
// old snapshot over the write-through entry.
func TestStore_PersistInterleavedWithHydrate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedBlog(t)

	h.storage.afterLoad = func(ctx context.Context) {
		writer, err := h.store.New("User")
		if err != nil {
			t.Error(err)
			return
		}
		if err := writer.SetFields(map[string]any{"id": 5, "name": "ada lovelace", "email": "ada@example.com"}); err != nil {
			t.Error(err)
			return
		}
		if err := writer.Persist(ctx); err != nil {
			t.Errorf("interleaved persist failed: %v", err)
		}
	}

	reader, err := h.store.Hydrate(ctx, "User", 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Get User_5", "Load User", "Upsert User", "Set User_5", "Set User_5"}
	if got := h.log.getCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if reader.Get("name") != "ada" {
		t.Errorf("reader should see the row it loaded, got %v", reader.Get("name"))
	}

	cached, err := h.store.Hydrate(ctx, "User", 5)
	if err != nil {
		t.Fatal(err)
	}
	if cached.Get("name") != "ada" {
		t.Errorf("expected the stale snapshot to win the race, got %v", cached.Get("name"))
	}
	fresh, err := h.store.Hydrate(WithoutCache(ctx), "User", 5)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Get("name") != "ada lovelace" {
		t.Errorf("storage should hold the persisted name, got %v", fresh.Get("name"))
	}
}
