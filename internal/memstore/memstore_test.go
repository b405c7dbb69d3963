package memstore_test

import (
	"testing"
	"time"

	"github.com/agnt-gg/slop-sub000/internal/clock"
	"github.com/agnt-gg/slop-sub000/internal/jsonval"
	"github.com/agnt-gg/slop-sub000/internal/memstore"
)

func int64ptr(v int64) *int64 { return &v }

func newStore(t *testing.T) (*memstore.Store, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	store := memstore.New(clk, nil)
	t.Cleanup(store.Close)
	return store, clk
}

func TestPutGetDelete(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	put := store.Put("k", jsonval.String("v"), memstore.Options{TTL: int64ptr(0)})
	if put.Key != "k" || put.Value.Str() != "v" {
		t.Fatalf("unexpected entry: %+v", put)
	}

	got, ok := store.Get("k")
	if !ok || got.Value.Str() != "v" {
		t.Fatalf("expected stored value, got %+v ok=%v", got, ok)
	}

	if !store.Delete("k") {
		t.Fatal("first delete should report found")
	}
	if store.Delete("k") {
		t.Fatal("second delete should report not found, not an error")
	}
	if _, ok := store.Get("k"); ok {
		t.Fatal("deleted key still visible")
	}
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	store, clk := newStore(t)
	store.Put("session", jsonval.String("token"), memstore.Options{TTL: int64ptr(5)})

	clk.Advance(4 * time.Second)
	if _, ok := store.Get("session"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	clk.Advance(time.Second)
	if _, ok := store.Get("session"); ok {
		t.Fatal("entry readable at TTL deadline")
	}
}

func TestTTLResetOnUpdate(t *testing.T) {
	t.Parallel()

	store, clk := newStore(t)
	store.Put("k", jsonval.String("a"), memstore.Options{TTL: int64ptr(10)})

	clk.Advance(8 * time.Second)
	if _, ok := store.Update("k", jsonval.String("b"), memstore.Options{}); !ok {
		t.Fatal("update should find the live entry")
	}

	// The TTL window restarts from the update.
	clk.Advance(8 * time.Second)
	if _, ok := store.Get("k"); !ok {
		t.Fatal("updated entry expired on the old window")
	}
	clk.Advance(2 * time.Second)
	if _, ok := store.Get("k"); ok {
		t.Fatal("entry survived its refreshed TTL")
	}
}

func TestSweepReconcilesExpired(t *testing.T) {
	t.Parallel()

	store, clk := newStore(t)
	store.Put("a", jsonval.String("1"), memstore.Options{TTL: int64ptr(3)})
	store.Put("b", jsonval.String("2"), memstore.Options{TTL: int64ptr(30)})
	store.Put("c", jsonval.String("3"), memstore.Options{})

	now := clk.Advance(10 * time.Second)
	removed := store.Sweep(now)
	if removed != 1 {
		t.Fatalf("expected 1 swept entry, got %d", removed)
	}
	if got := store.Keys(""); len(got) != 2 {
		t.Fatalf("expected 2 surviving keys, got %v", got)
	}
}

func TestUpdateMergesValueAndMetadata(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	store.Put("cfg", jsonval.Object(map[string]jsonval.Value{
		"host": jsonval.String("localhost"),
		"port": jsonval.Number(8080),
	}), memstore.Options{Metadata: map[string]jsonval.Value{"owner": jsonval.String("ops")}})

	got, ok := store.Update("cfg", jsonval.Object(map[string]jsonval.Value{
		"port": jsonval.Number(9341),
	}), memstore.Options{Metadata: map[string]jsonval.Value{"env": jsonval.String("dev")}})
	if !ok {
		t.Fatal("update should succeed")
	}
	fields := got.Value.Fields()
	if fields["host"].Str() != "localhost" || fields["port"].Num() != 9341 {
		t.Fatalf("merge result wrong: %v", got.Value.ToAny())
	}
	if got.Metadata["owner"].Str() != "ops" || got.Metadata["env"].Str() != "dev" {
		t.Fatalf("metadata merge wrong: %v", got.Metadata)
	}
}

func TestUpdateMissingKey(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	if _, ok := store.Update("nope", jsonval.String("x"), memstore.Options{}); ok {
		t.Fatal("update of a missing key must report not found")
	}
}

func TestKeysPrefix(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	store.Put("user:1", jsonval.String("a"), memstore.Options{})
	store.Put("user:2", jsonval.String("b"), memstore.Options{})
	store.Put("order:1", jsonval.String("c"), memstore.Options{})

	got := store.Keys("user:")
	if len(got) != 2 || got[0] != "user:1" || got[1] != "user:2" {
		t.Fatalf("unexpected keys: %v", got)
	}
	if all := store.Keys(""); len(all) != 3 {
		t.Fatalf("expected 3 keys, got %v", all)
	}
}

func TestQueryOrderingAndThreshold(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	store.Put("note:deploy", jsonval.String("deploy checklist for the staging cluster"), memstore.Options{})
	store.Put("note:partial", jsonval.String("cluster maintenance"), memstore.Options{})
	store.Put("note:off", jsonval.String("birthday party ideas"), memstore.Options{})

	results := store.Query("staging cluster deploy", 0, nil)
	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d: %+v", len(results), results)
	}
	if results[0].Key != "note:deploy" {
		t.Fatalf("expected strongest match first, got %q", results[0].Key)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("expected descending scores: %v", results)
	}

	limited := store.Query("staging cluster deploy", 1, nil)
	if len(limited) != 1 || limited[0].Key != "note:deploy" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestQueryKeyFilters(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	store.Put("app:alpha", jsonval.String("service alpha configuration"), memstore.Options{})
	store.Put("app:beta", jsonval.String("service beta configuration"), memstore.Options{})
	store.Put("job:alpha", jsonval.String("service alpha job configuration"), memstore.Options{})

	got := store.Query("service configuration", 0, &memstore.KeyFilter{Prefix: "app:"})
	for _, r := range got {
		if r.Key == "job:alpha" {
			t.Fatalf("prefix filter leaked %q", r.Key)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected both app keys, got %+v", got)
	}

	got = store.Query("service configuration", 0, &memstore.KeyFilter{NotContains: "beta"})
	for _, r := range got {
		if r.Key == "app:beta" {
			t.Fatalf("negated filter leaked %q", r.Key)
		}
	}
}

func TestQueryInvalidRegexIgnored(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	store.Put("k", jsonval.String("regex canary value"), memstore.Options{})

	got := store.Query("regex canary", 0, &memstore.KeyFilter{Regex: "(["})
	if len(got) != 1 {
		t.Fatalf("invalid regex should degrade to no filter, got %+v", got)
	}
}

func TestQueryProjectionExcludesKeys(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	store.Put("k1", jsonval.Object(map[string]jsonval.Value{
		"zanzibar": jsonval.String("plain text"),
	}), memstore.Options{})

	// The object key "zanzibar" is not part of memory's scored projection.
	if got := store.Query("zanzibar", 0, nil); len(got) != 0 {
		t.Fatalf("object keys leaked into the projection: %+v", got)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	store.Put("k", jsonval.Object(map[string]jsonval.Value{"a": jsonval.Number(1)}), memstore.Options{})
	got, _ := store.Get("k")
	got.Value.Fields()["a"] = jsonval.Number(99)

	fresh, _ := store.Get("k")
	if fresh.Value.Fields()["a"].Num() != 1 {
		t.Fatal("mutating a returned entry leaked into the store")
	}
}
