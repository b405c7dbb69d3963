package resstore

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/agnt-gg/slop-sub000/internal/clock"
)

func newStore() (*Store, *clock.Manual) {
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	return New(clk, nil), clk
}

func TestRegisterGetDelete(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	store.Register("guide", Registration{
		Content:  "How to deploy the gateway",
		Type:     "document",
		Title:    "Deployment guide",
		Tags:     []string{"ops", "deploy"},
		Format:   "markdown",
		Metadata: map[string]string{"source": "wiki"},
	})

	got, ok := store.Get("guide")
	if !ok {
		t.Fatal("registered resource not found")
	}
	if got.Type != "document" || got.Source() != "wiki" || len(got.Tags) != 2 {
		t.Fatalf("unexpected resource: %+v", got)
	}
	if got.Metadata["last_updated"] == "" {
		t.Fatal("registration did not stamp last_updated")
	}

	if !store.Delete("guide") {
		t.Fatal("delete should report found")
	}
	if store.Delete("guide") {
		t.Fatal("second delete should report not found")
	}
	if _, ok := store.Get("guide"); ok {
		t.Fatal("deleted resource still visible")
	}
}

func TestAccessStatistics(t *testing.T) {
	t.Parallel()

	store, clk := newStore()
	store.Register("r", Registration{Content: "c"})

	first, _ := store.Get("r")
	clk.Advance(time.Minute)
	second, _ := store.Get("r")

	if first.AccessCount != 1 || second.AccessCount != 2 {
		t.Fatalf("access counts %d, %d", first.AccessCount, second.AccessCount)
	}
	if !second.LastAccessed.After(first.LastAccessed) {
		t.Fatal("last accessed timestamp did not advance")
	}

	peeked, _ := store.Peek("r")
	if peeked.AccessCount != 2 {
		t.Fatalf("peek should not count as access, got %d", peeked.AccessCount)
	}
}

func TestIndexBuckets(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	store.Register("a", Registration{Type: "doc", Tags: []string{"x"}, Metadata: map[string]string{"source": "s1"}})
	store.Register("b", Registration{Type: "doc", Tags: []string{"x", "y"}, Metadata: map[string]string{"source": "s2"}})
	store.Register("c", Registration{Type: "img", Tags: []string{"y"}})

	if got := store.ListByType("doc"); len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("type bucket wrong: %+v", got)
	}
	if got := store.ListByTag("y"); len(got) != 2 {
		t.Fatalf("tag bucket wrong: %+v", got)
	}
	if got := store.ListBySource("s1"); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("source bucket wrong: %+v", got)
	}
	if got := store.ListByType("missing"); len(got) != 0 {
		t.Fatalf("unknown bucket should be empty, got %+v", got)
	}
}

func TestRegisterRehomesIndexMembership(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	store.Register("r", Registration{Type: "doc", Tags: []string{"old"}, Metadata: map[string]string{"source": "s1"}})
	store.Register("r", Registration{Type: "img", Tags: []string{"new"}, Metadata: map[string]string{"source": "s2"}})

	if _, ok := store.byType["doc"]; ok {
		t.Fatal("stale type bucket survived replace")
	}
	if _, ok := store.byTag["old"]; ok {
		t.Fatal("stale tag bucket survived replace")
	}
	if _, ok := store.bySource["s1"]; ok {
		t.Fatal("stale source bucket survived replace")
	}
	if got := store.ListByType("img"); len(got) != 1 {
		t.Fatalf("replacement not indexed: %+v", got)
	}
}

func TestUpdateTags(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	store.Register("r", Registration{Tags: []string{"a", "b"}})

	got, ok := store.UpdateTags("r", []string{"b", "c"})
	if !ok || len(got.Tags) != 2 {
		t.Fatalf("update tags: ok=%v tags=%v", ok, got.Tags)
	}
	if _, present := store.byTag["a"]; present {
		t.Fatal("removed tag still has a bucket")
	}
	if got := store.ListByTag("c"); len(got) != 1 {
		t.Fatalf("new tag not indexed: %+v", got)
	}
	if _, ok := store.UpdateTags("nope", nil); ok {
		t.Fatal("update tags on unknown id should report not found")
	}
}

func TestUpdateMetadataRehomesSource(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	store.Register("r", Registration{Metadata: map[string]string{"source": "s1", "lang": "en"}})

	got, ok := store.UpdateMetadata("r", map[string]string{"source": "s2"})
	if !ok {
		t.Fatal("update metadata should succeed")
	}
	if got.Metadata["lang"] != "en" {
		t.Fatal("metadata merge dropped an untouched key")
	}
	if _, present := store.bySource["s1"]; present {
		t.Fatal("stale source bucket survived metadata update")
	}
	if got := store.ListBySource("s2"); len(got) != 1 {
		t.Fatalf("new source not indexed: %+v", got)
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	store.Register("deploy-guide", Registration{
		Content: "step by step deployment of the staging cluster",
		Type:    "document",
		Tags:    []string{"ops"},
	})
	store.Register("cluster-notes", Registration{
		Content: "cluster sizing notes",
		Type:    "document",
		Tags:    []string{"ops"},
	})
	store.Register("logo", Registration{
		Content: "binary image data",
		Type:    "image",
	})

	results := store.Search("staging cluster deployment", 0, SearchFilter{})
	if len(results) < 2 || results[0].ID != "deploy-guide" {
		t.Fatalf("unexpected search results: %+v", results)
	}
	for _, r := range results {
		if r.ID == "logo" {
			t.Fatal("unrelated resource scored above threshold")
		}
	}

	filtered := store.Search("cluster", 0, SearchFilter{Type: "image"})
	if len(filtered) != 0 {
		t.Fatalf("type pre-filter leaked: %+v", filtered)
	}
	tagged := store.Search("cluster", 0, SearchFilter{Tag: "ops"})
	for _, r := range tagged {
		if r.ID == "logo" {
			t.Fatal("tag pre-filter leaked")
		}
	}
}

func TestSearchMatchesIDAndTags(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	store.Register("zanzibar-map", Registration{Content: "coastline polygons", Tags: []string{"geography"}})

	if got := store.Search("zanzibar geography", 0, SearchFilter{}); len(got) != 1 {
		t.Fatalf("id and tags should be part of the scored text, got %+v", got)
	}
}

// TestIndexIntegrityUnderRandomOps drives a random mix of register, replace,
// update-tags, update-metadata and delete operations, then verifies that
// every index bucket member's current state matches its bucket and that no
// bucket is empty-but-present.
func TestIndexIntegrityUnderRandomOps(t *testing.T) {
	t.Parallel()

	store, _ := newStore()
	rng := rand.New(rand.NewSource(42))
	ids := []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7"}
	types := []string{"", "doc", "img", "note"}
	sources := []string{"", "s1", "s2"}
	tagPool := []string{"a", "b", "c", "d"}

	randomTags := func() []string {
		var tags []string
		for _, tag := range tagPool {
			if rng.Intn(2) == 0 {
				tags = append(tags, tag)
			}
		}
		return tags
	}

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(4) {
		case 0:
			meta := map[string]string{}
			if src := sources[rng.Intn(len(sources))]; src != "" {
				meta["source"] = src
			}
			store.Register(id, Registration{
				Content:  fmt.Sprintf("content %d", i),
				Type:     types[rng.Intn(len(types))],
				Tags:     randomTags(),
				Metadata: meta,
			})
		case 1:
			store.UpdateTags(id, randomTags())
		case 2:
			store.UpdateMetadata(id, map[string]string{"source": sources[rng.Intn(len(sources))]})
		case 3:
			store.Delete(id)
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	checkBuckets := func(name string, index map[string]map[string]struct{}, matches func(*record, string) bool) {
		for key, bucket := range index {
			if len(bucket) == 0 {
				t.Fatalf("%s index has empty bucket %q", name, key)
			}
			for id := range bucket {
				rec, ok := store.entries[id]
				if !ok {
					t.Fatalf("%s bucket %q references deleted id %q", name, key, id)
				}
				if !matches(rec, key) {
					t.Fatalf("%s bucket %q has stale member %q", name, key, id)
				}
			}
		}
	}

	checkBuckets("type", store.byType, func(rec *record, key string) bool {
		return rec.typ == key
	})
	checkBuckets("source", store.bySource, func(rec *record, key string) bool {
		return rec.metadata["source"] == key
	})
	checkBuckets("tag", store.byTag, func(rec *record, key string) bool {
		for _, tag := range rec.tags {
			if tag == key {
				return true
			}
		}
		return false
	})

	// The reverse direction: every live attribute appears in its bucket.
	for id, rec := range store.entries {
		if rec.typ != "" {
			if _, ok := store.byType[rec.typ][id]; !ok {
				t.Fatalf("id %q missing from type bucket %q", id, rec.typ)
			}
		}
		if src := rec.metadata["source"]; src != "" {
			if _, ok := store.bySource[src][id]; !ok {
				t.Fatalf("id %q missing from source bucket %q", id, src)
			}
		}
		for _, tag := range rec.tags {
			if _, ok := store.byTag[tag][id]; !ok {
				t.Fatalf("id %q missing from tag bucket %q", id, tag)
			}
		}
	}
}
