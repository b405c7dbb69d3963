// Package resstore implements the resource catalog: a primary map of content
// items plus type, tag and source secondary indices that are kept in lockstep
// with every mutation.
package resstore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/agnt-gg/slop-sub000/internal/clock"
	"github.com/agnt-gg/slop-sub000/internal/relevance"
	"github.com/agnt-gg/slop-sub000/internal/svcfields"
)

// Resource is the externally visible snapshot of one catalog item. Slices
// and maps are copies; mutating a returned Resource never touches the store.
type Resource struct {
	ID          string
	Content     string
	Type        string
	Title       string
	Name        string
	Description string
	Tags        []string
	Format      string
	Metadata    map[string]string

	CreatedAt    time.Time
	UpdatedAt    time.Time
	AccessCount  int64
	LastAccessed time.Time
}

// Source returns the metadata source attribution, if any.
func (r Resource) Source() string { return r.Metadata["source"] }

// ScoredResource pairs a resource with its search relevance score.
type ScoredResource struct {
	Resource
	Score float64
}

// SearchFilter narrows search candidates before scoring. Empty fields do
// not filter.
type SearchFilter struct {
	Type   string
	Source string
	Tag    string
}

// Registration carries the caller-supplied fields of a register or replace.
type Registration struct {
	Content     string
	Type        string
	Title       string
	Name        string
	Description string
	Tags        []string
	Format      string
	Metadata    map[string]string
}

type record struct {
	content      string
	typ          string
	title        string
	name         string
	description  string
	tags         []string
	format       string
	metadata     map[string]string
	createdAt    time.Time
	updatedAt    time.Time
	accessCount  int64
	lastAccessed time.Time
}

// Store is the resource catalog. Every mutation updates the primary map and
// all three secondary indices under the same lock, so readers never observe
// an index bucket referencing a stale type, tag or source.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*record
	byType   map[string]map[string]struct{}
	byTag    map[string]map[string]struct{}
	bySource map[string]map[string]struct{}
	clock    clock.Clock
	logger   pslog.Logger
}

// New returns an empty catalog using clk for timestamps.
func New(clk clock.Clock, logger pslog.Logger) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &Store{
		entries:  make(map[string]*record),
		byType:   make(map[string]map[string]struct{}),
		byTag:    make(map[string]map[string]struct{}),
		bySource: make(map[string]map[string]struct{}),
		clock:    clk,
		logger:   svcfields.WithSubsystem(logger, "store.resources"),
	}
}

// Register creates or replaces the resource id. Replacing re-homes the id in
// every index bucket whose key changed.
func (s *Store) Register(id string, reg Registration) Resource {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.entries[id]
	if exists {
		s.unindexLocked(id, rec)
	} else {
		rec = &record{createdAt: now}
		s.entries[id] = rec
	}
	rec.content = reg.Content
	rec.typ = reg.Type
	rec.title = reg.Title
	rec.name = reg.Name
	rec.description = reg.Description
	rec.tags = cloneTags(reg.Tags)
	rec.format = reg.Format
	rec.metadata = cloneMetadata(reg.Metadata)
	if rec.metadata == nil {
		rec.metadata = make(map[string]string, 1)
	}
	rec.metadata["last_updated"] = now.Format(time.RFC3339)
	rec.updatedAt = now
	s.indexLocked(id, rec)
	return snapshot(id, rec)
}

// Get returns the resource id and records the access. It reports false when
// the id is not registered.
func (s *Store) Get(id string) (Resource, bool) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return Resource{}, false
	}
	rec.accessCount++
	rec.lastAccessed = now
	return snapshot(id, rec), true
}

// Peek returns the resource id without touching its access statistics.
func (s *Store) Peek(id string) (Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return Resource{}, false
	}
	return snapshot(id, rec), true
}

// List returns every resource sorted by id. Listing does not count as an
// access.
func (s *Store) List() []Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Resource, 0, len(s.entries))
	for id, rec := range s.entries {
		out = append(out, snapshot(id, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByType returns the resources in the given type bucket, sorted by id.
func (s *Store) ListByType(typ string) []Resource {
	return s.listBucket(s.byTypeBucket, typ)
}

// ListByTag returns the resources carrying tag, sorted by id.
func (s *Store) ListByTag(tag string) []Resource {
	return s.listBucket(s.byTagBucket, tag)
}

// ListBySource returns the resources attributed to source, sorted by id.
func (s *Store) ListBySource(source string) []Resource {
	return s.listBucket(s.bySourceBucket, source)
}

func (s *Store) byTypeBucket(key string) map[string]struct{}   { return s.byType[key] }
func (s *Store) byTagBucket(key string) map[string]struct{}    { return s.byTag[key] }
func (s *Store) bySourceBucket(key string) map[string]struct{} { return s.bySource[key] }

func (s *Store) listBucket(bucket func(string) map[string]struct{}, key string) []Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := bucket(key)
	out := make([]Resource, 0, len(ids))
	for id := range ids {
		if rec, ok := s.entries[id]; ok {
			out = append(out, snapshot(id, rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes id from the catalog and every index bucket it belongs to.
// It reports whether the id existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return false
	}
	s.unindexLocked(id, rec)
	delete(s.entries, id)
	return true
}

// UpdateTags replaces the tag set of id, removing its membership from tag
// buckets it no longer carries. It reports false when the id is unknown.
func (s *Store) UpdateTags(id string, tags []string) (Resource, bool) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return Resource{}, false
	}
	for _, tag := range rec.tags {
		s.dropMember(s.byTag, tag, id)
	}
	rec.tags = cloneTags(tags)
	for _, tag := range rec.tags {
		s.addMember(s.byTag, tag, id)
	}
	rec.metadata["last_updated"] = now.Format(time.RFC3339)
	rec.updatedAt = now
	return snapshot(id, rec), true
}

// UpdateMetadata merges meta into the resource's metadata. Changing the
// source key re-homes the id in the source index. It reports false when the
// id is unknown.
func (s *Store) UpdateMetadata(id string, meta map[string]string) (Resource, bool) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return Resource{}, false
	}
	oldSource := rec.metadata["source"]
	for k, v := range meta {
		rec.metadata[k] = v
	}
	rec.metadata["last_updated"] = now.Format(time.RFC3339)
	if newSource := rec.metadata["source"]; newSource != oldSource {
		if oldSource != "" {
			s.dropMember(s.bySource, oldSource, id)
		}
		if newSource != "" {
			s.addMember(s.bySource, newSource, id)
		}
	}
	rec.updatedAt = now
	return snapshot(id, rec), true
}

// Len reports the number of registered resources.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Search scores resources against text after applying the filter's type,
// source and tag pre-filters, and returns matches above the relevance
// threshold, best first, truncated to limit when limit > 0. Searching does
// not count as an access.
func (s *Store) Search(text string, limit int, filter SearchFilter) []ScoredResource {
	s.mu.Lock()
	results := make([]ScoredResource, 0, len(s.entries))
	for id, rec := range s.entries {
		if !matchFilter(rec, filter) {
			continue
		}
		score := relevance.Score(text, searchText(id, rec))
		if score <= relevance.MinScore {
			continue
		}
		results = append(results, ScoredResource{Resource: snapshot(id, rec), Score: score})
	}
	s.mu.Unlock()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (s *Store) indexLocked(id string, rec *record) {
	if rec.typ != "" {
		s.addMember(s.byType, rec.typ, id)
	}
	for _, tag := range rec.tags {
		s.addMember(s.byTag, tag, id)
	}
	if source := rec.metadata["source"]; source != "" {
		s.addMember(s.bySource, source, id)
	}
}

func (s *Store) unindexLocked(id string, rec *record) {
	if rec.typ != "" {
		s.dropMember(s.byType, rec.typ, id)
	}
	for _, tag := range rec.tags {
		s.dropMember(s.byTag, tag, id)
	}
	if source := rec.metadata["source"]; source != "" {
		s.dropMember(s.bySource, source, id)
	}
}

func (s *Store) addMember(index map[string]map[string]struct{}, key, id string) {
	bucket, ok := index[key]
	if !ok {
		bucket = make(map[string]struct{}, 1)
		index[key] = bucket
	}
	bucket[id] = struct{}{}
}

// dropMember removes id from the bucket and deletes the bucket once empty,
// so an index never carries an empty-but-present key.
func (s *Store) dropMember(index map[string]map[string]struct{}, key, id string) {
	bucket, ok := index[key]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(index, key)
	}
}

func matchFilter(rec *record, f SearchFilter) bool {
	if f.Type != "" && rec.typ != f.Type {
		return false
	}
	if f.Source != "" && rec.metadata["source"] != f.Source {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, tag := range rec.tags {
			if tag == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func searchText(id string, rec *record) string {
	parts := make([]string, 0, 6+len(rec.tags))
	parts = append(parts, id)
	for _, p := range []string{rec.content, rec.title, rec.name, rec.description} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, rec.tags...)
	return strings.Join(parts, " ")
}

func snapshot(id string, rec *record) Resource {
	return Resource{
		ID:           id,
		Content:      rec.content,
		Type:         rec.typ,
		Title:        rec.title,
		Name:         rec.name,
		Description:  rec.description,
		Tags:         cloneTags(rec.tags),
		Format:       rec.format,
		Metadata:     cloneMetadata(rec.metadata),
		CreatedAt:    rec.createdAt,
		UpdatedAt:    rec.updatedAt,
		AccessCount:  rec.accessCount,
		LastAccessed: rec.lastAccessed,
	}
}

func cloneTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
