// Package memstore implements the in-process key/value store with TTL expiry
// and heuristic relevance queries.
package memstore

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/agnt-gg/slop-sub000/internal/clock"
	"github.com/agnt-gg/slop-sub000/internal/jsonval"
	"github.com/agnt-gg/slop-sub000/internal/relevance"
	"github.com/agnt-gg/slop-sub000/internal/svcfields"
)

// Entry is the externally visible snapshot of one stored key. Values and
// metadata are deep copies; mutating a returned Entry never touches the store.
type Entry struct {
	Key        string
	Value      jsonval.Value
	Metadata   map[string]jsonval.Value
	CreatedAt  time.Time
	UpdatedAt  time.Time
	TTLSeconds int64
}

// Options carries the optional write parameters. A nil TTL leaves the
// current TTL untouched on update and means "never expires" on first store.
type Options struct {
	TTL      *int64
	Metadata map[string]jsonval.Value
}

// ScoredEntry pairs an entry with its query relevance score.
type ScoredEntry struct {
	Entry
	Score float64
}

// KeyFilter restricts query candidates by key shape. An invalid Regex is
// ignored rather than reported; the query proceeds unfiltered by it.
type KeyFilter struct {
	Prefix      string
	Suffix      string
	Contains    string
	NotContains string
	Regex       string
}

type record struct {
	value      jsonval.Value
	metadata   map[string]jsonval.Value
	createdAt  time.Time
	updatedAt  time.Time
	ttlSeconds int64
	gen        uint64
}

// Store is the memory store. One instance is owned by the gateway and shared
// by reference with every consumer; all operations are safe for concurrent
// use and atomic with respect to each other.
type Store struct {
	mu      sync.Mutex
	entries map[string]*record
	cancels map[string]chan struct{}
	clock   clock.Clock
	logger  pslog.Logger
	closed  bool
}

// New returns an empty store using clk for expiry decisions.
func New(clk clock.Clock, logger pslog.Logger) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &Store{
		entries: make(map[string]*record),
		cancels: make(map[string]chan struct{}),
		clock:   clk,
		logger:  svcfields.WithSubsystem(logger, "store.memory"),
	}
}

// Close cancels every pending deferred deletion. Entries remain readable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, cancel := range s.cancels {
		close(cancel)
		delete(s.cancels, key)
	}
}

// Put creates or replaces key. The returned Entry reflects the stored state.
func (s *Store) Put(key string, value jsonval.Value, opts Options) Entry {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.entries[key]
	if !exists {
		rec = &record{createdAt: now}
		s.entries[key] = rec
	}
	rec.value = value.Clone()
	rec.metadata = cloneMetadata(opts.Metadata)
	rec.updatedAt = now
	if opts.TTL != nil {
		rec.ttlSeconds = *opts.TTL
	} else if !exists {
		rec.ttlSeconds = 0
	}
	rec.gen++
	s.scheduleExpiryLocked(key, rec)
	return snapshot(key, rec)
}

// Update merges value and metadata into an existing key and resets its TTL
// window. It reports false when the key does not exist.
func (s *Store) Update(key string, value jsonval.Value, opts Options) (Entry, bool) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.liveLocked(key, now)
	if !ok {
		return Entry{}, false
	}
	rec.value = rec.value.Merge(value)
	if len(opts.Metadata) > 0 {
		if rec.metadata == nil {
			rec.metadata = make(map[string]jsonval.Value, len(opts.Metadata))
		}
		for k, v := range opts.Metadata {
			rec.metadata[k] = v.Clone()
		}
	}
	if opts.TTL != nil {
		rec.ttlSeconds = *opts.TTL
	}
	rec.updatedAt = now
	rec.gen++
	s.scheduleExpiryLocked(key, rec)
	return snapshot(key, rec), true
}

// Get returns the entry for key. Entries past their TTL are treated as
// deleted even if neither the deferred deletion nor the sweep has fired yet.
func (s *Store) Get(key string) (Entry, bool) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.liveLocked(key, now)
	if !ok {
		return Entry{}, false
	}
	return snapshot(key, rec), true
}

// Delete removes key and reports whether it existed. Deleting an absent key
// is not an error; it just reports false.
func (s *Store) Delete(key string) bool {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liveLocked(key, now)
	if !ok {
		return false
	}
	s.removeLocked(key)
	return true
}

// Keys lists live keys, optionally restricted to a prefix, in sorted order.
func (s *Store) Keys(prefix string) []string {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for key, rec := range s.entries {
		if expired(rec, now) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.entries {
		if !expired(rec, now) {
			n++
		}
	}
	return n
}

// Query scores live entries against text and returns matches above the
// relevance threshold, best first, truncated to limit when limit > 0.
func (s *Store) Query(text string, limit int, filter *KeyFilter) []ScoredEntry {
	now := s.clock.Now()
	var rx *regexp.Regexp
	if filter != nil && filter.Regex != "" {
		compiled, err := regexp.Compile(filter.Regex)
		if err == nil {
			rx = compiled
		} else {
			s.logger.Debug("memory.query.invalid_regex", "pattern", filter.Regex, "error", err)
		}
	}

	s.mu.Lock()
	results := make([]ScoredEntry, 0, len(s.entries))
	for key, rec := range s.entries {
		if expired(rec, now) {
			continue
		}
		if filter != nil && !matchKey(key, filter, rx) {
			continue
		}
		score := relevance.Score(text, rec.value.Flatten(false))
		if score <= relevance.MinScore {
			continue
		}
		results = append(results, ScoredEntry{Entry: snapshot(key, rec), Score: score})
	}
	s.mu.Unlock()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Key < results[j].Key
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Sweep removes every entry whose TTL window has closed as of now and
// returns the number removed. It reconciles entries whose deferred deletion
// never fired, for example because the store was rebuilt under a new
// scheduler.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.entries {
		if expired(rec, now) {
			s.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("memory.sweep.expired", "removed", removed)
	}
	return removed
}

func (s *Store) liveLocked(key string, now time.Time) (*record, bool) {
	rec, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if expired(rec, now) {
		s.removeLocked(key)
		return nil, false
	}
	return rec, true
}

func (s *Store) removeLocked(key string) {
	delete(s.entries, key)
	if cancel, ok := s.cancels[key]; ok {
		close(cancel)
		delete(s.cancels, key)
	}
}

// scheduleExpiryLocked replaces any pending deferred deletion for key. At
// most one deletion is scheduled per key; a newer TTL always supersedes.
func (s *Store) scheduleExpiryLocked(key string, rec *record) {
	if cancel, ok := s.cancels[key]; ok {
		close(cancel)
		delete(s.cancels, key)
	}
	if rec.ttlSeconds <= 0 || s.closed {
		return
	}
	cancel := make(chan struct{})
	s.cancels[key] = cancel
	gen := rec.gen
	ttl := time.Duration(rec.ttlSeconds) * time.Second
	go func() {
		select {
		case <-s.clock.After(ttl):
		case <-cancel:
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		current, ok := s.entries[key]
		if !ok || current.gen != gen {
			return
		}
		s.removeLocked(key)
		s.logger.Trace("memory.expire.deferred", "key", key)
	}()
}

func expired(rec *record, now time.Time) bool {
	if rec.ttlSeconds <= 0 {
		return false
	}
	return !now.Before(rec.updatedAt.Add(time.Duration(rec.ttlSeconds) * time.Second))
}

func matchKey(key string, f *KeyFilter, rx *regexp.Regexp) bool {
	if f.Prefix != "" && !strings.HasPrefix(key, f.Prefix) {
		return false
	}
	if f.Suffix != "" && !strings.HasSuffix(key, f.Suffix) {
		return false
	}
	if f.Contains != "" && !strings.Contains(key, f.Contains) {
		return false
	}
	if f.NotContains != "" && strings.Contains(key, f.NotContains) {
		return false
	}
	if rx != nil && !rx.MatchString(key) {
		return false
	}
	return true
}

func snapshot(key string, rec *record) Entry {
	return Entry{
		Key:        key,
		Value:      rec.value.Clone(),
		Metadata:   cloneMetadata(rec.metadata),
		CreatedAt:  rec.createdAt,
		UpdatedAt:  rec.updatedAt,
		TTLSeconds: rec.ttlSeconds,
	}
}

func cloneMetadata(m map[string]jsonval.Value) map[string]jsonval.Value {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]jsonval.Value, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}
