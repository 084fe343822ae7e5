// Package library maintains the in-memory collection of captured commercial
// patterns and their persistence.
//
// The [Library] is the only structure shared between the detection worker
// (which reads entries during match evaluation) and external callers (which
// add and remove patterns at runtime), so all access is synchronised with a
// reader-writer lock. Evaluations operate on copied snapshots: an entry is
// either fully present or fully absent to a given evaluation, never torn.
package library

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mutecast/mutecast/pkg/provider/fingerprint"
)

// ErrEmptyFingerprint is returned by Add when the entry carries no
// fingerprint. Patterns that failed fingerprinting upstream are never
// inserted.
var ErrEmptyFingerprint = errors.New("library: entry has empty fingerprint")

// Metadata describes a captured pattern. Written once at capture time.
type Metadata struct {
	// Duration of the captured sample.
	Duration time.Duration `json:"duration"`

	// SampleRate the sample was recorded at, in Hz.
	SampleRate int `json:"sample_rate"`

	// Channels of the recording.
	Channels int `json:"channels"`

	// CreatedAt is the capture timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Entry is a named pattern with its acoustic signature. Entries are never
// mutated after creation; replacement happens by re-adding under the same
// name.
type Entry struct {
	// Name uniquely identifies the pattern within the library.
	Name string `json:"name"`

	// Fingerprint is the opaque signature produced by the fingerprint
	// provider. Always non-empty for stored entries.
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`

	// Metadata carries the capture parameters.
	Metadata Metadata `json:"metadata"`
}

// clone returns a deep copy of the entry so callers cannot mutate library
// state through returned values.
func (e Entry) clone() Entry {
	fp := make(fingerprint.Fingerprint, len(e.Fingerprint))
	copy(fp, e.Fingerprint)
	e.Fingerprint = fp
	return e
}

// Info is the fingerprint-free view of an entry returned by [Library.List].
type Info struct {
	Name     string   `json:"name"`
	Metadata Metadata `json:"metadata"`
}

// Library is the thread-safe, in-memory pattern collection.
// The zero value is ready to use.
type Library struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an initialised empty [Library].
func New() *Library {
	return &Library{entries: make(map[string]Entry)}
}

// Add inserts an entry under entry.Name, overwriting any existing entry with
// the same name (last write wins, not an error). Entries with an empty
// fingerprint are rejected with [ErrEmptyFingerprint].
func (l *Library) Add(entry Entry) error {
	if entry.Fingerprint.Empty() {
		return ErrEmptyFingerprint
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries == nil {
		l.entries = make(map[string]Entry)
	}
	l.entries[entry.Name] = entry.clone()
	return nil
}

// Remove deletes the entry with the given name. Returns true if an entry
// existed and was removed, false otherwise. Idempotent.
func (l *Library) Remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[name]; !ok {
		return false
	}
	delete(l.entries, name)
	return true
}

// Get returns a copy of the named entry.
func (l *Library) Get(name string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[name]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// List returns a snapshot of the current entries as fingerprint-free [Info]
// values, sorted by name.
func (l *Library) List() []Info {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Info, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, Info{Name: e.Name, Metadata: e.Metadata})
	}
	sortInfos(out)
	return out
}

// Entries returns a deep-copied snapshot of all entries, sorted by name, for
// match evaluation. The fixed order makes "first entry wins ties"
// deterministic.
func (l *Library) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.clone())
	}
	sortEntries(out)
	return out
}

// Len returns the number of stored entries.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func sortInfos(infos []Info) {
	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(a.Name, b.Name)
	})
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
}
