package library

import "context"

// Store persists pattern entries across restarts. The in-memory [Library]
// stays authoritative at runtime; a Store is written through on capture and
// removal and read once at startup.
type Store interface {
	// Save persists the entry, replacing any stored entry with the same name.
	Save(ctx context.Context, entry Entry) error

	// Load returns all persisted entries.
	Load(ctx context.Context) ([]Entry, error)

	// Delete removes the named entry. Deleting a missing entry is not an
	// error.
	Delete(ctx context.Context, name string) error
}
