package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Compile-time assertion that DiskStore satisfies the Store interface.
var _ Store = (*DiskStore)(nil)

// DiskStore persists one JSON document per pattern in a flat directory,
// mirroring the file-per-pattern layout the capture tooling has always used.
// File names are derived from pattern names; the authoritative name is the
// one inside the document.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir, creating the directory if
// needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("library: pattern directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("library: create pattern directory %q: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save implements [Store.Save]. The document is written to a temporary file
// and renamed so a crash mid-write never leaves a truncated pattern behind.
func (s *DiskStore) Save(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("library: marshal pattern %q: %w", entry.Name, err)
	}

	path := s.path(entry.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("library: write pattern %q: %w", entry.Name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("library: rename pattern %q: %w", entry.Name, err)
	}
	return nil
}

// Load implements [Store.Load]. Unreadable or fingerprint-less documents are
// skipped with a warning rather than failing the whole load.
func (s *DiskStore) Load(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("library: read pattern directory %q: %w", s.dir, err)
	}

	var out []Entry
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}

		path := filepath.Join(s.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("library: skipping unreadable pattern file", "path", path, "err", err)
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			slog.Warn("library: skipping malformed pattern file", "path", path, "err", err)
			continue
		}
		if entry.Fingerprint.Empty() {
			slog.Warn("library: skipping pattern without fingerprint", "path", path, "name", entry.Name)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Delete implements [Store.Delete].
func (s *DiskStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("library: delete pattern %q: %w", name, err)
	}
	return nil
}

// path maps a pattern name to its document path. Characters outside
// [A-Za-z0-9._-] are replaced so names can never escape the directory.
func (s *DiskStore) path(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	return filepath.Join(s.dir, sanitized+".json")
}
