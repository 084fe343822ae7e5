package library_test

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mutecast/mutecast/internal/library"
)

func testEntry(name string) library.Entry {
	return library.Entry{
		Name:        name,
		Fingerprint: []byte("fp-" + name),
		Metadata: library.Metadata{
			Duration:   30 * time.Second,
			SampleRate: 44100,
			Channels:   1,
			CreatedAt:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestLibrary_AddAndGet(t *testing.T) {
	lib := library.New()
	if err := lib.Add(testEntry("soda")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, ok := lib.Get("soda")
	if !ok {
		t.Fatal("Get returned false for stored entry")
	}
	if !bytes.Equal(got.Fingerprint, []byte("fp-soda")) {
		t.Errorf("Fingerprint = %q, want %q", got.Fingerprint, "fp-soda")
	}
	if got.Metadata.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", got.Metadata.SampleRate)
	}
}

func TestLibrary_AddRejectsEmptyFingerprint(t *testing.T) {
	lib := library.New()
	err := lib.Add(library.Entry{Name: "broken"})
	if !errors.Is(err, library.ErrEmptyFingerprint) {
		t.Errorf("Add = %v, want ErrEmptyFingerprint", err)
	}
	if lib.Len() != 0 {
		t.Errorf("Len = %d after rejected Add, want 0", lib.Len())
	}
}

func TestLibrary_AddOverwrites(t *testing.T) {
	lib := library.New()
	lib.Add(testEntry("soda"))

	updated := testEntry("soda")
	updated.Fingerprint = []byte("fp-v2")
	if err := lib.Add(updated); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if lib.Len() != 1 {
		t.Errorf("Len = %d, want 1 (overwrite, not duplicate)", lib.Len())
	}
	got, _ := lib.Get("soda")
	if !bytes.Equal(got.Fingerprint, []byte("fp-v2")) {
		t.Errorf("Fingerprint = %q, want last write %q", got.Fingerprint, "fp-v2")
	}
}

func TestLibrary_RemoveIsIdempotent(t *testing.T) {
	lib := library.New()
	lib.Add(testEntry("soda"))

	if !lib.Remove("soda") {
		t.Error("Remove returned false for existing entry")
	}
	if lib.Remove("soda") {
		t.Error("second Remove returned true")
	}
	if lib.Remove("never-existed") {
		t.Error("Remove returned true for unknown entry")
	}
}

func TestLibrary_ListSortedWithoutFingerprints(t *testing.T) {
	lib := library.New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		lib.Add(testEntry(name))
	}

	infos := lib.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(infos) != len(want) {
		t.Fatalf("List returned %d entries, want %d", len(infos), len(want))
	}
	for i, name := range want {
		if infos[i].Name != name {
			t.Errorf("List[%d].Name = %q, want %q", i, infos[i].Name, name)
		}
	}
}

func TestLibrary_EntriesSnapshotIsIsolated(t *testing.T) {
	lib := library.New()
	lib.Add(testEntry("soda"))

	entries := lib.Entries()
	entries[0].Fingerprint[0] = 'X'

	got, _ := lib.Get("soda")
	if !bytes.Equal(got.Fingerprint, []byte("fp-soda")) {
		t.Error("mutating a snapshot changed library state")
	}
}

func TestLibrary_EntriesSortedByName(t *testing.T) {
	lib := library.New()
	for _, name := range []string{"b", "c", "a"} {
		lib.Add(testEntry(name))
	}

	entries := lib.Entries()
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].Name != want {
			t.Errorf("Entries[%d].Name = %q, want %q", i, entries[i].Name, want)
		}
	}
}

func TestLibrary_ZeroValueUsable(t *testing.T) {
	var lib library.Library
	if err := lib.Add(testEntry("soda")); err != nil {
		t.Fatalf("Add on zero value: %v", err)
	}
	if lib.Len() != 1 {
		t.Errorf("Len = %d, want 1", lib.Len())
	}
}

func TestLibrary_ConcurrentAccess(t *testing.T) {
	lib := library.New()
	lib.Add(testEntry("stable"))

	stop := make(chan struct{})
	var wg sync.WaitGroup

	// Writers churn a rotating set of names.
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				name := fmt.Sprintf("churn-%d", (seed+i)%8)
				if i%2 == 0 {
					lib.Add(testEntry(name))
				} else {
					lib.Remove(name)
				}
			}
		}(w * 4)
	}

	// Readers iterate snapshots while the writers run. Every entry seen must
	// be complete; the stable entry must always survive.
	for i := 0; i < 500; i++ {
		for _, entry := range lib.Entries() {
			if entry.Name == "" || len(entry.Fingerprint) == 0 {
				t.Fatalf("iteration %d: torn entry %+v", i, entry)
			}
		}
		if _, ok := lib.Get("stable"); !ok {
			t.Fatalf("iteration %d: stable entry disappeared", i)
		}
		lib.List()
		lib.Len()
	}

	close(stop)
	wg.Wait()
}
