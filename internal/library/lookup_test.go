package library_test

import (
	"testing"

	"github.com/mutecast/mutecast/internal/library"
)

func lookupLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib := library.New()
	for _, name := range []string{"ACME Spring Sale", "Fizzo Cola Jingle", "CarMax Blowout"} {
		if err := lib.Add(testEntry(name)); err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
	}
	return lib
}

func TestFindClosest(t *testing.T) {
	lib := lookupLibrary(t)

	tests := []struct {
		name     string
		query    string
		wantName string
		wantOK   bool
	}{
		{name: "exact match", query: "Fizzo Cola Jingle", wantName: "Fizzo Cola Jingle", wantOK: true},
		{name: "case insensitive", query: "fizzo cola jingle", wantName: "Fizzo Cola Jingle", wantOK: true},
		{name: "minor typo", query: "Fizzo Cola Jingel", wantName: "Fizzo Cola Jingle", wantOK: true},
		{name: "prefix", query: "ACME Spring", wantName: "ACME Spring Sale", wantOK: true},
		{name: "unrelated", query: "weather report", wantOK: false},
		{name: "blank", query: "   ", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, score, ok := lib.FindClosest(tc.query, 0)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v (score %v), want %v", ok, score, tc.wantOK)
			}
			if ok && info.Name != tc.wantName {
				t.Errorf("Name = %q, want %q", info.Name, tc.wantName)
			}
		})
	}
}

func TestFindClosest_ExactNameScoresOne(t *testing.T) {
	lib := lookupLibrary(t)

	_, score, ok := lib.FindClosest("CarMax Blowout", 0)
	if !ok {
		t.Fatal("exact name not found")
	}
	if score != 1.0 {
		t.Errorf("score = %v, want 1.0", score)
	}
}

func TestFindClosest_EmptyLibrary(t *testing.T) {
	lib := library.New()
	if _, _, ok := lib.FindClosest("anything", 0); ok {
		t.Error("FindClosest returned a hit from an empty library")
	}
}

func TestFindClosest_CustomThreshold(t *testing.T) {
	lib := lookupLibrary(t)

	// A strict threshold rejects what the default would accept.
	if _, _, ok := lib.FindClosest("ACME Spring", 0.999); ok {
		t.Error("near-match accepted at threshold 0.999")
	}
	if _, _, ok := lib.FindClosest("ACME Spring", 0.85); !ok {
		t.Error("near-match rejected at threshold 0.85")
	}
}
