package library

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultLookupThreshold is the minimum Jaro-Winkler score for FindClosest
// to accept a candidate. Below this, typos are more likely to hit the wrong
// pattern than the intended one.
const defaultLookupThreshold = 0.80

// FindClosest resolves an approximate pattern name to the stored entry whose
// name has the highest Jaro-Winkler similarity (case-insensitive), provided
// that score reaches threshold. Pass threshold <= 0 to use the default 0.80.
//
// Exact names always win with a score of 1.0. Returns false when the library
// is empty or no candidate clears the threshold.
func (l *Library) FindClosest(name string, threshold float64) (Info, float64, bool) {
	if threshold <= 0 {
		threshold = defaultLookupThreshold
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Info{}, 0, false
	}

	var (
		best      Info
		bestScore float64
		found     bool
	)
	for _, info := range l.List() {
		score := matchr.JaroWinkler(needle, strings.ToLower(info.Name), true)
		if score > bestScore {
			best = info
			bestScore = score
			found = true
		}
	}
	if !found || bestScore < threshold {
		return Info{}, 0, false
	}
	return best, bestScore, true
}
