package cache

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/franz/trophy-janitor/internal/psn"
)

// Status classifies an on-disk per-title trophy cache. It is derived on
// demand from the file, never persisted.
type Status int

const (
	// StatusMissing means the cache file does not exist or fails to parse
	StatusMissing Status = iota

	// StatusIncomplete means the cache exists but looks partial
	StatusIncomplete

	// StatusComplete means the cache covers the expected trophies with
	// earned flags and group names
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusMissing:
		return "missing"
	case StatusIncomplete:
		return "incomplete"
	case StatusComplete:
		return "complete"
	}
	return "unknown"
}

// Classify inspects a title's trophy cache against the counters the title
// index reports for it. The checks form a priority chain: missing first,
// then each incompleteness condition in order, short-circuiting on the
// first match.
func (s *Store) Classify(npCommID string, platform psn.Platform, expectedTotal, expectedEarned int) Status {
	path := s.TrophyCachePath(npCommID, platform)

	f, err := os.Open(path)
	if err != nil {
		return StatusMissing
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return StatusMissing
	}

	if len(rows) <= 1 {
		return StatusIncomplete
	}

	cols := columnIndex(rows[0])
	data := rows[1:]

	// Earned signal: the column exists and at least one row carries a value
	earnedCol, hasEarnedCol := cols["Earned"]
	earnedSignal := false
	earnedSum := 0
	if hasEarnedCol {
		for _, row := range data {
			if earnedCol < len(row) && strings.TrimSpace(row[earnedCol]) != "" {
				earnedSignal = true
				if psn.NormBool(row[earnedCol]) {
					earnedSum++
				}
			}
		}
	}
	if !earnedSignal {
		return StatusIncomplete
	}

	// Known-earned trophies masked by a cache showing zero earned
	if expectedEarned > 0 && earnedSum == 0 {
		return StatusIncomplete
	}

	// Enough distinct trophies?
	distinct := countDistinctIDs(data, cols)
	if expectedTotal > 0 && distinct < expectedTotal {
		return StatusIncomplete
	}

	// Group-name annotation present on at least one row
	nameCol, hasNameCol := cols["GroupName"]
	if !hasNameCol {
		return StatusIncomplete
	}
	for _, row := range data {
		if nameCol < len(row) && strings.TrimSpace(row[nameCol]) != "" {
			return StatusComplete
		}
	}
	return StatusIncomplete
}

// countDistinctIDs counts unique TrophyID values, falling back to the row
// count when the column is absent
func countDistinctIDs(data [][]string, cols map[string]int) int {
	idCol, ok := cols["TrophyID"]
	if !ok {
		return len(data)
	}
	seen := make(map[string]bool, len(data))
	for _, row := range data {
		if idCol < len(row) {
			seen[row[idCol]] = true
		}
	}
	return len(seen)
}
