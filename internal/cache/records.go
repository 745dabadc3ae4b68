package cache

import "github.com/franz/trophy-janitor/internal/psn"

// TitleRecord is one row of the title index: one (game title, platform) pair
// with its progress counters. TrophiesTotal of 0 is a legal "unknown total"
// state, not an error.
type TitleRecord struct {
	Title            string
	NPCommID         string
	Platform         psn.Platform
	TrophiesUnlocked int
	TrophiesTotal    int
	Percent          int
}

// TrophyRecord is one row of a per-title trophy cache.
// (GroupID, TrophyID) is unique within one title's cache.
type TrophyRecord struct {
	GroupID    string
	GroupName  string
	TrophyID   int
	Name       string
	Detail     string
	Grade      string
	Earned     bool
	EarnedRate string
	IconURL    string
}

// FindTitle looks up a record by (NPCommID, Platform). Returns nil when the
// pair is not in the index.
func FindTitle(records []TitleRecord, npCommID string, platform psn.Platform) *TitleRecord {
	for i := range records {
		if records[i].NPCommID == npCommID && records[i].Platform == platform {
			return &records[i]
		}
	}
	return nil
}
