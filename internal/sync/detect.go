package sync

import (
	"github.com/franz/trophy-janitor/internal/cache"
)

// NeedsRefresh decides whether a title's trophy detail cache must be
// rebuilt.
//
// A cache that does not classify as complete is refreshed unconditionally,
// regardless of change detection. Otherwise the title's counters are
// compared against the previous index snapshot: an unseen (NPCommID,
// Platform) pair, or any difference in unlocked/total/percent, triggers a
// refresh.
func NeedsRefresh(store *cache.Store, prevIndex []cache.TitleRecord, rec cache.TitleRecord) bool {
	status := store.Classify(rec.NPCommID, rec.Platform, rec.TrophiesTotal, rec.TrophiesUnlocked)
	if status != cache.StatusComplete {
		return true
	}

	prev := cache.FindTitle(prevIndex, rec.NPCommID, rec.Platform)
	if prev == nil {
		// Previously unseen title
		return true
	}

	return prev.TrophiesUnlocked != rec.TrophiesUnlocked ||
		prev.TrophiesTotal != rec.TrophiesTotal ||
		prev.Percent != rec.Percent
}
