package sync

import (
	"testing"

	"github.com/franz/trophy-janitor/internal/cache"
	"github.com/franz/trophy-janitor/internal/psn"
)

func completeCache(t *testing.T, store *cache.Store, npCommID string, total, earned int) {
	t.Helper()
	rows := make([]cache.TrophyRecord, 0, total)
	for i := 0; i < total; i++ {
		rows = append(rows, cache.TrophyRecord{
			GroupID:   "default",
			GroupName: "Game",
			TrophyID:  i,
			Name:      "Trophy",
			Grade:     "Bronze",
			Earned:    i < earned,
		})
	}
	if err := store.WriteTrophies(npCommID, psn.PlatformPS4, rows); err != nil {
		t.Fatalf("WriteTrophies failed: %v", err)
	}
}

func TestNeedsRefresh(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	completeCache(t, store, "NPWR00001_00", 10, 3)

	baseline := cache.TitleRecord{
		Title: "Game", NPCommID: "NPWR00001_00", Platform: psn.PlatformPS4,
		TrophiesUnlocked: 3, TrophiesTotal: 10, Percent: 25,
	}
	prevIndex := []cache.TitleRecord{baseline}

	tests := []struct {
		name string
		prev []cache.TitleRecord
		rec  cache.TitleRecord
		want bool
	}{
		{"unchanged counters with complete cache", prevIndex, baseline, false},
		{
			"unlocked count changed",
			prevIndex,
			cache.TitleRecord{Title: "Game", NPCommID: "NPWR00001_00", Platform: psn.PlatformPS4, TrophiesUnlocked: 4, TrophiesTotal: 10, Percent: 25},
			true,
		},
		{
			"total changed",
			prevIndex,
			cache.TitleRecord{Title: "Game", NPCommID: "NPWR00001_00", Platform: psn.PlatformPS4, TrophiesUnlocked: 3, TrophiesTotal: 12, Percent: 25},
			true,
		},
		{
			"percent changed",
			prevIndex,
			cache.TitleRecord{Title: "Game", NPCommID: "NPWR00001_00", Platform: psn.PlatformPS4, TrophiesUnlocked: 3, TrophiesTotal: 10, Percent: 30},
			true,
		},
		{"no previous snapshot", nil, baseline, true},
		{
			"missing cache overrides unchanged counters",
			[]cache.TitleRecord{{Title: "Other", NPCommID: "NPWR00002_00", Platform: psn.PlatformPS4, TrophiesUnlocked: 1, TrophiesTotal: 5, Percent: 20}},
			cache.TitleRecord{Title: "Other", NPCommID: "NPWR00002_00", Platform: psn.PlatformPS4, TrophiesUnlocked: 1, TrophiesTotal: 5, Percent: 20},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsRefresh(store, tt.prev, tt.rec); got != tt.want {
				t.Errorf("NeedsRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeedsRefreshStaleEarned(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	// Cache rows carry no earned flags while the index says 3 were earned
	completeCache(t, store, "NPWR00003_00", 10, 0)

	rec := cache.TitleRecord{
		Title: "Game", NPCommID: "NPWR00003_00", Platform: psn.PlatformPS4,
		TrophiesUnlocked: 3, TrophiesTotal: 10, Percent: 25,
	}
	if !NeedsRefresh(store, []cache.TitleRecord{rec}, rec) {
		t.Error("stale cache masking earned trophies must force a refresh")
	}
}
