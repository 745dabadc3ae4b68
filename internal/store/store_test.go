package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "prices.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func upsertItem(t *testing.T, s *Store, item *WatchlistItem) {
	t.Helper()
	err := s.Transaction(func(tx *sql.Tx) error {
		return UpsertWatchlistItem(tx, item)
	})
	if err != nil {
		t.Fatalf("UpsertWatchlistItem failed: %v", err)
	}
}

func insertSnapshot(t *testing.T, s *Store, snap *PriceSnapshot) {
	t.Helper()
	err := s.Transaction(func(tx *sql.Tx) error {
		return InsertPriceSnapshot(tx, snap)
	})
	if err != nil {
		t.Fatalf("InsertPriceSnapshot failed: %v", err)
	}
}

func TestOpenAppliesSchema(t *testing.T) {
	s := openTestStore(t)

	version, err := s.getSchemaVersion()
	if err != nil {
		t.Fatalf("getSchemaVersion failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	if err := s.CheckIntegrity(); err != nil {
		t.Errorf("integrity check failed on fresh database: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	item := &WatchlistItem{Title: "Bloodborne"}
	upsertItem(t, s1, item)
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetWatchlistItem("Bloodborne")
	if err != nil {
		t.Fatalf("GetWatchlistItem failed: %v", err)
	}
	if got == nil || got.ID != item.ID {
		t.Errorf("data lost across reopen: %+v", got)
	}
}

func TestUpsertWatchlistItem(t *testing.T) {
	s := openTestStore(t)

	item := &WatchlistItem{Title: "Hollow Knight", ProductID: "UP1234-CUSA00001_00"}
	upsertItem(t, s, item)
	if item.ID == 0 {
		t.Fatal("expected ID to be filled in")
	}

	// Upserting the same title must not create a second row and must keep
	// the existing product id when the new one is empty
	again := &WatchlistItem{Title: "Hollow Knight"}
	upsertItem(t, s, again)
	if again.ID != item.ID {
		t.Errorf("expected same row id %d, got %d", item.ID, again.ID)
	}

	got, err := s.GetWatchlistItem("Hollow Knight")
	if err != nil {
		t.Fatalf("GetWatchlistItem failed: %v", err)
	}
	if got.ProductID != "UP1234-CUSA00001_00" {
		t.Errorf("product id clobbered by empty upsert: %q", got.ProductID)
	}

	items, err := s.ListWatchlist()
	if err != nil {
		t.Fatalf("ListWatchlist failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestGetWatchlistItemMissing(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetWatchlistItem("Nothing")
	if err != nil {
		t.Fatalf("expected no error for missing item, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestPriceSnapshotHistory(t *testing.T) {
	s := openTestStore(t)

	item := &WatchlistItem{Title: "Celeste"}
	upsertItem(t, s, item)

	prices := []float64{19.99, 9.99, 14.99}
	for i, p := range prices {
		insertSnapshot(t, s, &PriceSnapshot{
			ItemID:      item.ID,
			RunID:       "run-1",
			Price:       p,
			BasePrice:   19.99,
			DiscountPct: 100 - int(p/19.99*100),
			Currency:    "USD",
			Live:        i == 2,
		})
	}

	latest, err := s.LatestSnapshot(item.ID)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if latest == nil || latest.Price != 14.99 {
		t.Errorf("expected latest price 14.99, got %+v", latest)
	}
	if !latest.Live {
		t.Error("live flag lost on roundtrip")
	}

	history, err := s.History(item.ID, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(history))
	}
	if history[0].Price != 14.99 || history[2].Price != 19.99 {
		t.Errorf("history not newest-first: %v, %v", history[0].Price, history[2].Price)
	}

	capped, err := s.History(item.ID, 2)
	if err != nil {
		t.Fatalf("History with limit failed: %v", err)
	}
	if len(capped) != 2 {
		t.Errorf("expected capped history of 2, got %d", len(capped))
	}

	lowest, ok, err := s.LowestPrice(item.ID)
	if err != nil {
		t.Fatalf("LowestPrice failed: %v", err)
	}
	if !ok || lowest != 9.99 {
		t.Errorf("expected lowest 9.99, got %v (ok=%v)", lowest, ok)
	}
}

func TestLatestSnapshotMissing(t *testing.T) {
	s := openTestStore(t)

	item := &WatchlistItem{Title: "Unpriced"}
	upsertItem(t, s, item)

	snap, err := s.LatestSnapshot(item.ID)
	if err != nil {
		t.Fatalf("expected no error for unpriced item, got %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot, got %+v", snap)
	}

	_, ok, err := s.LowestPrice(item.ID)
	if err != nil {
		t.Fatalf("LowestPrice failed: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unpriced item")
	}
}

func TestPruneSnapshotsBefore(t *testing.T) {
	s := openTestStore(t)

	item := &WatchlistItem{Title: "Old Game"}
	upsertItem(t, s, item)
	insertSnapshot(t, s, &PriceSnapshot{ItemID: item.ID, RunID: "r", Price: 5})

	// Nothing predates a cutoff in the past
	removed, err := s.PruneSnapshotsBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneSnapshotsBefore failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected 0 pruned, got %d", removed)
	}

	// A future cutoff sweeps everything
	removed, err = s.PruneSnapshotsBefore(time.Now().Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneSnapshotsBefore failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 pruned, got %d", removed)
	}

	count, err := s.CountSnapshots()
	if err != nil {
		t.Fatalf("CountSnapshots failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty table after prune, got %d", count)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := openTestStore(t)

	wantErr := errors.New("boom")
	err := s.Transaction(func(tx *sql.Tx) error {
		if err := UpsertWatchlistItem(tx, &WatchlistItem{Title: "Phantom"}); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	got, err := s.GetWatchlistItem("Phantom")
	if err != nil {
		t.Fatalf("GetWatchlistItem failed: %v", err)
	}
	if got != nil {
		t.Errorf("insert survived a rolled-back transaction: %+v", got)
	}
}
