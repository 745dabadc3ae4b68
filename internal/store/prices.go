package store

import (
	"database/sql"
	"fmt"
	"time"
)

// WatchlistItem is one tracked store title
type WatchlistItem struct {
	ID         int64
	Title      string
	ProductID  string
	ProductURL string
	AddedAt    time.Time
}

// PriceSnapshot is one price observation for a watchlist item
type PriceSnapshot struct {
	ID          int64
	ItemID      int64
	RunID       string
	Price       float64
	BasePrice   float64
	DiscountPct int
	Currency    string
	Live        bool
	FetchedAt   time.Time
}

// UpsertWatchlistItem inserts or updates a watchlist item by title and
// fills in its ID. All writes run inside Store.Transaction so a failed
// run leaves no partial rows.
func UpsertWatchlistItem(tx *sql.Tx, item *WatchlistItem) error {
	result, err := tx.Exec(`
		INSERT INTO watchlist_items (title, product_id, product_url)
		VALUES (?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			product_id = CASE WHEN excluded.product_id != '' THEN excluded.product_id ELSE watchlist_items.product_id END,
			product_url = CASE WHEN excluded.product_url != '' THEN excluded.product_url ELSE watchlist_items.product_url END
		`, item.Title, item.ProductID, item.ProductURL)

	if err != nil {
		return fmt.Errorf("failed to upsert watchlist item: %w", err)
	}

	if item.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil && id != 0 {
			item.ID = id
		}
		// On conflict update, fetch the existing ID
		if item.ID == 0 {
			err = tx.QueryRow("SELECT id FROM watchlist_items WHERE title = ?", item.Title).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("failed to get watchlist item ID: %w", err)
			}
		}
	}

	return nil
}

// GetWatchlistItem retrieves an item by title
func (s *Store) GetWatchlistItem(title string) (*WatchlistItem, error) {
	item := &WatchlistItem{}
	err := s.db.QueryRow(`
		SELECT id, title, COALESCE(product_id, ''), COALESCE(product_url, ''), added_at
		FROM watchlist_items WHERE title = ?
	`, title).Scan(&item.ID, &item.Title, &item.ProductID, &item.ProductURL, &item.AddedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist item: %w", err)
	}

	return item, nil
}

// ListWatchlist returns all tracked items ordered by title
func (s *Store) ListWatchlist() ([]*WatchlistItem, error) {
	rows, err := s.db.Query(`
		SELECT id, title, COALESCE(product_id, ''), COALESCE(product_url, ''), added_at
		FROM watchlist_items
		ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []*WatchlistItem
	for rows.Next() {
		item := &WatchlistItem{}
		if err := rows.Scan(&item.ID, &item.Title, &item.ProductID, &item.ProductURL, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// InsertPriceSnapshot records one price observation
func InsertPriceSnapshot(tx *sql.Tx, snap *PriceSnapshot) error {
	result, err := tx.Exec(`
		INSERT INTO price_snapshots (item_id, run_id, price, base_price, discount_pct, currency, live)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.ItemID, snap.RunID, snap.Price, snap.BasePrice, snap.DiscountPct, snap.Currency, snap.Live)

	if err != nil {
		return fmt.Errorf("failed to insert price snapshot: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		snap.ID = id
	}

	return nil
}

// LatestSnapshot returns the most recent snapshot for an item, or nil when
// the item has never been priced
func (s *Store) LatestSnapshot(itemID int64) (*PriceSnapshot, error) {
	snap := &PriceSnapshot{}
	err := s.db.QueryRow(`
		SELECT id, item_id, run_id, price, COALESCE(base_price, 0), discount_pct,
		       COALESCE(currency, 'USD'), live, fetched_at
		FROM price_snapshots
		WHERE item_id = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`, itemID).Scan(
		&snap.ID, &snap.ItemID, &snap.RunID, &snap.Price, &snap.BasePrice,
		&snap.DiscountPct, &snap.Currency, &snap.Live, &snap.FetchedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return snap, nil
}

// History returns an item's snapshots, newest first, capped at limit
// (0 = no cap)
func (s *Store) History(itemID int64, limit int) ([]*PriceSnapshot, error) {
	query := `
		SELECT id, item_id, run_id, price, COALESCE(base_price, 0), discount_pct,
		       COALESCE(currency, 'USD'), live, fetched_at
		FROM price_snapshots
		WHERE item_id = ?
		ORDER BY fetched_at DESC, id DESC
	`
	args := []any{itemID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var snaps []*PriceSnapshot
	for rows.Next() {
		snap := &PriceSnapshot{}
		err := rows.Scan(
			&snap.ID, &snap.ItemID, &snap.RunID, &snap.Price, &snap.BasePrice,
			&snap.DiscountPct, &snap.Currency, &snap.Live, &snap.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	return snaps, rows.Err()
}

// LowestPrice returns the lowest observed price for an item. ok is false
// when the item has no snapshots.
func (s *Store) LowestPrice(itemID int64) (price float64, ok bool, err error) {
	var lowest sql.NullFloat64
	err = s.db.QueryRow(`
		SELECT MIN(price) FROM price_snapshots WHERE item_id = ?
	`, itemID).Scan(&lowest)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query lowest price: %w", err)
	}
	if !lowest.Valid {
		return 0, false, nil
	}
	return lowest.Float64, true, nil
}

// CountSnapshots returns the total number of recorded observations
func (s *Store) CountSnapshots() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM price_snapshots").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// PruneSnapshotsBefore deletes observations older than the cutoff and
// returns how many were removed
func (s *Store) PruneSnapshotsBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM price_snapshots WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected()
}
