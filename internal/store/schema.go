package store

// Schema v1 - watchlist items and their per-run price snapshots
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Tracked store titles (one row per cleaned watchlist entry)
CREATE TABLE IF NOT EXISTS watchlist_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT UNIQUE NOT NULL,
  product_id TEXT,
  product_url TEXT,
  added_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_watchlist_items_product_id ON watchlist_items(product_id);

-- Price observations, one row per item per price run
CREATE TABLE IF NOT EXISTS price_snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  item_id INTEGER NOT NULL REFERENCES watchlist_items(id) ON DELETE CASCADE,
  run_id TEXT NOT NULL,
  price REAL NOT NULL,
  base_price REAL,
  discount_pct INTEGER DEFAULT 0,
  currency TEXT DEFAULT 'USD',
  live INTEGER DEFAULT 0,
  fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Schema v2 - query indexes for history lookups
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_snapshots_item_time ON price_snapshots(item_id, fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_run ON price_snapshots(run_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_discount ON price_snapshots(discount_pct);
`
