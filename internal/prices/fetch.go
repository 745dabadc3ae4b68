// Package prices fetches storefront prices for the watchlist and builds
// the snapshot-diff report. Without a configured price endpoint it falls
// back to deterministic mock prices so diffs stay stable in CI.
package prices

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/trophy-janitor/internal/util"
	"github.com/franz/trophy-janitor/internal/watchlist"
)

const (
	currentFile  = "prices_current.json"
	previousFile = "prices_previous.json"
)

// Quote is one normalized price observation
type Quote struct {
	Price       float64 `json:"price"`
	DiscountPct int     `json:"discount_pct"`
	Currency    string  `json:"currency"`
	Live        bool    `json:"live"`
}

// PricedItem is a watchlist item with its quote attached
type PricedItem struct {
	Title        string  `json:"title"`
	StoreID      string  `json:"store_id,omitempty"`
	PlatPricesID string  `json:"platprices_id,omitempty"`
	Region       string  `json:"region"`
	Price        float64 `json:"price"`
	DiscountPct  int     `json:"discount_pct"`
	Currency     string  `json:"currency"`
	Live         bool    `json:"live"`
}

// Snapshot is one persisted price run
type Snapshot struct {
	GeneratedAt string       `json:"generated_at"`
	Region      string       `json:"region"`
	Count       int          `json:"count"`
	Items       []PricedItem `json:"items"`
}

// AnyLive reports whether at least one item came from the live endpoint
func (s *Snapshot) AnyLive() bool {
	for _, it := range s.Items {
		if it.Live {
			return true
		}
	}
	return false
}

// MockQuote derives a stable pseudo-price from an MD5 of the title.
// Price lands in 99..349, discount in {0, 10, 20, 30, 40}.
func MockQuote(title string) Quote {
	sum := md5.Sum([]byte(title))
	h := new(big.Int).SetBytes(sum[:])

	base := new(big.Int).Mod(h, big.NewInt(251)).Int64() + 99

	discount := int64(0)
	if new(big.Int).Mod(h, big.NewInt(3)).Sign() == 0 {
		third := new(big.Int).Div(h, big.NewInt(3))
		discount = 10 * new(big.Int).Mod(third, big.NewInt(5)).Int64()
	}

	return Quote{
		Price:       float64(base),
		DiscountPct: int(discount),
		Currency:    "TRY",
		Live:        false,
	}
}

// Fetcher retrieves quotes for watchlist items, one request at a time
type Fetcher struct {
	httpClient *http.Client
	endpoint   string
	key        string
	region     string
}

// NewFetcher creates a fetcher. Empty endpoint or key disables live
// fetching and every quote comes from the mock.
func NewFetcher(endpoint, key, region string) *Fetcher {
	if region == "" {
		region = "TR"
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		endpoint: endpoint,
		key:      key,
		region:   region,
	}
}

// Live reports whether a live price endpoint is configured
func (f *Fetcher) Live() bool {
	return f.endpoint != "" && f.key != ""
}

// Region returns the configured storefront region
func (f *Fetcher) Region() string {
	return f.region
}

// Fetch resolves one quote, falling back to the mock on any live failure
func (f *Fetcher) Fetch(ctx context.Context, title string) Quote {
	if !f.Live() {
		return MockQuote(title)
	}

	quote, err := util.RetryWithBackoff(util.DefaultRetryConfig(), func() (Quote, error) {
		return f.fetchLive(ctx, title)
	}, "price fetch")
	if err != nil {
		util.WarnLog("Live price fetch failed for '%s', using mock: %v", title, err)
		return MockQuote(title)
	}
	return quote
}

func (f *Fetcher) fetchLive(ctx context.Context, title string) (Quote, error) {
	params := url.Values{}
	params.Set("key", f.key)
	params.Set("q", title)
	params.Set("region", f.region)

	req, err := http.NewRequestWithContext(ctx, "GET", f.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// The endpoint's field names vary; accept the known variants
	var data struct {
		Price        float64 `json:"price"`
		CurrentPrice float64 `json:"current_price"`
		DiscountPct  int     `json:"discount_pct"`
		Discount     int     `json:"discount"`
		Currency     string  `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Quote{}, fmt.Errorf("failed to decode price response: %w", err)
	}

	price := data.Price
	if price == 0 {
		price = data.CurrentPrice
	}
	discount := data.DiscountPct
	if discount == 0 {
		discount = data.Discount
	}
	currency := data.Currency
	if currency == "" {
		currency = "TRY"
	}

	return Quote{Price: price, DiscountPct: discount, Currency: currency, Live: true}, nil
}

// FetchAll builds a full snapshot for the watchlist, sorted by title
func (f *Fetcher) FetchAll(ctx context.Context, items []watchlist.Item) (*Snapshot, error) {
	priced := make([]PricedItem, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}

		q := f.Fetch(ctx, title)
		priced = append(priced, PricedItem{
			Title:        title,
			StoreID:      it.StoreID,
			PlatPricesID: it.PlatPricesID,
			Region:       f.region,
			Price:        q.Price,
			DiscountPct:  q.DiscountPct,
			Currency:     q.Currency,
			Live:         q.Live,
		})
	}

	sort.Slice(priced, func(i, j int) bool {
		return strings.ToLower(priced[i].Title) < strings.ToLower(priced[j].Title)
	})

	return &Snapshot{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Region:      f.region,
		Count:       len(priced),
		Items:       priced,
	}, nil
}

// CurrentPath returns the current snapshot path under the reports dir
func CurrentPath(reportsDir string) string {
	return filepath.Join(reportsDir, currentFile)
}

// PreviousPath returns the previous snapshot path under the reports dir
func PreviousPath(reportsDir string) string {
	return filepath.Join(reportsDir, previousFile)
}

// WriteSnapshot persists a snapshot as the current generation
func WriteSnapshot(reportsDir string, snap *Snapshot) error {
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(CurrentPath(reportsDir), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot file. A missing file is an empty snapshot.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// Rotate copies the current snapshot over the previous generation,
// preparing the next diff baseline. Missing current is a no-op.
func Rotate(reportsDir string) error {
	data, err := os.ReadFile(CurrentPath(reportsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read current snapshot: %w", err)
	}
	if err := os.WriteFile(PreviousPath(reportsDir), data, 0644); err != nil {
		return fmt.Errorf("failed to roll snapshot: %w", err)
	}
	return nil
}
