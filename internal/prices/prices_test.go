package prices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/franz/trophy-janitor/internal/watchlist"
)

func TestMockQuoteDeterministic(t *testing.T) {
	first := MockQuote("Bloodborne")
	second := MockQuote("Bloodborne")
	if first != second {
		t.Errorf("mock quote not deterministic: %+v vs %+v", first, second)
	}
	if MockQuote("Bloodborne") == MockQuote("Celeste") {
		t.Error("distinct titles produced identical quotes")
	}
}

func TestMockQuoteRanges(t *testing.T) {
	titles := []string{
		"Bloodborne", "Celeste", "Hades", "Hollow Knight", "Outer Wilds",
		"God of War", "Returnal", "Astro's Playroom", "Sekiro", "Tunic",
	}
	validDiscounts := map[int]bool{0: true, 10: true, 20: true, 30: true, 40: true}

	for _, title := range titles {
		q := MockQuote(title)
		if q.Price < 99 || q.Price > 349 {
			t.Errorf("%s: price %v outside 99..349", title, q.Price)
		}
		if !validDiscounts[q.DiscountPct] {
			t.Errorf("%s: discount %d not in {0,10,20,30,40}", title, q.DiscountPct)
		}
		if q.Currency != "TRY" || q.Live {
			t.Errorf("%s: unexpected mock shape %+v", title, q)
		}
	}
}

func TestFetcherWithoutEndpointUsesMock(t *testing.T) {
	f := NewFetcher("", "", "")
	if f.Live() {
		t.Fatal("fetcher without endpoint must not be live")
	}
	if f.Region() != "TR" {
		t.Errorf("expected default region TR, got %s", f.Region())
	}

	q := f.Fetch(context.Background(), "Bloodborne")
	if q.Live {
		t.Error("expected mock quote")
	}
	if q != MockQuote("Bloodborne") {
		t.Errorf("expected the deterministic mock, got %+v", q)
	}
}

func TestFetcherLiveEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("missing api key in request: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("q") != "Bloodborne" {
			t.Errorf("unexpected query title %q", r.URL.Query().Get("q"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"current_price": 24.99,
			"discount":      50,
			"currency":      "USD",
		})
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, "secret", "US")
	q := f.Fetch(context.Background(), "Bloodborne")
	if !q.Live {
		t.Fatal("expected live quote")
	}
	if q.Price != 24.99 || q.DiscountPct != 50 || q.Currency != "USD" {
		t.Errorf("field variants not mapped: %+v", q)
	}
}

func TestFetcherLiveFailureFallsBackToMock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, "secret", "US")
	q := f.Fetch(context.Background(), "Bloodborne")
	if q.Live {
		t.Error("failed live fetch must fall back to mock")
	}
	if q != MockQuote("Bloodborne") {
		t.Errorf("expected the deterministic mock, got %+v", q)
	}
}

func TestFetchAllSortsAndSkipsBlank(t *testing.T) {
	f := NewFetcher("", "", "")
	items := []watchlist.Item{
		{Title: "Hades"},
		{Title: ""},
		{Title: "bloodborne"},
		{Title: "Celeste"},
	}

	snap, err := f.FetchAll(context.Background(), items)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if snap.Count != 3 || len(snap.Items) != 3 {
		t.Fatalf("expected 3 priced items, got %d", len(snap.Items))
	}
	if snap.Items[0].Title != "bloodborne" || snap.Items[2].Title != "Hades" {
		t.Errorf("items not sorted case-insensitively: %+v", snap.Items)
	}
	if snap.Region != "TR" || snap.GeneratedAt == "" {
		t.Errorf("snapshot metadata incomplete: %+v", snap)
	}
}

func TestSnapshotRoundtripAndRotate(t *testing.T) {
	dir := t.TempDir()
	snap := &Snapshot{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Region:      "TR",
		Count:       1,
		Items:       []PricedItem{{Title: "Hades", Region: "TR", Price: 120, Currency: "TRY"}},
	}

	if err := WriteSnapshot(dir, snap); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	got, err := ReadSnapshot(CurrentPath(dir))
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if got.Count != 1 || got.Items[0] != snap.Items[0] {
		t.Errorf("snapshot did not roundtrip: %+v", got)
	}

	if err := Rotate(dir); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	prev, err := ReadSnapshot(PreviousPath(dir))
	if err != nil {
		t.Fatalf("ReadSnapshot previous failed: %v", err)
	}
	if len(prev.Items) != 1 || prev.Items[0].Title != "Hades" {
		t.Errorf("rotation lost data: %+v", prev)
	}
}

func TestReadSnapshotMissingIsEmpty(t *testing.T) {
	snap, err := ReadSnapshot(CurrentPath(t.TempDir()))
	if err != nil {
		t.Fatalf("expected empty snapshot for missing file, got %v", err)
	}
	if len(snap.Items) != 0 {
		t.Errorf("expected no items, got %+v", snap.Items)
	}
}

func TestRotateWithoutCurrentIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := Rotate(dir); err != nil {
		t.Fatalf("Rotate on empty dir failed: %v", err)
	}
	if _, err := os.Stat(PreviousPath(dir)); !os.IsNotExist(err) {
		t.Error("rotation created a previous snapshot out of nothing")
	}
}

func TestBuildDiff(t *testing.T) {
	prev := &Snapshot{Items: []PricedItem{
		{Title: "Hades", Price: 120, Currency: "TRY"},
		{Title: "Celeste", Price: 80, DiscountPct: 20, Currency: "TRY"},
		{Title: "Unchanged", Price: 50, Currency: "TRY"},
	}}
	cur := &Snapshot{Items: []PricedItem{
		{Title: "hades", Price: 100, DiscountPct: 10, Currency: "TRY"},  // price moved
		{Title: "Celeste", Price: 80, DiscountPct: 40, Currency: "TRY"}, // discount moved
		{Title: "Unchanged", Price: 50, Currency: "TRY"},
		{Title: "Tunic", Price: 150, Currency: "TRY"}, // new item
	}}

	diff := BuildDiff(prev, cur)
	if len(diff.Changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(diff.Changes), diff.Changes)
	}
	// Sorted by title: Celeste, hades, Tunic
	if diff.Changes[0].Title != "Celeste" || diff.Changes[1].Title != "hades" || diff.Changes[2].Title != "Tunic" {
		t.Errorf("unexpected change order: %+v", diff.Changes)
	}
	if diff.Changes[2].Old != nil {
		t.Error("new item must have nil Old")
	}
	if diff.Changes[1].Old == nil || diff.Changes[1].Old.Price != 120 {
		t.Errorf("title match must be case-insensitive: %+v", diff.Changes[1])
	}
}

func TestTopDiscountsOrderAndCap(t *testing.T) {
	items := make([]PricedItem, 0, 14)
	for i := 0; i < 12; i++ {
		items = append(items, PricedItem{Title: "D", Price: float64(100 + i), DiscountPct: 10, Currency: "TRY"})
	}
	items = append(items,
		PricedItem{Title: "Deep", Price: 200, DiscountPct: 40, Currency: "TRY"},
		PricedItem{Title: "Full Price", Price: 300, DiscountPct: 0, Currency: "TRY"},
	)

	top := topDiscounts(items, topDiscountCount)
	if len(top) != topDiscountCount {
		t.Fatalf("expected cap of %d, got %d", topDiscountCount, len(top))
	}
	if top[0].Title != "Deep" {
		t.Errorf("deepest discount must come first, got %+v", top[0])
	}
	// Ties broken by lower price
	if top[1].Price != 100 {
		t.Errorf("expected cheapest of the tied items next, got %v", top[1].Price)
	}
	for _, it := range top {
		if it.DiscountPct == 0 {
			t.Errorf("undiscounted item leaked into top discounts: %+v", it)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	cur := &Snapshot{
		Region: "TR",
		Count:  2,
		Items: []PricedItem{
			{Title: "Hades", Price: 100, DiscountPct: 10, Currency: "TRY"},
			{Title: "Celeste", Price: 80, Currency: "TRY"},
		},
	}
	diff := BuildDiff(&Snapshot{}, cur)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	md := RenderMarkdown(cur, diff, date)
	for _, want := range []string{
		"# Price Diff Report (2026-08-30)",
		"Region: **TR**",
		"Live fetch: **no (mock)**",
		"## Top Discounts Today",
		"| Hades | 100 TRY | 10% |",
		"## Changes vs Previous Snapshot",
		"| Celeste | - | 80 TRY |",
		"| Hades | - | 100 TRY (10% off) |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
}

func TestRenderMarkdownNoChanges(t *testing.T) {
	cur := &Snapshot{Region: "TR", Count: 1, Items: []PricedItem{{Title: "Hades", Price: 100, Currency: "TRY"}}}
	diff := BuildDiff(cur, cur)

	md := RenderMarkdown(cur, diff, time.Now())
	if !strings.Contains(md, "_No changes since previous run._") {
		t.Error("expected no-changes placeholder")
	}
	if !strings.Contains(md, "_No discounts today._") {
		t.Error("expected no-discounts placeholder")
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	cur := &Snapshot{Region: "TR"}
	diff := BuildDiff(&Snapshot{}, cur)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	path, err := WriteReport(dir, cur, diff, date)
	if err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	if !strings.HasSuffix(path, "2026-08-30.md") {
		t.Errorf("unexpected report path %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report not written: %v", err)
	}
}
