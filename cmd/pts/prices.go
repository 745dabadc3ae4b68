package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/franz/trophy-janitor/internal/prices"
	"github.com/franz/trophy-janitor/internal/report"
	"github.com/franz/trophy-janitor/internal/store"
	"github.com/franz/trophy-janitor/internal/util"
	"github.com/franz/trophy-janitor/internal/watchlist"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Fetch current prices for the watchlist",
	Long: `Fetch the current storefront price for every watchlist item and write
reports/prices_current.json. Each observation is also appended to the
price-history database so trends survive snapshot rotation.

With PTS_PLAT_API_URL and PTS_PLAT_KEY set, prices come from the live
endpoint; otherwise a deterministic mock price derived from the title
keeps diffs stable.`,
	RunE: runPrices,
}

func init() {
	rootCmd.AddCommand(pricesCmd)

	pricesCmd.Flags().String("history-db", "prices.db", "price-history database file")
	pricesCmd.Flags().String("region", "", "storefront region (default TR)")
}

func runPrices(cmd *cobra.Command, args []string) error {
	applyLogFlags()
	start := time.Now()

	reportsDir := viper.GetString("reports-dir")
	wl, err := watchlist.Read(reportsDir)
	if err != nil {
		return err
	}

	endpoint := viper.GetString("plat_api_url")
	if endpoint == "" {
		endpoint = os.Getenv("PLAT_API_URL")
	}
	key := viper.GetString("plat_key")
	if key == "" {
		key = os.Getenv("PLAT_KEY")
	}
	region, _ := cmd.Flags().GetString("region")
	if region == "" {
		region = viper.GetString("region")
	}

	fetcher := prices.NewFetcher(endpoint, key, region)
	if fetcher.Live() {
		util.InfoLog("Fetching live prices for %d items (region %s)...", len(wl.Items), fetcher.Region())
	} else {
		util.InfoLog("No price endpoint configured, generating mock prices for %d items", len(wl.Items))
	}

	logger := newEventLogger()
	defer logger.Close()

	snap, err := fetcher.FetchAll(context.Background(), wl.Items)
	if err != nil {
		return fmt.Errorf("price fetch failed: %w", err)
	}

	if err := prices.WriteSnapshot(reportsDir, snap); err != nil {
		return err
	}
	util.InfoLog("Wrote %s", prices.CurrentPath(reportsDir))

	historyPath, _ := cmd.Flags().GetString("history-db")
	if err := recordHistory(historyPath, logger, snap); err != nil {
		// History is an archive, not the source of truth; keep the snapshot
		util.WarnLog("Failed to record price history: %v", err)
	}

	summary := report.PriceSummary{
		Items:   snap.Count,
		Live:    snap.AnyLive(),
		Elapsed: time.Since(start),
	}
	util.SuccessLog("%s", summary.Line())
	return nil
}

// recordHistory appends one snapshot row per priced item to the sqlite
// price-history store. The whole run commits in one transaction so a
// failure leaves no partial rows behind.
func recordHistory(path string, logger *report.EventLogger, snap *prices.Snapshot) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Transaction(func(tx *sql.Tx) error {
		for _, it := range snap.Items {
			item := &store.WatchlistItem{Title: it.Title, ProductID: it.StoreID}
			if err := store.UpsertWatchlistItem(tx, item); err != nil {
				return err
			}
			err := store.InsertPriceSnapshot(tx, &store.PriceSnapshot{
				ItemID:      item.ID,
				RunID:       logger.RunID(),
				Price:       it.Price,
				DiscountPct: it.DiscountPct,
				Currency:    it.Currency,
				Live:        it.Live,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, it := range snap.Items {
		logger.LogPrice(it.Title, it.Price, it.DiscountPct, it.Live)
	}

	util.DebugLog("Recorded %d price observations in %s", len(snap.Items), path)
	return nil
}
