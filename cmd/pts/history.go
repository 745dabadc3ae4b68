package main

import (
	"fmt"
	"time"

	"github.com/franz/trophy-janitor/internal/store"
	"github.com/franz/trophy-janitor/internal/util"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [title]",
	Short: "Show recorded price history for the watchlist",
	Long: `Show the price observations accumulated by 'pts prices'.

Without arguments, prints one line per tracked title with its latest and
lowest observed price. With a title, prints that title's observations
newest first.

The history database outlives the two JSON snapshot generations on disk,
so this is the place to look for long-term price trends.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("history-db", "prices.db", "price-history database file")
	historyCmd.Flags().Int("limit", 10, "observations to show per title (0 = all)")
	historyCmd.Flags().Int("prune-older-than", 0, "delete observations older than this many days (0 = keep all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	path, _ := cmd.Flags().GetString("history-db")
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if days, _ := cmd.Flags().GetInt("prune-older-than"); days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		removed, err := db.PruneSnapshotsBefore(cutoff)
		if err != nil {
			return err
		}
		util.InfoLog("Pruned %d observation(s) older than %s", removed, cutoff.Format("2006-01-02"))
	}

	limit, _ := cmd.Flags().GetInt("limit")
	var lines []string
	if len(args) == 1 {
		lines, err = itemHistoryLines(db, args[0], limit)
	} else {
		lines, err = watchlistOverviewLines(db)
	}
	if err != nil {
		return err
	}

	for _, line := range lines {
		util.InfoLog("%s", line)
	}
	return nil
}

// watchlistOverviewLines renders one line per tracked item with its latest
// and lowest observed price
func watchlistOverviewLines(db *store.Store) ([]string, error) {
	items, err := db.ListWatchlist()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []string{"No price history yet, run 'pts prices' first"}, nil
	}

	lines := make([]string, 0, len(items)+1)
	for _, item := range items {
		latest, err := db.LatestSnapshot(item.ID)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			lines = append(lines, fmt.Sprintf("%s: no observations", item.Title))
			continue
		}

		line := fmt.Sprintf("%s: %.2f %s", item.Title, latest.Price, latest.Currency)
		if latest.DiscountPct > 0 {
			line += fmt.Sprintf(" (%d%% off)", latest.DiscountPct)
		}
		lowest, ok, err := db.LowestPrice(item.ID)
		if err != nil {
			return nil, err
		}
		if ok && lowest < latest.Price {
			line += fmt.Sprintf(", lowest seen %.2f", lowest)
		}
		lines = append(lines, line)
	}

	count, err := db.CountSnapshots()
	if err != nil {
		return nil, err
	}
	lines = append(lines, fmt.Sprintf("%d observation(s) across %d item(s)", count, len(items)))
	return lines, nil
}

// itemHistoryLines renders one title's observations, newest first
func itemHistoryLines(db *store.Store, title string, limit int) ([]string, error) {
	item, err := db.GetWatchlistItem(title)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %q has no price history", util.ErrNotFound, title)
	}

	snaps, err := db.History(item.ID, limit)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(snaps)+1)
	lines = append(lines, fmt.Sprintf("%s, %d observation(s), newest first:", item.Title, len(snaps)))
	for _, snap := range snaps {
		source := "mock"
		if snap.Live {
			source = "live"
		}
		line := fmt.Sprintf("  %s  %.2f %s", snap.FetchedAt.Format("2006-01-02 15:04"), snap.Price, snap.Currency)
		if snap.DiscountPct > 0 {
			line += fmt.Sprintf(" (%d%% off)", snap.DiscountPct)
		}
		lines = append(lines, line+"  "+source)
	}
	return lines, nil
}
