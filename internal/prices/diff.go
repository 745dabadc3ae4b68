package prices

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// topDiscountCount caps the Top Discounts table
const topDiscountCount = 10

// Change records one item whose price or discount moved between snapshots.
// Old is nil for items seen for the first time.
type Change struct {
	Title string
	Old   *PricedItem
	New   *PricedItem
}

// Diff is the comparison of two snapshots
type Diff struct {
	Changes      []Change
	TopDiscounts []PricedItem
}

// BuildDiff compares the current snapshot against the previous one.
// Items are matched by case-insensitive title.
func BuildDiff(prev, cur *Snapshot) *Diff {
	prevByTitle := make(map[string]*PricedItem, len(prev.Items))
	for i := range prev.Items {
		it := &prev.Items[i]
		if it.Title == "" {
			continue
		}
		prevByTitle[strings.ToLower(strings.TrimSpace(it.Title))] = it
	}

	var changes []Change
	for i := range cur.Items {
		it := &cur.Items[i]
		if it.Title == "" {
			continue
		}
		old := prevByTitle[strings.ToLower(strings.TrimSpace(it.Title))]
		if old == nil || old.Price != it.Price || old.DiscountPct != it.DiscountPct {
			changes = append(changes, Change{Title: it.Title, Old: old, New: it})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return strings.ToLower(changes[i].Title) < strings.ToLower(changes[j].Title)
	})

	return &Diff{
		Changes:      changes,
		TopDiscounts: topDiscounts(cur.Items, topDiscountCount),
	}
}

// topDiscounts picks the deepest discounts, ties broken by lower price
func topDiscounts(items []PricedItem, n int) []PricedItem {
	var discounted []PricedItem
	for _, it := range items {
		if it.DiscountPct > 0 {
			discounted = append(discounted, it)
		}
	}
	sort.Slice(discounted, func(i, j int) bool {
		if discounted[i].DiscountPct != discounted[j].DiscountPct {
			return discounted[i].DiscountPct > discounted[j].DiscountPct
		}
		return discounted[i].Price < discounted[j].Price
	})
	if len(discounted) > n {
		discounted = discounted[:n]
	}
	return discounted
}

func fmtPrice(it *PricedItem) string {
	if it == nil {
		return "-"
	}
	price := strings.TrimSuffix(fmt.Sprintf("%.2f", it.Price), ".00")
	if it.DiscountPct > 0 {
		return fmt.Sprintf("%s %s (%d%% off)", price, it.Currency, it.DiscountPct)
	}
	return fmt.Sprintf("%s %s", price, it.Currency)
}

// RenderMarkdown produces the dated diff report body
func RenderMarkdown(cur *Snapshot, diff *Diff, date time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Price Diff Report (%s)\n\n", date.Format("2006-01-02"))

	live := "no (mock)"
	if cur.AnyLive() {
		live = "yes"
	}
	region := cur.Region
	if region == "" {
		region = "TR"
	}
	fmt.Fprintf(&b, "- Region: **%s**  \n", region)
	fmt.Fprintf(&b, "- Items: **%d**  \n", cur.Count)
	fmt.Fprintf(&b, "- Live fetch: **%s**\n\n", live)

	b.WriteString("## Top Discounts Today\n\n")
	if len(diff.TopDiscounts) == 0 {
		b.WriteString("_No discounts today._\n\n")
	} else {
		b.WriteString("| Title | Current Price | Discount |\n|---|---:|---:|\n")
		for _, it := range diff.TopDiscounts {
			price := strings.TrimSuffix(fmt.Sprintf("%.2f", it.Price), ".00")
			fmt.Fprintf(&b, "| %s | %s %s | %d%% |\n", it.Title, price, it.Currency, it.DiscountPct)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Changes vs Previous Snapshot\n\n")
	if len(diff.Changes) == 0 {
		b.WriteString("_No changes since previous run._\n")
	} else {
		b.WriteString("| Title | Previous | Current |\n|---|---|---|\n")
		for _, c := range diff.Changes {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", c.Title, fmtPrice(c.Old), fmtPrice(c.New))
		}
	}

	return b.String()
}

// WriteReport writes the dated Markdown report and returns its path
func WriteReport(reportsDir string, cur *Snapshot, diff *Diff, date time.Time) (string, error) {
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	path := filepath.Join(reportsDir, date.Format("2006-01-02")+".md")
	body := RenderMarkdown(cur, diff, date)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
