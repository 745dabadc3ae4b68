package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RunSummary aggregates the counters of one sync run
type RunSummary struct {
	RunID           string
	TitlesWritten   int
	CachesRefreshed int
	TitlesSkipped   int
	Elapsed         time.Duration
}

// Line renders the summary as the single status line printed at the end of
// a run
func (s *RunSummary) Line() string {
	return fmt.Sprintf("Updated titles: %s • refreshed caches: %s • skipped: %s • %s",
		humanize.Comma(int64(s.TitlesWritten)),
		humanize.Comma(int64(s.CachesRefreshed)),
		humanize.Comma(int64(s.TitlesSkipped)),
		s.Elapsed.Round(100*time.Millisecond))
}

// PriceSummary aggregates the counters of one price run
type PriceSummary struct {
	Items   int
	Live    bool
	Elapsed time.Duration
}

// Line renders the price run status line
func (s *PriceSummary) Line() string {
	source := "mock"
	if s.Live {
		source = "live"
	}
	return fmt.Sprintf("Priced items: %s (%s) • %s",
		humanize.Comma(int64(s.Items)), source, s.Elapsed.Round(100*time.Millisecond))
}

// DiffSummary aggregates the counters of one diff report
type DiffSummary struct {
	Changes      int
	TopDiscounts int
	ReportPath   string
}

// Line renders the diff run status line
func (s *DiffSummary) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wrote %s (%s change(s)", s.ReportPath, humanize.Comma(int64(s.Changes)))
	fmt.Fprintf(&b, "; top_discounts=%d)", s.TopDiscounts)
	return b.String()
}
