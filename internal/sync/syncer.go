// Package sync drives the two-pass PSN synchronization pipeline: a titles
// pass that rebuilds the title index, then a trophy-detail pass that
// refreshes per-title caches according to the refresh policy. Titles and
// groups are processed strictly sequentially with one remote call in
// flight at a time; every remote call is individually bounded so a single
// slow title can never stall the whole run.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/franz/trophy-janitor/internal/cache"
	"github.com/franz/trophy-janitor/internal/deadline"
	"github.com/franz/trophy-janitor/internal/psn"
	"github.com/franz/trophy-janitor/internal/report"
	"github.com/franz/trophy-janitor/internal/util"
	"github.com/schollz/progressbar/v3"
)

// Policy controls which trophy caches are refreshed in pass 2
type Policy string

const (
	// PolicyChanged refreshes caches that are missing/incomplete or whose
	// title counters changed vs the previous snapshot (default)
	PolicyChanged Policy = "changed"

	// PolicyAll refreshes every cache, still subject to per-title timeouts
	PolicyAll Policy = "all"

	// PolicyNone never refreshes
	PolicyNone Policy = "none"
)

// ParsePolicy validates a refresh policy flag value
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyChanged, PolicyAll, PolicyNone:
		return Policy(s), nil
	}
	return "", fmt.Errorf("%w: refresh policy %q (want changed, all or none)", util.ErrInvalidConfig, s)
}

// Provider is the remote trophy capability the syncer consumes.
// No guarantee on field presence or call latency; implementations may
// stall indefinitely, which is why every call runs under a deadline.
type Provider interface {
	TrophyTitles(ctx context.Context, limit int) ([]psn.TitleSummary, error)
	TrophyGroupSummary(ctx context.Context, npCommID string, platform psn.Platform) (*psn.GroupSummary, error)
	Trophies(ctx context.Context, npCommID string, platform psn.Platform, groupID string, includeProgress bool) ([]psn.Trophy, error)
}

// Config holds one run's tuning knobs, validated once at startup
type Config struct {
	Limit              int           // process only the first N titles (0 = all)
	Refresh            Policy        // refresh policy for pass 2
	Throttle           time.Duration // cooperative pause between remote calls
	GroupTimeout       time.Duration // deadline per group trophy listing
	SummaryTimeout     time.Duration // deadline per group-summary fetch
	MaxGroups          int           // groups processed per title (0 = unlimited)
	TitleTimeout       time.Duration // hard cap per title in pass 2 (0 = unlimited)
	Recount            bool          // disable the reuse-previous-total optimization
	LogUnchangedTitles bool          // log unchanged titles during the titles pass
	ShowProgress       bool          // render a progress bar on the titles pass
}

// DefaultConfig returns the default sync tuning
func DefaultConfig() Config {
	return Config{
		Refresh:        PolicyChanged,
		GroupTimeout:   6 * time.Second,
		SummaryTimeout: 6 * time.Second,
		MaxGroups:      50,
		TitleTimeout:   45 * time.Second,
	}
}

// Syncer reconciles the remote trophy state into the local cache store
type Syncer struct {
	provider Provider
	store    *cache.Store
	logger   *report.EventLogger
	cfg      Config
}

// New creates a syncer. logger may be nil.
func New(provider Provider, store *cache.Store, logger *report.EventLogger, cfg Config) *Syncer {
	return &Syncer{
		provider: provider,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run executes the full two-pass pipeline and returns the run summary.
// Remote failures degrade to "no data" at the smallest possible scope;
// only cache write failures and a failed title-list fetch abort the run.
func (s *Syncer) Run(ctx context.Context) (*report.RunSummary, error) {
	start := time.Now()

	prev, err := s.store.ReadTitles()
	if err != nil {
		// A corrupt index only disables change detection; the run rebuilds it
		util.WarnLog("Could not read previous title index: %v", err)
	}

	records, err := s.syncTitles(ctx, prev)
	if err != nil {
		return nil, err
	}

	util.DebugLog("Writing title index (%d records)", len(records))
	if err := s.store.WriteTitles(records); err != nil {
		return nil, fmt.Errorf("failed to write title index: %w", err)
	}

	// Change detection in pass 2 diffs against the generation just rotated
	// to the backup slot
	prevIndex, err := s.store.ReadPrevTitles()
	if err != nil {
		util.WarnLog("Could not read previous index for change detection: %v", err)
	}

	refreshed, skipped, err := s.refreshCaches(ctx, records, prevIndex)
	if err != nil {
		return nil, err
	}

	return &report.RunSummary{
		RunID:           s.logger.RunID(),
		TitlesWritten:   len(records),
		CachesRefreshed: refreshed,
		TitlesSkipped:   skipped,
		Elapsed:         time.Since(start),
	}, nil
}

// syncTitles runs pass 1: fetch the remote title list and rebuild the
// in-memory title records, reusing previous totals where progress is
// unchanged
func (s *Syncer) syncTitles(ctx context.Context, prev []cache.TitleRecord) ([]cache.TitleRecord, error) {
	util.InfoLog("Fetching trophy titles...")
	titles, err := s.provider.TrophyTitles(ctx, s.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trophy titles: %w", err)
	}
	if s.cfg.Limit > 0 && len(titles) > s.cfg.Limit {
		titles = titles[:s.cfg.Limit]
	}
	if s.cfg.Limit > 0 {
		util.InfoLog("Limiting to first %d titles", len(titles))
	}

	var bar *progressbar.ProgressBar
	if s.cfg.ShowProgress {
		bar = progressbar.NewOptions(len(titles),
			progressbar.OptionSetDescription("Titles"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	records := make([]cache.TitleRecord, 0, len(titles))
	for idx, t := range titles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		titleStart := time.Now()

		name := t.TitleName
		npCommID := t.NPCommunicationID
		primary := psn.PrimaryPlatform(t.Platforms())
		percent := clampPercent(t.Progress)
		earned := psn.SumTrophyCounts(t.EarnedTrophies)

		total := 0
		recompute := true
		reason := "new"
		if prevRow := cache.FindTitle(prev, npCommID, primary); prevRow != nil {
			if !s.cfg.Recount && prevRow.TrophiesUnlocked == earned && prevRow.Percent == percent {
				// Unchanged progress implies the trophy structure, hence the
				// total, has not changed
				total = prevRow.TrophiesTotal
				recompute = false
				reason = "unchanged"
			} else {
				reason = "changed"
			}
		}

		if recompute && primary != "" {
			total = s.groupsTotal(ctx, npCommID, primary)
			if total == 0 {
				total = s.enumerateAndCount(ctx, npCommID, primary)
			}
		}
		if primary == "" {
			total = 0
		}

		if reason != "unchanged" || s.cfg.LogUnchangedTitles {
			util.DebugLog("[%d/%d] %s (%s) • %s • %d%% (%s) in %v",
				idx+1, len(titles), name, primary, npCommID, percent, reason,
				time.Since(titleStart).Round(10*time.Millisecond))
		}
		s.logger.LogTitle(name, npCommID, string(primary), earned, total, percent, reason)

		records = append(records, cache.TitleRecord{
			Title:            name,
			NPCommID:         npCommID,
			Platform:         primary,
			TrophiesUnlocked: earned,
			TrophiesTotal:    total,
			Percent:          percent,
		})

		if bar != nil {
			bar.Add(1)
		}
		s.throttle()
	}

	if bar != nil {
		bar.Finish()
	}
	return records, nil
}

// groupsTotal resolves the defined-trophies total from the group summary:
// the overall aggregate when present, else the sum of per-group aggregates.
// Timeouts and remote errors degrade to 0.
func (s *Syncer) groupsTotal(ctx context.Context, npCommID string, platform psn.Platform) int {
	summary, err := deadline.Run(ctx, s.cfg.SummaryTimeout, func(ctx context.Context) (*psn.GroupSummary, error) {
		return s.provider.TrophyGroupSummary(ctx, npCommID, platform)
	})
	if err != nil {
		util.DebugLog("Group summary for %s [%s] unavailable: %v", npCommID, platform, err)
		return 0
	}

	if total := psn.SumTrophyCounts(summary.DefinedTrophies); total > 0 {
		return total
	}

	total := 0
	for _, g := range summary.TrophyGroups {
		total += psn.SumTrophyCounts(g.DefinedTrophies)
	}
	return total
}

// enumerateAndCount is the exhaustive fallback when the summary aggregate
// yields nothing: list every group's trophies and count them
func (s *Syncer) enumerateAndCount(ctx context.Context, npCommID string, platform psn.Platform) int {
	ids, _ := s.groupIDs(ctx, npCommID, platform, "")
	if len(ids) == 0 {
		ids = []string{"all"}
	}

	total := 0
	for _, gid := range ids {
		items, err := deadline.Run(ctx, s.cfg.GroupTimeout, func(ctx context.Context) ([]psn.Trophy, error) {
			return s.provider.Trophies(ctx, npCommID, platform, gid, false)
		})
		if err != nil {
			util.DebugLog("Trophy enumeration for %s [%s] group %s failed: %v", npCommID, platform, gid, err)
			continue
		}
		total += len(items)
	}
	return total
}

// groupIDs fetches the group summary under the summary timeout and returns
// the ordered group ids plus the resolved display-name map. A timeout
// yields empty results rather than failing the title.
func (s *Syncer) groupIDs(ctx context.Context, npCommID string, platform psn.Platform, title string) ([]string, map[string]string) {
	summary, err := deadline.Run(ctx, s.cfg.SummaryTimeout, func(ctx context.Context) (*psn.GroupSummary, error) {
		return s.provider.TrophyGroupSummary(ctx, npCommID, platform)
	})
	if err != nil {
		util.DebugLog("Group listing for %s [%s] unavailable: %v", npCommID, platform, err)
		return nil, map[string]string{}
	}

	names := psn.GroupNames(summary, title)
	seen := make(map[string]bool)
	var ids []string
	for _, g := range summary.TrophyGroups {
		if g.ID == "" || seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		ids = append(ids, g.ID)
	}
	return ids, names
}

// refreshCaches runs pass 2: apply the refresh policy to every title
// record under the per-title timeout
func (s *Syncer) refreshCaches(ctx context.Context, records, prevIndex []cache.TitleRecord) (refreshed, skipped int, err error) {
	util.InfoLog("Refresh mode: %s", s.cfg.Refresh)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return refreshed, skipped, err
		}

		if s.cfg.Refresh == PolicyNone {
			util.DebugLog("Skip (refresh=none): %s [%s]", rec.Title, rec.Platform)
			s.logger.LogSkip(rec.Title, string(rec.Platform), "refresh=none")
			skipped++
			continue
		}

		if s.cfg.Refresh == PolicyChanged && !NeedsRefresh(s.store, prevIndex, rec) {
			util.DebugLog("Skip (unchanged, cache complete): %s [%s]", rec.Title, rec.Platform)
			s.logger.LogSkip(rec.Title, string(rec.Platform), "unchanged")
			skipped++
			continue
		}

		rec := rec
		refreshStart := time.Now()
		rows, err := deadline.Run(ctx, s.cfg.TitleTimeout, func(ctx context.Context) (int, error) {
			return s.cacheTrophies(ctx, rec)
		})
		switch {
		case errors.Is(err, util.ErrTimeout):
			util.WarnLog("Skipped '%s' [%s] after %v (per-title timeout)", rec.Title, rec.Platform, s.cfg.TitleTimeout)
			s.logger.LogTimeout(rec.Title, string(rec.Platform), "title")
			rows = 0
		case err != nil:
			if ctx.Err() != nil {
				return refreshed, skipped, ctx.Err()
			}
			util.WarnLog("Refresh failed for '%s' [%s]: %v", rec.Title, rec.Platform, err)
			s.logger.LogError(report.EventRefresh, rec.Title, err)
			rows = 0
		}

		if rows > 0 {
			refreshed++
			util.InfoLog("Updated trophies: %s [%s] -> %d items (%v)",
				rec.Title, rec.Platform, rows, time.Since(refreshStart).Round(10*time.Millisecond))
			s.logger.LogRefresh(rec.Title, rec.NPCommID, string(rec.Platform), rows, time.Since(refreshStart))
		} else {
			util.InfoLog("No update (timeout or empty): %s [%s]", rec.Title, rec.Platform)
		}

		s.throttle()
	}

	return refreshed, skipped, nil
}

// cacheTrophies rebuilds one title's trophy cache. Runs inside the
// per-title deadline; returns the number of rows written. An empty result
// leaves any existing cache untouched.
func (s *Syncer) cacheTrophies(ctx context.Context, rec cache.TitleRecord) (int, error) {
	if rec.Platform == "" {
		return 0, nil
	}

	ids, names := s.groupIDs(ctx, rec.NPCommID, rec.Platform, rec.Title)
	if len(ids) == 0 {
		// Assume a single implicit base-game group
		ids = []string{"default"}
	}
	if s.cfg.MaxGroups > 0 && len(ids) > s.cfg.MaxGroups {
		ids = ids[:s.cfg.MaxGroups]
	}

	util.DebugLog("Caching trophies for %s [%s]: %d group(s)", rec.NPCommID, rec.Platform, len(ids))

	var rows []cache.TrophyRecord
	seen := make(map[string]bool)

	for gi, gid := range ids {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		groupStart := time.Now()

		items := s.listGroupTrophies(ctx, rec, gid)
		s.throttle()

		util.DebugLog("Group %d/%d '%s': %d items in %v",
			gi+1, len(ids), gid, len(items), time.Since(groupStart).Round(10*time.Millisecond))

		groupName := psn.GroupDisplayName(names, gid, rec.Title)

		for i := range items {
			t := &items[i]
			if t.ID == nil {
				continue
			}
			key := fmt.Sprintf("%s/%d", gid, *t.ID)
			if seen[key] {
				continue
			}
			seen[key] = true

			rows = append(rows, cache.TrophyRecord{
				GroupID:    gid,
				GroupName:  groupName,
				TrophyID:   *t.ID,
				Name:       t.Name,
				Detail:     t.Detail,
				Grade:      t.Type,
				Earned:     psn.EarnedFlag(t),
				EarnedRate: psn.RarityRate(t),
				IconURL:    t.IconURL,
			})
		}
	}

	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.store.WriteTrophies(rec.NPCommID, rec.Platform, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// listGroupTrophies fetches one group's trophy list under the group
// timeout, retrying once at half the timeout before treating the group as
// empty
func (s *Syncer) listGroupTrophies(ctx context.Context, rec cache.TitleRecord, gid string) []psn.Trophy {
	fetch := func(ctx context.Context) ([]psn.Trophy, error) {
		return s.provider.Trophies(ctx, rec.NPCommID, rec.Platform, gid, true)
	}

	items, err := deadline.Run(ctx, s.cfg.GroupTimeout, fetch)
	if errors.Is(err, util.ErrTimeout) {
		util.DebugLog("Timeout after %v on group '%s' - retrying once", s.cfg.GroupTimeout, gid)
		s.logger.LogTimeout(rec.Title, string(rec.Platform), "group "+gid)

		retryTimeout := s.cfg.GroupTimeout / 2
		if retryTimeout < 3*time.Second {
			retryTimeout = 3 * time.Second
		}
		items, err = deadline.Run(ctx, retryTimeout, fetch)
	}
	if err != nil {
		util.DebugLog("Group '%s' failed, treating as empty: %v", gid, err)
		return nil
	}
	return items
}

// throttle inserts the optional cooperative inter-call pause
func (s *Syncer) throttle() {
	if s.cfg.Throttle > 0 {
		time.Sleep(s.cfg.Throttle)
	}
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
