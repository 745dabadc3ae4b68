package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franz/trophy-janitor/internal/cache"
	"github.com/franz/trophy-janitor/internal/psn"
	"github.com/franz/trophy-janitor/internal/sync"
	"github.com/franz/trophy-janitor/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize PSN trophy data into local caches",
	Long: `Synchronize the account's trophy collection into local CSV caches.

The run has two passes:
1. Titles: rebuild the title index (name, platform, counts, percent)
2. Details: refresh per-title trophy caches according to --refresh

Every remote call runs under a deadline, so a single slow title cannot
stall the run. Interrupting with Ctrl-C exits with code 130 and leaves
all cache files in their last consistent state.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Int("limit", 0, "process only the first N titles (0 = all)")
	syncCmd.Flags().String("refresh", "changed", "which trophy caches to refresh: changed, all or none")
	syncCmd.Flags().Float64("throttle", 0, "pause between remote calls in seconds")
	syncCmd.Flags().Float64("group-timeout", 6, "deadline per trophy-group listing in seconds")
	syncCmd.Flags().Float64("summary-timeout", 6, "deadline per group-summary fetch in seconds")
	syncCmd.Flags().Int("max-groups", 50, "groups processed per title (0 = unlimited)")
	syncCmd.Flags().Float64("title-timeout", 45, "hard cap per title in seconds (0 = unlimited)")
	syncCmd.Flags().Bool("log-unchanged-titles", false, "log titles whose progress did not change")
	syncCmd.Flags().Bool("recount", false, "recompute trophy totals even for unchanged titles")
}

func runSync(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	cfg, err := syncConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	creds, err := getCredentials()
	if err != nil {
		return err
	}

	dataDir := viper.GetString("data-dir")
	store, err := cache.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to prepare data directory: %w", err)
	}

	logger := newEventLogger()
	defer logger.Close()

	// Ctrl-C cancels the run context; caches stay consistent because only
	// whole-file renames mutate them
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := psn.NewClient(creds.NPSSO, creds.OnlineID)
	defer client.Close()

	util.InfoLog("Authenticating with PSN...")
	if err := client.Authenticate(ctx); err != nil {
		if ctx.Err() != nil {
			os.Exit(interruptExitCode)
		}
		return fmt.Errorf("authentication failed: %w", err)
	}
	util.SuccessLog("Authenticated (account: %s)", client.AccountID())

	syncer := sync.New(client, store, logger, cfg)
	summary, err := syncer.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			util.WarnLog("Interrupted, caches left in last consistent state")
			os.Exit(interruptExitCode)
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	util.InfoLog("")
	util.SuccessLog("%s", summary.Line())
	return nil
}

func syncConfigFromFlags(cmd *cobra.Command) (sync.Config, error) {
	cfg := sync.DefaultConfig()

	refresh, _ := cmd.Flags().GetString("refresh")
	policy, err := sync.ParsePolicy(refresh)
	if err != nil {
		return cfg, err
	}
	cfg.Refresh = policy

	cfg.Limit, _ = cmd.Flags().GetInt("limit")
	if cfg.Limit < 0 {
		return cfg, fmt.Errorf("%w: --limit must not be negative", util.ErrInvalidConfig)
	}
	cfg.MaxGroups, _ = cmd.Flags().GetInt("max-groups")
	if cfg.MaxGroups < 0 {
		return cfg, fmt.Errorf("%w: --max-groups must not be negative", util.ErrInvalidConfig)
	}

	throttle, _ := cmd.Flags().GetFloat64("throttle")
	cfg.Throttle = secondsToDuration(throttle)
	groupTimeout, _ := cmd.Flags().GetFloat64("group-timeout")
	cfg.GroupTimeout = secondsToDuration(groupTimeout)
	summaryTimeout, _ := cmd.Flags().GetFloat64("summary-timeout")
	cfg.SummaryTimeout = secondsToDuration(summaryTimeout)
	titleTimeout, _ := cmd.Flags().GetFloat64("title-timeout")
	cfg.TitleTimeout = secondsToDuration(titleTimeout)

	cfg.LogUnchangedTitles, _ = cmd.Flags().GetBool("log-unchanged-titles")
	cfg.Recount, _ = cmd.Flags().GetBool("recount")

	// Progress bar only when attached to a terminal and not in quiet mode
	cfg.ShowProgress = util.IsTerminal(os.Stdout.Fd()) && !viper.GetBool("quiet")

	return cfg, nil
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
