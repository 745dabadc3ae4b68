package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/franz/trophy-janitor/internal/cache"
	"github.com/franz/trophy-janitor/internal/psn"
	"github.com/franz/trophy-janitor/internal/store"
	"github.com/franz/trophy-janitor/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure pts can operate correctly.

This command checks:
- PSN credentials (NPSSO token present)
- Data directory accessibility and title index parse status
- Trophy cache file counts
- Price-history database accessibility and integrity
- Live PSN API reachability (with --live)

Use this command to troubleshoot issues before running pts operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().Bool("live", false, "probe the PSN API (authenticates and fetches a few titles)")
	doctorCmd.Flags().String("history-db", "prices.db", "price-history database file")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	util.InfoLog("=== PTS Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	results = append(results, checkCredentials())

	dataDir := viper.GetString("data-dir")
	results = append(results, checkDataDirectory(dataDir))
	results = append(results, checkTitleIndex(dataDir))
	results = append(results, checkTrophyCaches(dataDir))

	results = append(results, checkSQLite())
	historyPath, _ := cmd.Flags().GetString("history-db")
	results = append(results, checkHistoryDatabase(historyPath))

	if live, _ := cmd.Flags().GetBool("live"); live {
		results = append(results, checkLiveAPI())
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before running pts.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed! System is ready for pts operations.")
	}

	return nil
}

// checkCredentials verifies the PSN secrets are present without using them
func checkCredentials() checkResult {
	creds, err := getCredentials()
	if err != nil {
		return checkResult{
			name:    "PSN credentials",
			error:   true,
			message: err.Error(),
		}
	}

	return checkResult{
		name:    "PSN credentials",
		message: fmt.Sprintf("NPSSO token present, online id %s", creds.OnlineID),
	}
}

// checkDataDirectory verifies the data directory exists and is writable
func checkDataDirectory(dataDir string) checkResult {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return checkResult{
			name:    "Data directory",
			error:   true,
			message: fmt.Sprintf("cannot create %s: %v", dataDir, err),
		}
	}

	testFile := filepath.Join(dataDir, ".pts_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Data directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", dataDir, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Data directory",
		message: fmt.Sprintf("%s (writable)", dataDir),
	}
}

// checkTitleIndex parses the title index if present
func checkTitleIndex(dataDir string) checkResult {
	st, err := cache.NewStore(dataDir)
	if err != nil {
		return checkResult{
			name:    "Title index",
			error:   true,
			message: err.Error(),
		}
	}

	if _, err := os.Stat(st.TitlesPath()); os.IsNotExist(err) {
		return checkResult{
			name:    "Title index",
			message: "not present (will be created by 'pts sync')",
		}
	}

	titles, err := st.ReadTitles()
	if err != nil {
		return checkResult{
			name:    "Title index",
			error:   true,
			message: fmt.Sprintf("cannot parse %s: %v", st.TitlesPath(), err),
		}
	}

	return checkResult{
		name:    "Title index",
		message: fmt.Sprintf("%s (%d titles)", st.TitlesPath(), len(titles)),
	}
}

// checkTrophyCaches counts per-title cache files
func checkTrophyCaches(dataDir string) checkResult {
	st, err := cache.NewStore(dataDir)
	if err != nil {
		return checkResult{
			name:    "Trophy caches",
			error:   true,
			message: err.Error(),
		}
	}

	count, err := st.CountTrophyCaches()
	if err != nil {
		return checkResult{
			name:    "Trophy caches",
			warning: true,
			message: fmt.Sprintf("cannot count caches: %v", err),
		}
	}

	return checkResult{
		name:    "Trophy caches",
		message: fmt.Sprintf("%d cache file(s)", count),
	}
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite needs no external sqlite binary, just verify the
	// version is readable
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkHistoryDatabase verifies price-history database accessibility
func checkHistoryDatabase(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Price history",
				message: fmt.Sprintf("%s (will be created by 'pts prices')", path),
			}
		}
		return checkResult{
			name:    "Price history",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	db, err := store.Open(path)
	if err != nil {
		return checkResult{
			name:    "Price history",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", path, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Price history",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	count, _ := db.CountSnapshots()
	return checkResult{
		name:    "Price history",
		message: fmt.Sprintf("%s (%d bytes, %d observations)", path, info.Size(), count),
	}
}

// checkLiveAPI authenticates and fetches a handful of titles plus one
// group summary
func checkLiveAPI() checkResult {
	creds, err := getCredentials()
	if err != nil {
		return checkResult{
			name:    "PSN API",
			error:   true,
			message: err.Error(),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := psn.NewClient(creds.NPSSO, creds.OnlineID)
	defer client.Close()

	if err := client.Authenticate(ctx); err != nil {
		return checkResult{
			name:    "PSN API",
			error:   true,
			message: fmt.Sprintf("authentication failed: %v", err),
		}
	}

	titles, err := client.TrophyTitles(ctx, 20)
	if err != nil {
		return checkResult{
			name:    "PSN API",
			error:   true,
			message: fmt.Sprintf("title list fetch failed: %v", err),
		}
	}
	if len(titles) == 0 {
		return checkResult{
			name:    "PSN API",
			warning: true,
			message: "authenticated but no trophy titles visible",
		}
	}

	// Probe one group summary to cover the trophy endpoints too
	first := titles[0]
	platform := psn.PrimaryPlatform(first.Platforms())
	if _, err := client.TrophyGroupSummary(ctx, first.NPCommunicationID, platform); err != nil {
		return checkResult{
			name:    "PSN API",
			warning: true,
			message: fmt.Sprintf("titles reachable but group summary failed: %v", err),
		}
	}

	msg := fmt.Sprintf("reachable (%d titles visible, group endpoint ok)", len(titles))
	if acct, err := client.TrophySummary(ctx); err == nil {
		msg += fmt.Sprintf(", trophy level %d", acct.TrophyLevel)
	}
	return checkResult{
		name:    "PSN API",
		message: msg,
	}
}
