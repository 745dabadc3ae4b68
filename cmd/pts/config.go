package main

import (
	"fmt"
	"os"

	"github.com/franz/trophy-janitor/internal/report"
	"github.com/franz/trophy-janitor/internal/util"
	"github.com/spf13/viper"
)

// interruptExitCode follows the shell convention of 128 + SIGINT
const interruptExitCode = 130

// credentials holds the PSN account secrets, resolved once before any
// network call
type credentials struct {
	NPSSO    string
	OnlineID string
}

// getCredentials resolves PSN credentials with precedence: PTS_* env (via
// viper), then the bare PSN_* variables the original tooling used. Both
// values are mandatory; callers check credentials before any network call.
func getCredentials() (*credentials, error) {
	npsso := viper.GetString("npsso")
	if npsso == "" {
		npsso = os.Getenv("PSN_NPSSO")
	}
	onlineID := viper.GetString("online_id")
	if onlineID == "" {
		onlineID = os.Getenv("PSN_ONLINE_ID")
	}

	if npsso == "" {
		return nil, fmt.Errorf("%w: set PTS_NPSSO or PSN_NPSSO", util.ErrMissingCredentials)
	}
	if onlineID == "" {
		return nil, fmt.Errorf("%w: set PTS_ONLINE_ID or PSN_ONLINE_ID", util.ErrMissingCredentials)
	}

	return &credentials{NPSSO: npsso, OnlineID: onlineID}, nil
}

// applyLogFlags configures the logger from the global verbosity flags
func applyLogFlags() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// newEventLogger creates the JSONL event logger for a run, degrading to a
// null logger when the artifacts directory is not writable
func newEventLogger() *report.EventLogger {
	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger("artifacts", logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}
	return logger
}
