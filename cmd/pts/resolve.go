package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/trophy-janitor/internal/util"
	"github.com/franz/trophy-janitor/internal/watchlist"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Build the price watchlist from the game lists",
	Long: `Read lists/new_games.txt and lists/backlog.txt, clean the entries
(drop section headers, strip leading numbering, collapse whitespace,
dedupe case-insensitively) and write reports/watchlist.json.

When PTS_APIFY_TOKEN and PTS_APIFY_ACTOR_ID are set, titles are resolved
to store ids through the Apify actor; otherwise the watchlist carries
titles only.`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().String("lists-dir", "lists", "directory holding the game list files")
}

func runResolve(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	listsDir, _ := cmd.Flags().GetString("lists-dir")

	newGames, err := watchlist.ReadList(filepath.Join(listsDir, "new_games.txt"))
	if err != nil {
		return err
	}
	backlog, err := watchlist.ReadList(filepath.Join(listsDir, "backlog.txt"))
	if err != nil {
		return err
	}

	titles := watchlist.Merge(newGames, backlog)
	if len(titles) == 0 {
		util.WarnLog("No titles found under %s", listsDir)
	}

	token := viper.GetString("apify_token")
	if token == "" {
		token = os.Getenv("APIFY_TOKEN")
	}
	actorID := viper.GetString("apify_actor_id")
	if actorID == "" {
		actorID = os.Getenv("APIFY_ACTOR_ID")
	}

	resolver := watchlist.NewResolver(token, actorID)
	if resolver.Enabled() {
		util.InfoLog("Resolving %d titles through Apify...", len(titles))
	} else {
		util.DebugLog("Apify not configured, writing titles-only watchlist")
	}
	items := resolver.Resolve(context.Background(), titles)

	path, err := watchlist.Write(viper.GetString("reports-dir"), items)
	if err != nil {
		return fmt.Errorf("failed to write watchlist: %w", err)
	}

	util.SuccessLog("Wrote %s with %d items (from %d raw)", path, len(items), len(newGames)+len(backlog))
	return nil
}
