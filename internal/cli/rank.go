package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"quizbot/internal/model"
	"quizbot/internal/ranking"
)

func newRankCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the global ranking from the configured checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), cmd.OutOrStdout(), *configPath, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of players to show (default ranking.top_limit)")
	return cmd
}

func runRank(ctx context.Context, out io.Writer, configPath string, limit int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = cfg.Ranking.TopLimit
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	entries, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ranking: %w", err)
	}
	return printRanking(out, ranking.Rank(entries), limit)
}

func printRanking(out io.Writer, top []model.RankEntry, limit int) error {
	if limit > 0 && limit < len(top) {
		top = top[:limit]
	}
	if len(top) == 0 {
		_, err := fmt.Fprintln(out, "ranking is empty")
		return err
	}
	for i, e := range top {
		if _, err := fmt.Fprintf(out, "%3d. %-24s %6d  (id %d)\n", i+1, e.Username, e.Points, e.PlayerID); err != nil {
			return err
		}
	}
	return nil
}
