package cli

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quizbot/internal/config"
	"quizbot/internal/pkg/db"
	"quizbot/internal/repository"
)

// newMigrateCmd creates the PostgreSQL ranking table.
func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL ranking table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), *configPath)
		},
	}
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Ranking.Backend != config.BackendPostgres {
		return errors.New("migrate requires ranking.backend: postgres")
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.NewPostgresRanking(pool).Migrate(ctx); err != nil {
		return err
	}
	log.Info().Msg("Migrations applied")
	return nil
}
