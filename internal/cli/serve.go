package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizbot/internal/bot"
	"quizbot/internal/game"
	"quizbot/internal/game/multi"
	"quizbot/internal/game/solo"
	"quizbot/internal/handler"
	"quizbot/internal/question"
	"quizbot/internal/ranking"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	opts := storeOptions(cfg)
	mirror, closeMirror := openMirror(ctx, cfg)
	defer closeMirror()
	if mirror != nil {
		opts = append(opts, ranking.WithMirror(mirror))
	}

	store := ranking.NewStore(repo, opts...)
	if err := store.Load(ctx); err != nil {
		return err
	}

	provider, err := question.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout)
	if err != nil {
		return err
	}

	teleBot, err := bot.NewTeleBot(cfg)
	if err != nil {
		return err
	}

	msgs := handler.NewQuestionMessages()
	notifier := handler.NewNotifier(teleBot, msgs)

	soloEngine := solo.NewEngine(provider, store, cfg.Reaper.SoloIdle)
	multiEngine := multi.NewEngine(provider, store, notifier, multi.Config{
		LobbyTimeout: cfg.Games.LobbyTimeout,
		RoundTimeout: cfg.Games.RoundTimeout,
		IdleTimeout:  cfg.Reaper.SessionIdle,
	})

	reaper := game.NewReaper(cfg.Reaper.Interval)
	reaper.Add("solo", soloEngine)
	reaper.Add("multi", multiEngine)

	telegramBot := bot.New(teleBot, &bot.Dependencies{
		Config:           cfg,
		Solo:             soloEngine,
		Multi:            multiEngine,
		Ranking:          store,
		QuestionMessages: msgs,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return store.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })
	g.Go(func() error {
		telegramBot.Start()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Received shutdown signal")
		telegramBot.Stop()
		return nil
	})

	err = g.Wait()
	log.Info().Int("players", store.Len()).Msg("Bot stopped gracefully")
	return err
}
