// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"quizbot/internal/config"
	"quizbot/internal/game/multi"
	"quizbot/internal/game/solo"
	"quizbot/internal/handler"
)

// NewTeleBot creates the telebot client. It is built before the engines so
// the multiplayer notifier can send through it.
func NewTeleBot(cfg *config.Config) (*tele.Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pollTimeout := cfg.Bot.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// Bot wraps the telebot instance with application handlers.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	private *PrivateUsers

	quizHandler      *handler.QuizHandler
	multiQuizHandler *handler.MultiQuizHandler
	rankingHandler   *handler.RankingHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config           *config.Config
	Solo             *solo.Engine
	Multi            *multi.Engine
	Ranking          handler.RankingReader
	QuestionMessages *handler.QuestionMessages
}

// New registers middleware and handlers on teleBot.
func New(teleBot *tele.Bot, deps *Dependencies) *Bot {
	games := deps.Config.Games

	b := &Bot{
		bot:     teleBot,
		cfg:     deps.Config,
		private: NewPrivateUsers(),
	}

	b.quizHandler = handler.NewQuizHandler(deps.Solo, games.NextQuestionDelay)
	b.multiQuizHandler = handler.NewMultiQuizHandler(deps.Multi, deps.QuestionMessages, games.LobbyTimeout, games.RoundTimeout)
	b.rankingHandler = handler.NewRankingHandler(deps.Ranking, deps.Config.Ranking.TopLimit)

	b.registerMiddleware()
	b.registerHandlers()

	return b
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.private))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.rankingHandler.HandleStart)
	b.bot.Handle("/ajuda", b.rankingHandler.HandleStart)
	b.bot.Handle("/categorias", b.rankingHandler.HandleCategories)
	b.bot.Handle("/rank", b.rankingHandler.HandleRank)

	b.bot.Handle("/quiz", b.quizHandler.HandleQuiz)
	b.bot.Handle("/desistir", b.quizHandler.HandleQuit)
	b.bot.Handle("/multiquiz", b.multiQuizHandler.HandleMultiQuiz)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes button presses by their data prefix.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	prefix, action, _ := handler.DecodeCallback(callback.Data)
	log.Debug().Str("prefix", prefix).Str("action", action).Msg("Callback received")

	switch prefix {
	case handler.SoloPrefix:
		return b.quizHandler.HandleCallback(c)
	case handler.MultiPrefix:
		return b.multiQuizHandler.HandleCallback(c)
	}
	return c.Respond()
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
