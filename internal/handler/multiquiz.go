package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"quizbot/internal/game"
	"quizbot/internal/game/multi"
	"quizbot/internal/model"
	"quizbot/internal/question"
)

// MultiQuizHandler handles multiplayer quiz commands and buttons.
type MultiQuizHandler struct {
	engine       *multi.Engine
	msgs         *QuestionMessages
	lobbyTimeout time.Duration
	roundTimeout time.Duration
}

// NewMultiQuizHandler creates a new MultiQuizHandler. The timeouts are only
// used in the texts shown to players.
func NewMultiQuizHandler(engine *multi.Engine, msgs *QuestionMessages, lobbyTimeout, roundTimeout time.Duration) *MultiQuizHandler {
	return &MultiQuizHandler{
		engine:       engine,
		msgs:         msgs,
		lobbyTimeout: lobbyTimeout,
		roundTimeout: roundTimeout,
	}
}

func isGroup(chat *tele.Chat) bool {
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}

// HandleMultiQuiz handles the /multiquiz command.
// Usage: /multiquiz or /multiquiz <categoria> <dificuldade>
func (h *MultiQuizHandler) HandleMultiQuiz(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if !isGroup(c.Chat()) {
		return c.Reply("👥 O quiz multiplayer só pode ser jogado em grupos. Use /quiz para jogar sozinho.")
	}

	args := c.Args()
	if len(args) == 0 {
		return c.Reply("🎮 Quiz Multiplayer\nEscolha uma categoria:", BuildCategoryPanel(MultiPrefix, sender.ID))
	}

	category, difficulty, err := parseSelection(args)
	if err != nil {
		return c.Reply(ErrorMessage(err) + "\n\n" + FormatCategories())
	}

	snap, err := h.engine.Create(playerFromSender(sender), c.Chat().ID, category, difficulty)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	return c.Send(FormatLobby(snap, h.lobbyMinutes()), BuildLobbyPanel(snap.ID))
}

func (h *MultiQuizHandler) lobbyMinutes() int {
	return int(h.lobbyTimeout.Round(time.Minute) / time.Minute)
}

// HandleCallback handles every mp_ button.
func (h *MultiQuizHandler) HandleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil || c.Sender() == nil || c.Chat() == nil {
		return nil
	}

	_, action, params := DecodeCallback(callback.Data)
	if len(params) == 0 {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Ação inválida"})
	}

	switch action {
	case actionCategory, actionDifficulty:
		// Menu buttons carry the id of the user who opened the menu.
		if !checkOwner(c, params[0]) {
			return respondAlert(c, "🚫 Só quem abriu o menu pode escolher. Use /multiquiz para criar outro jogo.")
		}
		if action == actionCategory {
			return h.onCategory(c, params)
		}
		return h.onDifficulty(c, params)
	case actionJoin:
		return h.onJoin(c, params[0])
	case actionBegin:
		return h.onBegin(c, params[0])
	case actionAnswer:
		return h.onAnswer(c, params)
	case actionNext:
		return h.onNext(c, params[0])
	case actionEnd:
		return h.onEnd(c, params[0])
	case actionCancel:
		return h.onCancel(c, params[0])
	}
	return c.Respond(&tele.CallbackResponse{Text: "❌ Ação inválida"})
}

func (h *MultiQuizHandler) onCategory(c tele.Context, params []string) error {
	if len(params) != 2 {
		return c.Respond()
	}
	category, ok := parseCategory(params[1])
	if !ok {
		return respondAlert(c, ErrorMessage(game.ErrInvalidSelection))
	}

	text := "🎮 Quiz Multiplayer\n📚 Categoria: " + string(category) + "\nAgora escolha a dificuldade:"
	if err := c.Edit(text, BuildDifficultyPanel(MultiPrefix, c.Sender().ID, category)); err != nil {
		log.Debug().Err(err).Msg("Failed to show difficulty panel")
	}
	return c.Respond()
}

func (h *MultiQuizHandler) onDifficulty(c tele.Context, params []string) error {
	if len(params) != 3 {
		return c.Respond()
	}
	category, okCat := parseCategory(params[1])
	difficulty, okDiff := parseDifficulty(params[2])
	if !okCat || !okDiff {
		return respondAlert(c, ErrorMessage(game.ErrInvalidSelection))
	}

	snap, err := h.engine.Create(playerFromSender(c.Sender()), c.Chat().ID, category, difficulty)
	if err != nil {
		return respondAlert(c, ErrorMessage(err))
	}
	if err := c.Edit(FormatLobby(snap, h.lobbyMinutes()), BuildLobbyPanel(snap.ID)); err != nil {
		log.Error().Err(err).Str("session_id", snap.ID).Msg("Failed to show lobby")
	}
	return c.Respond(&tele.CallbackResponse{Text: "🎮 Lobby criado!"})
}

func (h *MultiQuizHandler) onJoin(c tele.Context, sessionID string) error {
	snap, err := h.engine.Join(sessionID, playerFromSender(c.Sender()))
	if err != nil {
		return respondAlert(c, ErrorMessage(err))
	}
	if err := c.Edit(FormatLobby(snap, h.lobbyMinutes()), BuildLobbyPanel(snap.ID)); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to refresh lobby")
	}
	return c.Respond(&tele.CallbackResponse{Text: "✅ Você entrou no jogo!"})
}

func (h *MultiQuizHandler) onBegin(c tele.Context, sessionID string) error {
	snap, err := h.engine.Begin(context.Background(), sessionID, c.Sender().ID)
	if err != nil {
		return h.startFailed(c, sessionID, err)
	}

	text := fmt.Sprintf("🚀 O jogo começou!\n👥 Jogadores (%d): %s", len(snap.Players), playerNames(snap.Players))
	if err := c.Edit(text); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to close lobby")
	}
	ack(c)
	return h.postQuestion(c, snap)
}

func (h *MultiQuizHandler) onNext(c tele.Context, sessionID string) error {
	snap, err := h.engine.Next(context.Background(), sessionID, c.Sender().ID)
	if err != nil {
		return h.startFailed(c, sessionID, err)
	}

	if _, err := c.Bot().EditReplyMarkup(c.Callback().Message, nil); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to remove results buttons")
	}
	ack(c)
	return h.postQuestion(c, snap)
}

// startFailed reports a Begin or Next error. A provider failure has already
// destroyed the session, so the whole chat is told.
func (h *MultiQuizHandler) startFailed(c tele.Context, sessionID string, err error) error {
	if !errors.Is(err, question.ErrProviderFailure) {
		return respondAlert(c, ErrorMessage(err))
	}
	ack(c)
	if _, editErr := c.Bot().EditReplyMarkup(c.Callback().Message, nil); editErr != nil {
		log.Debug().Err(editErr).Str("session_id", sessionID).Msg("Failed to remove buttons")
	}
	return c.Send(ErrorMessage(err) + "\n🛑 O jogo foi encerrado.")
}

func (h *MultiQuizHandler) postQuestion(c tele.Context, snap multi.Snapshot) error {
	header := fmt.Sprintf("🎯 Rodada %d • ⏱ %d segundos", snap.Round, int(h.roundTimeout/time.Second))
	msg, err := c.Bot().Send(c.Chat(), FormatQuestion(snap.Question, header), BuildMultiAnswerPanel(snap.ID, snap.Round))
	if err != nil {
		log.Error().Err(err).Str("session_id", snap.ID).Msg("Failed to post question")
		return err
	}
	h.msgs.Set(snap.ID, msg)
	return nil
}

func (h *MultiQuizHandler) onAnswer(c tele.Context, params []string) error {
	if len(params) != 3 {
		return c.Respond()
	}
	round, okRound := parseIndex(params[1], math.MaxInt32)
	index, okIndex := parseIndex(params[2], model.OptionCount)
	if !okRound || !okIndex {
		return respondAlert(c, ErrorMessage(game.ErrInvalidAnswer))
	}

	sessionID := params[0]
	out, err := h.engine.Answer(sessionID, c.Sender().ID, round, index)
	if errors.Is(err, game.ErrInvalidState) {
		return respondAlert(c, "⌛ Esta rodada já terminou.")
	}
	if err != nil {
		return respondAlert(c, ErrorMessage(err))
	}

	text := fmt.Sprintf("📝 Resposta %s registrada! (%d/%d)", OptionLetters[index], out.Answered, out.Players)
	ack(c, &tele.CallbackResponse{Text: text})

	if out.Result == nil {
		return nil
	}
	closeQuestion(c.Bot(), h.msgs, sessionID)
	return c.Send(FormatRoundResult(*out.Result), BuildResultsPanel(sessionID))
}

func (h *MultiQuizHandler) onEnd(c tele.Context, sessionID string) error {
	snap, err := h.engine.End(sessionID, c.Sender().ID)
	if err != nil {
		return respondAlert(c, ErrorMessage(err))
	}

	closeQuestion(c.Bot(), h.msgs, sessionID)
	if _, err := c.Bot().EditReplyMarkup(c.Callback().Message, nil); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to remove results buttons")
	}
	ack(c, &tele.CallbackResponse{Text: "🏁 Jogo encerrado"})
	return c.Send(FormatFinal(snap))
}

func (h *MultiQuizHandler) onCancel(c tele.Context, sessionID string) error {
	if _, err := h.engine.Cancel(sessionID, c.Sender().ID); err != nil {
		return respondAlert(c, ErrorMessage(err))
	}

	closeQuestion(c.Bot(), h.msgs, sessionID)
	if err := c.Edit("✖️ Jogo cancelado pelo anfitrião."); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to close lobby")
	}
	return c.Respond(&tele.CallbackResponse{Text: "Jogo cancelado"})
}
