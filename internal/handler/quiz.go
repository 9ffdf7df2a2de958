// Package handler provides Telegram bot command and callback handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"quizbot/internal/game"
	"quizbot/internal/game/solo"
	"quizbot/internal/model"
)

// parseSelection reads "<categoria> <dificuldade>" from command arguments.
// The category may contain spaces; the difficulty is the last word.
func parseSelection(args []string) (model.Category, model.Difficulty, error) {
	if len(args) < 2 {
		return "", "", game.ErrInvalidSelection
	}
	difficulty, err := model.ParseDifficulty(args[len(args)-1])
	if err != nil {
		return "", "", game.ErrInvalidSelection
	}
	category, err := model.ParseCategory(strings.Join(args[:len(args)-1], " "))
	if err != nil {
		return "", "", game.ErrInvalidSelection
	}
	return category, difficulty, nil
}

// respondAlert answers a button press with a pop-up.
func respondAlert(c tele.Context, text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

// ack answers a button press whose reply is not essential, logging a
// failure instead of returning it.
func ack(c tele.Context, resp ...*tele.CallbackResponse) {
	if err := c.Respond(resp...); err != nil {
		log.Debug().Err(err).Str("callback", c.Callback().Data).Msg("Failed to answer callback")
	}
}

// checkOwner rejects presses on menus that belong to another user.
func checkOwner(c tele.Context, param string) bool {
	return param == i64toa(c.Sender().ID)
}

// QuizHandler handles solo quiz commands and buttons.
type QuizHandler struct {
	engine    *solo.Engine
	nextDelay time.Duration
}

// NewQuizHandler creates a new QuizHandler. nextDelay is the pause before
// the next question is posted after a correct answer.
func NewQuizHandler(engine *solo.Engine, nextDelay time.Duration) *QuizHandler {
	return &QuizHandler{
		engine:    engine,
		nextDelay: nextDelay,
	}
}

// HandleQuiz handles the /quiz command.
// Usage: /quiz or /quiz <categoria> <dificuldade>
func (h *QuizHandler) HandleQuiz(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) == 0 {
		text := "🧠 Escolha uma categoria:"
		if g, ok := h.engine.Active(sender.ID); ok {
			text = fmt.Sprintf("🔁 Você tem um jogo em andamento (%s, sequência %d). Escolher uma nova categoria reinicia o jogo.\n\n%s",
				g.Category, g.Streak, text)
		}
		return c.Reply(text, BuildCategoryPanel(SoloPrefix, sender.ID))
	}

	category, difficulty, err := parseSelection(args)
	if err != nil {
		return c.Reply(ErrorMessage(err) + "\n\n" + FormatCategories())
	}

	msg, err := c.Bot().Reply(c.Message(), "⏳ Gerando sua pergunta...")
	if err != nil {
		return err
	}
	return h.start(c, msg, category, difficulty)
}

// HandleQuit handles the /desistir command.
func (h *QuizHandler) HandleQuit(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	g, err := h.engine.Abandon(sender.ID)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	return c.Reply(fmt.Sprintf("🏳️ Jogo encerrado. Sua sequência foi de %d acerto(s).", g.Streak))
}

// start fetches the first question and shows it in msg.
func (h *QuizHandler) start(c tele.Context, msg *tele.Message, category model.Category, difficulty model.Difficulty) error {
	player := playerFromSender(c.Sender())
	g, err := h.engine.Start(context.Background(), player, c.Chat().ID, category, difficulty)
	if err != nil {
		_, editErr := c.Bot().Edit(msg, ErrorMessage(err))
		return editErr
	}

	_, err = c.Bot().Edit(msg, FormatQuestion(g.Question, ""), BuildSoloAnswerPanel(player.ID, g.Seq))
	return err
}

// HandleCallback handles every solo_ button.
func (h *QuizHandler) HandleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil || c.Sender() == nil || c.Chat() == nil {
		return nil
	}

	_, action, params := DecodeCallback(callback.Data)
	if len(params) == 0 {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Ação inválida"})
	}
	if !checkOwner(c, params[0]) {
		return respondAlert(c, "🚫 Este jogo é de outra pessoa. Use /quiz para jogar.")
	}

	switch action {
	case actionCategory:
		return h.onCategory(c, params)
	case actionDifficulty:
		return h.onDifficulty(c, params)
	case actionAnswer:
		return h.onAnswer(c, params)
	}
	return c.Respond(&tele.CallbackResponse{Text: "❌ Ação inválida"})
}

func (h *QuizHandler) onCategory(c tele.Context, params []string) error {
	if len(params) != 2 {
		return c.Respond()
	}
	category, ok := parseCategory(params[1])
	if !ok {
		return respondAlert(c, ErrorMessage(game.ErrInvalidSelection))
	}

	text := "📚 Categoria: " + string(category) + "\nAgora escolha a dificuldade:"
	if err := c.Edit(text, BuildDifficultyPanel(SoloPrefix, c.Sender().ID, category)); err != nil {
		log.Debug().Err(err).Msg("Failed to show difficulty panel")
	}
	return c.Respond()
}

func (h *QuizHandler) onDifficulty(c tele.Context, params []string) error {
	if len(params) != 3 {
		return c.Respond()
	}
	category, okCat := parseCategory(params[1])
	difficulty, okDiff := parseDifficulty(params[2])
	if !okCat || !okDiff {
		return respondAlert(c, ErrorMessage(game.ErrInvalidSelection))
	}

	ack(c, &tele.CallbackResponse{Text: "⏳ Gerando pergunta..."})
	msg, err := c.Bot().Edit(c.Callback().Message, "⏳ Gerando sua pergunta...")
	if err != nil {
		return err
	}
	return h.start(c, msg, category, difficulty)
}

func (h *QuizHandler) onAnswer(c tele.Context, params []string) error {
	if len(params) != 3 {
		return c.Respond()
	}
	seq, okSeq := atoi64(params[1])
	index, okIndex := parseIndex(params[2], model.OptionCount)
	if !okSeq || !okIndex {
		return respondAlert(c, ErrorMessage(game.ErrInvalidAnswer))
	}

	player := playerFromSender(c.Sender())
	res, err := h.engine.SubmitAnswer(context.Background(), player, seq, index)
	if errors.Is(err, game.ErrInvalidState) {
		return respondAlert(c, "⌛ Esta pergunta já não vale mais. Responda a mais recente.")
	}
	if err != nil {
		return respondAlert(c, ErrorMessage(err))
	}

	// Replace the buttons with the outcome so the question cannot be answered twice.
	text := FormatQuestion(res.Answered, "") + "\n\n" + FormatSoloResult(res)
	if err := c.Edit(text); err != nil {
		log.Debug().Err(err).Int64("user_id", player.ID).Msg("Failed to edit answered question")
	}

	if res.Next != nil {
		h.postNext(c, player.ID, res.NextSeq, res.Next)
	}

	if res.Correct {
		return c.Respond(&tele.CallbackResponse{Text: "✅ Correto!"})
	}
	return c.Respond(&tele.CallbackResponse{Text: "❌ Errado!"})
}

// postNext sends the next question to the chat after the configured pause.
func (h *QuizHandler) postNext(c tele.Context, owner, seq int64, q *model.Question) {
	send := func() {
		if err := c.Send(FormatQuestion(q, ""), BuildSoloAnswerPanel(owner, seq)); err != nil {
			log.Error().Err(err).Int64("user_id", owner).Msg("Failed to send next question")
		}
	}
	if h.nextDelay <= 0 {
		send()
		return
	}
	time.AfterFunc(h.nextDelay, send)
}
