package handler

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"quizbot/internal/model"
)

// Callback data prefixes, used by the bot to route button presses.
const (
	SoloPrefix  = "solo_"
	MultiPrefix = "mp_"
)

// Callback actions.
const (
	actionCategory   = "cat"
	actionDifficulty = "dif"
	actionAnswer     = "ans"
	actionJoin       = "join"
	actionBegin      = "begin"
	actionCancel     = "cancel"
	actionNext       = "next"
	actionEnd        = "end"
)

// OptionLetters labels the answer buttons.
var OptionLetters = [model.OptionCount]string{"A", "B", "C", "D"}

// EncodeCallback joins a prefix, an action and its parameters into callback
// data, e.g. "mp_ans_<session>_2". Parameters must not contain "_" except
// for the last one.
func EncodeCallback(prefix, action string, params ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(action)
	for _, p := range params {
		b.WriteByte('_')
		b.WriteString(p)
	}
	return b.String()
}

// DecodeCallback splits callback data produced by EncodeCallback.
// Telebot may prepend "\f" to button data; it is stripped first.
func DecodeCallback(data string) (prefix, action string, params []string) {
	data = strings.TrimPrefix(data, "\f")
	switch {
	case strings.HasPrefix(data, SoloPrefix):
		prefix = SoloPrefix
	case strings.HasPrefix(data, MultiPrefix):
		prefix = MultiPrefix
	default:
		return "", "", nil
	}

	parts := strings.Split(strings.TrimPrefix(data, prefix), "_")
	action = parts[0]
	if len(parts) > 1 {
		params = parts[1:]
	}
	return prefix, action, params
}

func itoa(i int) string { return strconv.Itoa(i) }

func atoi64(s string) (int64, bool) {
	i, err := strconv.ParseInt(s, 10, 64)
	return i, err == nil
}

func i64toa(i int64) string { return strconv.FormatInt(i, 10) }

// parseIndex parses a zero-based index below n.
func parseIndex(s string, n int) (int, bool) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func parseCategory(s string) (model.Category, bool) {
	cats := model.Categories()
	i, ok := parseIndex(s, len(cats))
	if !ok {
		return "", false
	}
	return cats[i], true
}

func parseDifficulty(s string) (model.Difficulty, bool) {
	diffs := model.Difficulties()
	i, ok := parseIndex(s, len(diffs))
	if !ok {
		return "", false
	}
	return diffs[i], true
}

func categoryIndex(c model.Category) int {
	for i, known := range model.Categories() {
		if known == c {
			return i
		}
	}
	return -1
}

// BuildCategoryPanel lists every category, two per row. owner is the user
// allowed to pick.
func BuildCategoryPanel(prefix string, owner int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows [][]tele.InlineButton
	var row []tele.InlineButton
	for i, c := range model.Categories() {
		row = append(row, tele.InlineButton{
			Text: string(c),
			Data: EncodeCallback(prefix, actionCategory, i64toa(owner), itoa(i)),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	markup.InlineKeyboard = rows
	return markup
}

// BuildDifficultyPanel offers the three difficulties with their points.
func BuildDifficultyPanel(prefix string, owner int64, category model.Category) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	ci := itoa(categoryIndex(category))
	var row []tele.InlineButton
	for i, d := range model.Difficulties() {
		row = append(row, tele.InlineButton{
			Text: string(d) + " (" + itoa(int(d.Points())) + ")",
			Data: EncodeCallback(prefix, actionDifficulty, i64toa(owner), ci, itoa(i)),
		})
	}
	markup.InlineKeyboard = [][]tele.InlineButton{row}
	return markup
}

// BuildSoloAnswerPanel builds the A-D buttons for a player's question.
// seq identifies the question so presses on older messages are rejected.
func BuildSoloAnswerPanel(owner, seq int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	row := make([]tele.InlineButton, 0, model.OptionCount)
	for i, letter := range OptionLetters {
		row = append(row, tele.InlineButton{
			Text: letter,
			Data: EncodeCallback(SoloPrefix, actionAnswer, i64toa(owner), i64toa(seq), itoa(i)),
		})
	}
	markup.InlineKeyboard = [][]tele.InlineButton{row}
	return markup
}

// BuildMultiAnswerPanel builds the A-D buttons for one round of a session.
func BuildMultiAnswerPanel(sessionID string, round int) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	row := make([]tele.InlineButton, 0, model.OptionCount)
	for i, letter := range OptionLetters {
		row = append(row, tele.InlineButton{
			Text: letter,
			Data: EncodeCallback(MultiPrefix, actionAnswer, sessionID, itoa(round), itoa(i)),
		})
	}
	markup.InlineKeyboard = [][]tele.InlineButton{row}
	return markup
}

// BuildLobbyPanel builds the join / start / cancel buttons.
func BuildLobbyPanel(sessionID string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{
		{{Text: "✋ Participar", Data: EncodeCallback(MultiPrefix, actionJoin, sessionID)}},
		{
			{Text: "▶️ Começar agora", Data: EncodeCallback(MultiPrefix, actionBegin, sessionID)},
			{Text: "✖️ Cancelar", Data: EncodeCallback(MultiPrefix, actionCancel, sessionID)},
		},
	}
	return markup
}

// BuildResultsPanel builds the host controls shown after a round.
func BuildResultsPanel(sessionID string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{{
		{Text: "⏭ Próxima rodada", Data: EncodeCallback(MultiPrefix, actionNext, sessionID)},
		{Text: "🏁 Encerrar jogo", Data: EncodeCallback(MultiPrefix, actionEnd, sessionID)},
	}}
	return markup
}
