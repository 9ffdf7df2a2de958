package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizbot/internal/model"
)

func TestEncodeDecodeCallback(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		prefix string
		action string
		params []string
	}{
		{"solo answer", EncodeCallback(SoloPrefix, actionAnswer, "42", "3"), SoloPrefix, actionAnswer, []string{"42", "3"}},
		{"telebot marker", "\f" + EncodeCallback(MultiPrefix, actionJoin, "abc-def"), MultiPrefix, actionJoin, []string{"abc-def"}},
		{"no params", MultiPrefix + actionEnd, MultiPrefix, actionEnd, nil},
		{"unknown prefix", "shop_buy_1", "", "", nil},
		{"empty", "", "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, action, params := DecodeCallback(tt.data)
			assert.Equal(t, tt.prefix, prefix)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	// Telegram rejects callback data longer than 64 bytes.
	id := "123e4567-e89b-12d3-a456-426614174000"
	for _, data := range []string{
		EncodeCallback(MultiPrefix, actionAnswer, id, "999", "3"),
		EncodeCallback(SoloPrefix, actionAnswer, "-1001234567890", "9223372036854775807", "3"),
		EncodeCallback(MultiPrefix, actionCancel, id),
		EncodeCallback(SoloPrefix, actionDifficulty, "-1001234567890", "7", "2"),
	} {
		assert.LessOrEqual(t, len(data), 64, data)
	}
}

func TestCategoryPanel(t *testing.T) {
	markup := BuildCategoryPanel(SoloPrefix, 7)
	var buttons int
	for _, row := range markup.InlineKeyboard {
		assert.LessOrEqual(t, len(row), 2)
		buttons += len(row)
	}
	require.Equal(t, len(model.Categories()), buttons)

	first := markup.InlineKeyboard[0][0]
	prefix, action, params := DecodeCallback(first.Data)
	assert.Equal(t, SoloPrefix, prefix)
	assert.Equal(t, actionCategory, action)
	assert.Equal(t, []string{"7", "0"}, params)

	category, ok := parseCategory(params[1])
	require.True(t, ok)
	assert.Equal(t, string(category), first.Text)
}

func TestDifficultyPanel(t *testing.T) {
	markup := BuildDifficultyPanel(MultiPrefix, 9, model.CategoryScience)
	require.Len(t, markup.InlineKeyboard, 1)
	row := markup.InlineKeyboard[0]
	require.Len(t, row, len(model.Difficulties()))

	for i, btn := range row {
		_, action, params := DecodeCallback(btn.Data)
		assert.Equal(t, actionDifficulty, action)
		require.Len(t, params, 3)

		category, ok := parseCategory(params[1])
		require.True(t, ok)
		assert.Equal(t, model.CategoryScience, category)

		difficulty, ok := parseDifficulty(params[2])
		require.True(t, ok)
		assert.Equal(t, model.Difficulties()[i], difficulty)
	}
	assert.Equal(t, "Difícil (5)", row[2].Text)
}

func TestAnswerPanels(t *testing.T) {
	solo := BuildSoloAnswerPanel(5, 12).InlineKeyboard[0]
	multi := BuildMultiAnswerPanel("s1", 3).InlineKeyboard[0]
	require.Len(t, solo, model.OptionCount)
	require.Len(t, multi, model.OptionCount)

	for i := range OptionLetters {
		assert.Equal(t, OptionLetters[i], solo[i].Text)
		_, _, params := DecodeCallback(solo[i].Data)
		assert.Equal(t, []string{"5", "12", itoa(i)}, params)

		_, _, params = DecodeCallback(multi[i].Data)
		assert.Equal(t, []string{"s1", "3", itoa(i)}, params)
	}
}

func TestAnswerPanelsDifferPerQuestion(t *testing.T) {
	first := BuildSoloAnswerPanel(7, 1).InlineKeyboard[0][0].Data
	second := BuildSoloAnswerPanel(7, 2).InlineKeyboard[0][0].Data
	assert.NotEqual(t, first, second)

	round1 := BuildMultiAnswerPanel("s1", 1).InlineKeyboard[0][0].Data
	round2 := BuildMultiAnswerPanel("s1", 2).InlineKeyboard[0][0].Data
	assert.NotEqual(t, round1, round2)
}

func TestParseIndex(t *testing.T) {
	for _, s := range []string{"-1", "4", "x", ""} {
		_, ok := parseIndex(s, model.OptionCount)
		assert.False(t, ok, s)
	}
	i, ok := parseIndex("3", model.OptionCount)
	assert.True(t, ok)
	assert.Equal(t, 3, i)
}

func TestParseSelection(t *testing.T) {
	category, difficulty, err := parseSelection([]string{"Arte", "e", "Literatura", "médio"})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryArts, category)
	assert.Equal(t, model.DifficultyMedium, difficulty)

	_, _, err = parseSelection([]string{"Geral"})
	assert.Error(t, err)
	_, _, err = parseSelection([]string{"Culinária", "Fácil"})
	assert.Error(t, err)
}
