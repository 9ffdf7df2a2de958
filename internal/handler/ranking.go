package handler

import (
	tele "gopkg.in/telebot.v3"

	"quizbot/internal/model"
)

// RankingReader is the read side of the global ranking.
type RankingReader interface {
	TopN(limit int) []model.RankEntry
	Position(playerID int64) int
	Total(playerID int64) (int64, bool)
}

// RankingHandler handles ranking and informational commands.
type RankingHandler struct {
	ranking RankingReader
	limit   int
}

// NewRankingHandler creates a new RankingHandler showing the top limit
// players.
func NewRankingHandler(ranking RankingReader, limit int) *RankingHandler {
	if limit <= 0 {
		limit = 10
	}
	return &RankingHandler{
		ranking: ranking,
		limit:   limit,
	}
}

// HandleRank handles the /rank command.
func (h *RankingHandler) HandleRank(c tele.Context) error {
	top := h.ranking.TopN(h.limit)

	var pos int
	var total int64
	if sender := c.Sender(); sender != nil {
		pos = h.ranking.Position(sender.ID)
		total, _ = h.ranking.Total(sender.ID)
	}
	return c.Reply(FormatRanking(top, pos, total))
}

// HandleCategories handles the /categorias command.
func (h *RankingHandler) HandleCategories(c tele.Context) error {
	return c.Reply(FormatCategories())
}

// HandleStart handles /start and /ajuda.
func (h *RankingHandler) HandleStart(c tele.Context) error {
	msg := "🧠 Bem-vindo ao Quiz!\n" + divider + "\n" +
		"/quiz - jogar sozinho, uma pergunta por vez\n" +
		"/quiz <categoria> <dificuldade> - começar direto\n" +
		"/desistir - abandonar o jogo solo atual\n" +
		"/multiquiz - criar um jogo no grupo\n" +
		"/rank - ver o ranking global\n" +
		"/categorias - categorias e pontuação\n\n" +
		"Acertos valem 1, 3 ou 5 pontos conforme a dificuldade."
	return c.Reply(msg)
}
