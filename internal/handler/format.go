package handler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v3"

	"quizbot/internal/game"
	"quizbot/internal/game/multi"
	"quizbot/internal/game/solo"
	"quizbot/internal/model"
	"quizbot/internal/question"
)

const divider = "━━━━━━━━━━━━━━━"

var medals = []string{"🥇", "🥈", "🥉"}

// playerFromSender builds a player from a Telegram user, preferring the
// @username and falling back to the first name.
func playerFromSender(u *tele.User) model.Player {
	name := u.Username
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return model.Player{ID: u.ID, Name: name}
}

func displayName(id int64, name string) string {
	if name == "" {
		return fmt.Sprintf("Jogador%d", id)
	}
	return name
}

func playerNames(players []model.Player) string {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = displayName(p.ID, p.Name)
	}
	return strings.Join(names, ", ")
}

func pointsWord(n int64) string {
	if n == 1 {
		return "ponto"
	}
	return "pontos"
}

// FormatQuestion renders a question with its lettered options.
func FormatQuestion(q *model.Question, header string) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "📝 %s (%s) • %d %s\n%s\n", q.Category, q.Difficulty, q.Points, pointsWord(q.Points), divider)
	b.WriteString(q.Text)
	b.WriteString("\n\n")
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "%s) %s\n", OptionLetters[i], opt)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSoloResult renders the outcome of a solo answer.
func FormatSoloResult(res *solo.AnswerResult) string {
	q := res.Answered
	correct := fmt.Sprintf("%s) %s", OptionLetters[q.CorrectIndex], q.CorrectOption())

	if !res.Correct {
		msg := fmt.Sprintf("❌ Que pena! A resposta correta era %s.", correct)
		if q.Explanation != "" {
			msg += "\n\n💡 " + q.Explanation
		}
		msg += fmt.Sprintf("\n\n🏁 Fim de jogo! Sua sequência final foi de %d acerto(s).", res.Streak)
		return msg
	}

	msg := fmt.Sprintf("✅ Resposta correta! (Sequência: %d)\n", res.Streak)
	msg += fmt.Sprintf("%s\n+%d %s • Total: %d", correct, res.Points, pointsWord(res.Points), res.Total)
	if q.Explanation != "" {
		msg += "\n\n💡 " + q.Explanation
	}
	switch {
	case res.NextErr != nil:
		msg += "\n\n⚠️ Não consegui gerar a próxima pergunta. Seus pontos foram mantidos, use /quiz para jogar de novo."
	case res.Next != nil:
		msg += "\n\nPreparando a próxima pergunta..."
	}
	return msg
}

// FormatLobby renders a lobby with its current players.
func FormatLobby(snap multi.Snapshot, lobbyMinutes int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎮 Quiz Multiplayer\n%s\n", divider)
	fmt.Fprintf(&b, "Anfitrião: %s\n", displayName(snap.Host.ID, snap.Host.Name))
	fmt.Fprintf(&b, "Categoria: %s\nDificuldade: %s (%d %s por acerto)\n\n",
		snap.Category, snap.Difficulty, snap.Difficulty.Points(), pointsWord(snap.Difficulty.Points()))
	fmt.Fprintf(&b, "👥 Jogadores (%d): %s\n\n", len(snap.Players), playerNames(snap.Players))
	b.WriteString("Clique em \"Participar\" para entrar! O anfitrião pode começar a qualquer momento.")
	if lobbyMinutes > 0 {
		fmt.Fprintf(&b, "\nO lobby expira em %d minuto(s).", lobbyMinutes)
	}
	return b.String()
}

// FormatRoundResult renders the partition of a resolved round.
func FormatRoundResult(res multi.RoundResult) string {
	q := res.Question
	var b strings.Builder
	if res.TimedOut {
		b.WriteString("⏰ Tempo esgotado!\n")
	}
	fmt.Fprintf(&b, "📊 Resultado da rodada %d\n%s\n", res.Round, divider)
	fmt.Fprintf(&b, "A resposta correta para \"%s\" era %s) %s.\n", q.Text, OptionLetters[q.CorrectIndex], q.CorrectOption())
	if q.Explanation != "" {
		fmt.Fprintf(&b, "💡 %s\n", q.Explanation)
	}

	b.WriteString("\n✅ Acertaram: ")
	if len(res.Correct) == 0 {
		b.WriteString("Ninguém acertou.")
	} else {
		parts := make([]string, len(res.Correct))
		for i, pr := range res.Correct {
			parts[i] = fmt.Sprintf("%s (+%d)", displayName(pr.Player.ID, pr.Player.Name), pr.Points)
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	b.WriteString("\n❌ Erraram: ")
	if len(res.Incorrect) == 0 {
		b.WriteString("Ninguém errou!")
	} else {
		parts := make([]string, len(res.Incorrect))
		for i, pr := range res.Incorrect {
			parts[i] = displayName(pr.Player.ID, pr.Player.Name)
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	if len(res.NoAnswer) > 0 {
		fmt.Fprintf(&b, "\n⌛ Não responderam: %s", playerNames(res.NoAnswer))
	}
	return b.String()
}

// FormatFinal renders the per-session standings when a game ends.
func FormatFinal(snap multi.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏁 Fim de jogo! %d rodada(s) jogada(s).\n%s\n", snap.Round, divider)
	if snap.Round == 0 {
		b.WriteString("Nenhuma rodada foi jogada.")
		return b.String()
	}

	players := make([]model.Player, len(snap.Players))
	copy(players, snap.Players)
	sort.SliceStable(players, func(i, j int) bool {
		return snap.Scores[players[i].ID] > snap.Scores[players[j].ID]
	})
	for i, p := range players {
		pts := snap.Scores[p.ID]
		fmt.Fprintf(&b, "%s %s: %d %s\n", rankLabel(i), displayName(p.ID, p.Name), pts, pointsWord(pts))
	}
	b.WriteString("\nUse /rank para ver o ranking global.")
	return b.String()
}

func rankLabel(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d.", i+1)
}

// FormatRanking renders the global top list and, when known, the caller's
// own position.
func FormatRanking(top []model.RankEntry, selfPos int, selfTotal int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Ranking Global do Quiz\n%s\n", divider)
	if len(top) == 0 {
		b.WriteString("Ainda não há ninguém no ranking. Seja o primeiro a jogar com /quiz!")
		return b.String()
	}
	for i, e := range top {
		fmt.Fprintf(&b, "%s %s - %d %s\n", rankLabel(i), displayName(e.PlayerID, e.Username), e.Points, pointsWord(e.Points))
	}
	b.WriteString(divider)
	if selfPos > 0 {
		fmt.Fprintf(&b, "\nVocê está em %dº lugar com %d %s.", selfPos, selfTotal, pointsWord(selfTotal))
	} else {
		b.WriteString("\nVocê ainda não pontuou. Jogue /quiz para entrar no ranking!")
	}
	return b.String()
}

// FormatCategories lists the categories and the points per difficulty.
func FormatCategories() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📚 Categorias disponíveis\n%s\n", divider)
	for _, c := range model.Categories() {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	fmt.Fprintf(&b, "\n🎯 Pontuação\n")
	for _, d := range model.Difficulties() {
		fmt.Fprintf(&b, "• %s: %d %s\n", d, d.Points(), pointsWord(d.Points()))
	}
	b.WriteString("\nUse /quiz para jogar sozinho ou /multiquiz no grupo.")
	return b.String()
}

// ErrorMessage maps engine errors to the reply shown to the user.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, question.ErrProviderFailure):
		return "❌ Desculpe, não consegui gerar uma pergunta. Tente novamente!"
	case errors.Is(err, game.ErrSessionNotFound):
		return "❌ Este jogo não existe mais."
	case errors.Is(err, game.ErrNoActiveGame):
		return "❌ Você não tem um jogo ativo. Use /quiz para começar."
	case errors.Is(err, game.ErrNotHost):
		return "⛔ Apenas o anfitrião pode fazer isso."
	case errors.Is(err, game.ErrAlreadyJoined):
		return "✋ Você já está no jogo!"
	case errors.Is(err, game.ErrNotParticipant):
		return "🚫 Você não está participando deste jogo."
	case errors.Is(err, game.ErrAlreadyAnswered):
		return "Você já respondeu nesta rodada!"
	case errors.Is(err, game.ErrInvalidAnswer):
		return "❌ Alternativa inválida."
	case errors.Is(err, game.ErrBusy):
		return "⏳ Aguarde, sua última ação ainda está sendo processada."
	case errors.Is(err, game.ErrInvalidSelection):
		return "❌ Categoria ou dificuldade inválida. Veja /categorias."
	case errors.Is(err, game.ErrInvalidState):
		return "❌ Essa ação não é possível agora."
	}
	return "❌ Ocorreu um erro interno, tente novamente."
}
