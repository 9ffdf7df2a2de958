package handler

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"quizbot/internal/game/multi"
)

// Sender is the part of *tele.Bot used outside a request context.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
}

// QuestionMessages remembers the message carrying each session's current
// question so its answer buttons can be removed once the round is over.
type QuestionMessages struct {
	mu   sync.Mutex
	msgs map[string]tele.Editable
}

// NewQuestionMessages creates an empty tracker.
func NewQuestionMessages() *QuestionMessages {
	return &QuestionMessages{msgs: make(map[string]tele.Editable)}
}

// Set records msg as the current question message of a session.
func (q *QuestionMessages) Set(sessionID string, msg tele.Editable) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs[sessionID] = msg
}

// Take removes and returns the question message of a session.
func (q *QuestionMessages) Take(sessionID string) (tele.Editable, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	msg, ok := q.msgs[sessionID]
	delete(q.msgs, sessionID)
	return msg, ok
}

// closeQuestion strips the answer buttons from a session's last question.
func closeQuestion(s Sender, msgs *QuestionMessages, sessionID string) {
	msg, ok := msgs.Take(sessionID)
	if !ok {
		return
	}
	if _, err := s.EditReplyMarkup(msg, nil); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to remove answer buttons")
	}
}

// Notifier posts timer-driven multiplayer events to the session's chat.
type Notifier struct {
	sender Sender
	msgs   *QuestionMessages
}

// NewNotifier creates a Notifier.
func NewNotifier(sender Sender, msgs *QuestionMessages) *Notifier {
	return &Notifier{sender: sender, msgs: msgs}
}

// RoundTimedOut posts the results of a round closed by its timer.
func (n *Notifier) RoundTimedOut(res multi.RoundResult) {
	closeQuestion(n.sender, n.msgs, res.SessionID)

	chat := &tele.Chat{ID: res.ChatID}
	if _, err := n.sender.Send(chat, FormatRoundResult(res), BuildResultsPanel(res.SessionID)); err != nil {
		log.Error().Err(err).Str("session_id", res.SessionID).Msg("Failed to post round results")
	}
}

// SessionExpired tells the chat that a session was closed for inactivity.
func (n *Notifier) SessionExpired(snap multi.Snapshot, reason multi.ExpireReason) {
	closeQuestion(n.sender, n.msgs, snap.ID)

	var text string
	switch reason {
	case multi.ReasonLobbyTimeout:
		text = "⌛ O lobby expirou porque o jogo não foi iniciado a tempo."
	default:
		text = "💤 O jogo foi encerrado por inatividade.\n\n" + FormatFinal(snap)
	}

	chat := &tele.Chat{ID: snap.ChatID}
	if _, err := n.sender.Send(chat, text); err != nil {
		log.Error().Err(err).Str("session_id", snap.ID).Msg("Failed to post session expiry")
	}
}
