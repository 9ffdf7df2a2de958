package question

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"quizbot/internal/model"
)

var (
	jsonFence = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n?```")
	anyFence  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")
)

// wireQuestion is the JSON object the generator is asked to produce.
// Pointer fields distinguish a missing field from a zero value.
type wireQuestion struct {
	Text        *string   `json:"pergunta"`
	Options     []*string `json:"alternativas"`
	Correct     *int      `json:"correta"`
	Explanation *string   `json:"explicacao"`
	Category    string    `json:"categoria"`
	Difficulty  string    `json:"dificuldade"`
	Points      *int64    `json:"pontos"`
}

// ExtractJSON pulls the JSON object out of free-form generator text. It looks
// for a ```json fenced block, then any fenced block, then the outermost
// {...} span.
func ExtractJSON(text string) (string, error) {
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if m := anyFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", errors.New("no JSON object in response")
	}
	return text[start : end+1], nil
}

// Parse validates generator output and builds a Question. Category and
// difficulty come from the request and points are derived from the
// difficulty; whatever the generator echoed for them is ignored.
// Every error wraps ErrProviderFailure.
func Parse(text string, category model.Category, difficulty model.Difficulty) (*model.Question, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	var w wireQuestion
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrProviderFailure, err)
	}

	q, err := w.validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	q.Category = category
	q.Difficulty = difficulty
	q.Points = difficulty.Points()
	return q, nil
}

func (w *wireQuestion) validate() (*model.Question, error) {
	if w.Text == nil || strings.TrimSpace(*w.Text) == "" {
		return nil, errors.New("missing question text")
	}
	if len(w.Options) != model.OptionCount {
		return nil, fmt.Errorf("got %d options, want %d", len(w.Options), model.OptionCount)
	}
	if w.Correct == nil {
		return nil, errors.New("missing correct index")
	}
	if *w.Correct < 0 || *w.Correct >= model.OptionCount {
		return nil, fmt.Errorf("correct index %d out of range", *w.Correct)
	}
	if w.Explanation == nil {
		return nil, errors.New("missing explanation")
	}

	q := &model.Question{
		Text:         strings.TrimSpace(*w.Text),
		CorrectIndex: *w.Correct,
		Explanation:  strings.TrimSpace(*w.Explanation),
	}
	for i, opt := range w.Options {
		if opt == nil || strings.TrimSpace(*opt) == "" {
			return nil, fmt.Errorf("option %d is empty", i)
		}
		q.Options[i] = strings.TrimSpace(*opt)
	}
	return q, nil
}
