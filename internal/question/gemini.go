package question

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"quizbot/internal/model"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.0-flash"
	// DefaultTimeout bounds one generation call.
	DefaultTimeout = 30 * time.Second
)

// generateFunc sends a prompt to the model and returns its raw text.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// GeminiProvider generates questions with the Gemini API.
type GeminiProvider struct {
	generate generateFunc
	timeout  time.Duration
}

// NewGeminiProvider creates a provider backed by the Gemini API.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), cfg)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return newGeminiProvider(generate, timeout), nil
}

func newGeminiProvider(generate generateFunc, timeout time.Duration) *GeminiProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GeminiProvider{generate: generate, timeout: timeout}
}

// Fetch asks the model for one question and validates the answer.
func (p *GeminiProvider) Fetch(ctx context.Context, category model.Category, difficulty model.Difficulty) (q *model.Question, err error) {
	if !category.Valid() || !difficulty.Valid() {
		return nil, fmt.Errorf("%w: unsupported category %q or difficulty %q", ErrProviderFailure, category, difficulty)
	}

	// A misbehaving SDK must not take the game engine down with it.
	defer func() {
		if r := recover(); r != nil {
			q, err = nil, fmt.Errorf("%w: panic during generation: %v", ErrProviderFailure, r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	text, err := p.generate(ctx, buildPrompt(category, difficulty))
	if err != nil {
		log.Warn().Err(err).Str("category", string(category)).Str("difficulty", string(difficulty)).Msg("Question generation failed")
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	q, err = Parse(text, category, difficulty)
	if err != nil {
		log.Warn().Err(err).Str("category", string(category)).Msg("Rejected generated question")
		return nil, err
	}

	log.Debug().
		Str("category", string(category)).
		Str("difficulty", string(difficulty)).
		Dur("took", time.Since(start)).
		Msg("Question generated")
	return q, nil
}

func difficultyHint(d model.Difficulty) string {
	switch d {
	case model.DifficultyEasy:
		return "A pergunta deve ser básica e de conhecimento comum."
	case model.DifficultyMedium:
		return "A pergunta deve ter um nível intermediário de dificuldade."
	default:
		return "A pergunta deve ser desafiadora e específica."
	}
}

func buildPrompt(category model.Category, difficulty model.Difficulty) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gere uma pergunta de %s com dificuldade %s com 4 alternativas. ", category, difficulty)
	b.WriteString("Seja direta e clara, prefira perguntas curtas.\n\n")
	fmt.Fprintf(&b, "A dificuldade %s significa que: %s\n\n", difficulty, difficultyHint(difficulty))
	b.WriteString("Responda apenas com um objeto JSON com os campos:\n")
	b.WriteString("- pergunta: a pergunta completa\n")
	b.WriteString("- alternativas: um array com exatamente 4 alternativas\n")
	b.WriteString("- correta: o índice (0-3) da alternativa correta\n")
	b.WriteString("- explicacao: uma breve explicação da resposta correta\n")
	fmt.Fprintf(&b, "- categoria: %q\n", string(category))
	fmt.Fprintf(&b, "- dificuldade: %q\n", string(difficulty))
	fmt.Fprintf(&b, "- pontos: %d\n\n", difficulty.Points())
	b.WriteString(`Exemplo:
{
  "pergunta": "Qual é o maior planeta do Sistema Solar?",
  "alternativas": ["Terra", "Vênus", "Júpiter", "Marte"],
  "correta": 2,
  "explicacao": "Júpiter é o maior planeta do Sistema Solar.",
  "categoria": "Ciências",
  "dificuldade": "Fácil",
  "pontos": 1
}`)
	return b.String()
}
