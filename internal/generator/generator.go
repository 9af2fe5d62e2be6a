package generator

import (
	"context"
	"errors"
	"strings"

	"ragtutor/internal/domain"
)

// DefaultTemperature keeps tutoring answers close to the retrieved context.
const DefaultTemperature = 0.1

// Generator turns an assembled prompt into a raw model answer.
type Generator struct {
	completer    domain.Completer
	temperature  float64
	historyTurns bool
}

type Option func(*Generator)

func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// WithHistoryMessages sends prior turns as user/assistant message pairs
// ahead of the prompt.
func WithHistoryMessages(enabled bool) Option {
	return func(g *Generator) {
		g.historyTurns = enabled
	}
}

func New(completer domain.Completer, options ...Option) *Generator {
	g := &Generator{completer: completer, temperature: DefaultTemperature}
	for _, option := range options {
		option(g)
	}
	return g
}

// Messages builds the ordered message list for one completion call.
func (g *Generator) Messages(prompt string, history []domain.Turn) []domain.Message {
	var messages []domain.Message
	if g.historyTurns {
		messages = make([]domain.Message, 0, 2*len(history)+1)
		for _, turn := range history {
			messages = append(messages,
				domain.Message{Role: domain.RoleUser, Content: turn.Question},
				domain.Message{Role: domain.RoleAssistant, Content: turn.Answer},
			)
		}
	}
	return append(messages, domain.Message{Role: domain.RoleUser, Content: prompt})
}

// Generate calls the completer once. Failures are generation errors and are
// never retried here.
func (g *Generator) Generate(ctx context.Context, prompt string, history []domain.Turn) (string, error) {
	text, err := g.completer.Complete(ctx, g.Messages(prompt, history), domain.CompleteOptions{Temperature: g.temperature})
	if err != nil {
		return "", domain.GenerationError("complete", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.GenerationError("complete", errors.New("empty response from model"))
	}
	return text, nil
}
