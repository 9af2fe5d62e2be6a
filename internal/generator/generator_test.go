package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/domain"
)

type fakeCompleter struct {
	reply    string
	err      error
	messages []domain.Message
	options  domain.CompleteOptions
}

func (f *fakeCompleter) Complete(_ context.Context, messages []domain.Message, options domain.CompleteOptions) (string, error) {
	f.messages = messages
	f.options = options
	return f.reply, f.err
}

var history = []domain.Turn{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}}

func TestGenerateWithHistoryMessages(t *testing.T) {
	c := &fakeCompleter{reply: "answer"}
	g := New(c, WithHistoryMessages(true), WithTemperature(0.3))

	out, err := g.Generate(context.Background(), "PROMPT", history)
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, 0.3, c.options.Temperature)
	assert.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: "a1"},
		{Role: domain.RoleUser, Content: "q2"},
		{Role: domain.RoleAssistant, Content: "a2"},
		{Role: domain.RoleUser, Content: "PROMPT"},
	}, c.messages)
}

func TestGenerateWithoutHistoryMessages(t *testing.T) {
	c := &fakeCompleter{reply: "answer"}
	g := New(c)

	_, err := g.Generate(context.Background(), "PROMPT", history)
	require.NoError(t, err)
	assert.Equal(t, DefaultTemperature, c.options.Temperature)
	assert.Equal(t, []domain.Message{{Role: domain.RoleUser, Content: "PROMPT"}}, c.messages)
}

func TestGenerateErrors(t *testing.T) {
	_, err := New(&fakeCompleter{err: errors.New("401 unauthorized")}).Generate(context.Background(), "p", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGeneration))

	_, err = New(&fakeCompleter{reply: "  \n"}).Generate(context.Background(), "p", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGeneration))
}
