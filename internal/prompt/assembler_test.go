package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/domain"
)

func TestAssembleDefaultTemplate(t *testing.T) {
	a, err := New("")
	require.NoError(t, err)

	out, err := a.Assemble([]string{"Chunk A", "Chunk B"}, "What is effective stress?", []domain.Turn{{Question: "old", Answer: "ans"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "\nAs an AI tutor"))
	assert.Contains(t, out, "Context:\nChunk A\n\nChunk B\n\n# Question:\nWhat is effective stress?\n")
	assert.NotContains(t, out, "Previous conversation")
}

func TestAssembleWithHistory(t *testing.T) {
	a, err := New("", WithHistory(true))
	require.NoError(t, err)

	out, err := a.Assemble(nil, "And for sand?", []domain.Turn{
		{Question: "Friction angle of clay?", Answer: "About 20 to 30 degrees."},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Student: Friction angle of clay?\nTutor: About 20 to 30 degrees.\n")
	assert.Less(t, strings.Index(out, "Previous conversation"), strings.Index(out, "Context:"))
	assert.Contains(t, out, "Context:\n\n\n# Question:\nAnd for sand?")
}

func TestCustomTemplate(t *testing.T) {
	a, err := New("Q={{.Question}} C={{.Context}}")
	require.NoError(t, err)

	out, err := a.Assemble([]string{"x"}, "y", nil)
	require.NoError(t, err)
	assert.Equal(t, "Q=y C=x", out)
}

func TestTemplateMustReferenceContextAndQuestion(t *testing.T) {
	_, err := New("Answer {{.Question}} freely")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = New("{{.Context}} {{.Question}")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
