package prompt

import (
	"errors"
	"strings"
	"text/template"

	"ragtutor/internal/domain"
)

// DefaultTemplate is the built-in tutoring prompt. It receives .Context,
// .Question and, when history is rendered into the prompt, .History.
const DefaultTemplate = `
As an AI tutor, your role is to provide personalised, engaging, and supportive learning experiences. Keep the following qualities in mind:

1. Personalisation: Tailor your responses based on the student's needs, learning pace, and preferences.
2. Interactive and Engaging: Provide interactive and engaging explanations.
3. Accessibility: Ensure your responses are clear and accessible to students of different backgrounds and abilities.
4. Feedback and Support: Offer constructive feedback and support, explaining concepts clearly.
5. Motivational: Encourage and motivate the student with positive reinforcement.
6. Resourceful: Provide additional resources and references when needed.
7. Flexible Learning Paths: Allow exploration of related topics and provide flexible learning paths.
8. Contextual Understanding: Use context from previous interactions to provide relevant assistance.
9. Assessment and Evaluation: Ask questions to gauge understanding and provide detailed feedback.
10. Safety and Privacy: Ensure the conversation is safe and respects privacy.
{{if .History}}
# Previous conversation:
{{range .History}}Student: {{.Question}}
Tutor: {{.Answer}}
{{end}}{{end}}
Context:
{{.Context}}

# Question:
{{.Question}}
`

// ContextSeparator joins retrieved chunks in rank order.
const ContextSeparator = "\n\n"

type data struct {
	Context  string
	Question string
	History  []domain.Turn
}

// Assembler renders the final prompt text for one query.
type Assembler struct {
	tmpl        *template.Template
	withHistory bool
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithHistory renders prior turns into the prompt text.
func WithHistory(enabled bool) Option {
	return func(a *Assembler) {
		a.withHistory = enabled
	}
}

// New parses text, or DefaultTemplate when text is empty. A template that does
// not reference both {{.Context}} and {{.Question}} is rejected.
func New(text string, options ...Option) (*Assembler, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	for _, field := range []string{".Context", ".Question"} {
		if !strings.Contains(text, field) {
			return nil, domain.ConfigurationError("prompt template", errors.New("template must reference {{"+field+"}}"))
		}
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, domain.ConfigurationError("prompt template", err)
	}
	a := &Assembler{tmpl: tmpl}
	for _, option := range options {
		option(a)
	}
	return a, nil
}

// Assemble fills the template with the joined contexts, the question and,
// if enabled, the history.
func (a *Assembler) Assemble(contexts []string, question string, history []domain.Turn) (string, error) {
	d := data{
		Context:  strings.Join(contexts, ContextSeparator),
		Question: question,
	}
	if a.withHistory {
		d.History = history
	}
	var b strings.Builder
	if err := a.tmpl.Execute(&b, d); err != nil {
		return "", domain.GenerationError("assemble prompt", err)
	}
	return b.String(), nil
}
