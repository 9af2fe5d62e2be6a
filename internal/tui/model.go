package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragtutor/internal/conversation"
	"ragtutor/internal/domain"
)

// Querier is the TUI-facing subset of the RAG service.
type Querier interface {
	Query(ctx context.Context, history *conversation.History, question string) (*domain.Answer, error)
}

type exchange struct {
	question string
	answer   string
	err      error
}

type answerMsg struct {
	question string
	answer   *domain.Answer
	err      error
}

// Model is the Bubble Tea chat model. One query runs at a time; keys other
// than quit are ignored until it returns.
type Model struct {
	ctx         context.Context
	service     Querier
	history     *conversation.History
	input       textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	transcript  []exchange
	lastContext []string
	showSources bool
	header      string
	status      string
	busy        bool
	ready       bool
}

// New creates a chat model. header is shown above the conversation.
func New(ctx context.Context, service Querier, history *conversation.History, header string) Model {
	ti := textinput.New()
	ti.Prompt = "Prompt: "
	ti.Placeholder = `Ask a question, or type "exit" to leave`
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		ctx:      ctx,
		service:  service,
		history:  history,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		header:   header,
		status:   `Type your query below. To exit, type "exit", "quit", "q", or "f". Tab toggles sources.`,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		headerLines := lipgloss.Height(m.renderHeader())
		reserved := headerLines + 1 + qh + 1 + 1
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.transcript = append(m.transcript, exchange{question: msg.question, err: msg.err})
			m.status = "Query failed."
		} else {
			m.transcript = append(m.transcript, exchange{question: msg.question, answer: msg.answer.Text})
			m.lastContext = msg.answer.Context
			m.status = fmt.Sprintf("Answered using %d passages. %d turns remembered.", len(msg.answer.Context), m.history.Len())
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			if IsExit(q) {
				return m, tea.Quit
			}
			m.input.Reset()
			m.busy = true
			m.status = "Thinking..."
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "tab":
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.service.Query(m.ctx, m.history, question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return m.renderHeader() + "\n" +
		chatBoxStyle.Render(m.viewport.View()) + "\n" +
		queryBoxStyle.Render(m.input.View()) + "\n" +
		status
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("Geotechnical Engineering Tutor")
	if m.header == "" {
		return title
	}
	return title + "\n" + dimStyle.Render(m.header)
}

func (m *Model) refresh() {
	if m.showSources {
		m.viewport.SetContent(m.renderSources())
		m.viewport.GotoTop()
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return dimStyle.Render("Welcome! How may I help you?")
	}
	var b strings.Builder
	for i, ex := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(youStyle.Render("You: ") + ex.question + "\n")
		if ex.err != nil {
			b.WriteString(errorStyle.Render(ErrorText(ex.err)))
			continue
		}
		b.WriteString(tutorStyle.Render("Answer: ") + ex.answer)
	}
	return b.String()
}

func (m Model) renderSources() string {
	if len(m.lastContext) == 0 {
		return dimStyle.Render("No sources for the last answer.")
	}
	var question string
	if n := len(m.transcript); n > 0 {
		question = m.transcript[n-1].question
	}
	parts := make([]string, len(m.lastContext))
	for i, text := range m.lastContext {
		parts[i] = titleStyle.Render(fmt.Sprintf("Passage %d/%d", i+1, len(m.lastContext))) + "\n" +
			highlightBestSentence(text, question)
	}
	return strings.Join(parts, "\n\n")
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	youStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	tutorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	wordPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentencePat    = regexp.MustCompile(`[^.!?]+[.!?]`)
)

// highlightBestSentence emphasises the sentence sharing most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentencePat.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	words := wordSet(query)
	best, bestScore := -1, 0
	for i, s := range sentences {
		if score := overlap(words, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == best {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

func wordSet(s string) map[string]struct{} {
	words := wordPattern.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func overlap(words map[string]struct{}, sentence string) int {
	score := 0
	for w := range wordSet(sentence) {
		if _, ok := words[w]; ok {
			score++
		}
	}
	return score
}
