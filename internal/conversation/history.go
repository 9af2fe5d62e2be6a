package conversation

import (
	"sync"

	"ragtutor/internal/domain"
)

// DefaultMaxTurns is how many exchanges a conversation remembers by default.
const DefaultMaxTurns = 5

// History is the bounded turn memory of one conversation.
// Appending beyond the bound evicts the oldest turns.
type History struct {
	mu    sync.Mutex
	max   int
	turns []domain.Turn
}

func New(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &History{max: maxTurns}
}

func (h *History) Append(question, answer string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, domain.Turn{Question: question, Answer: answer})
	if over := len(h.turns) - h.max; over > 0 {
		h.turns = append(h.turns[:0:0], h.turns[over:]...)
	}
}

// Recent returns a copy of the retained turns, oldest first.
func (h *History) Recent() []domain.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Max() int { return h.max }

func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
