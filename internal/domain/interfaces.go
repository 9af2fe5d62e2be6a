package domain

import "context"

// Document represents a single source file converted to plain text.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a contiguous slice of a document used for indexing.
// Start and End are rune offsets into the document content, End exclusive.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Source     string
	Index      int
	Start      int
	End        int
	Text       string
}

// IndexEntry is a chunk together with its embedding and position in the index.
type IndexEntry struct {
	Position  int
	Chunk     Chunk
	Embedding []float32
}

// SearchResult is a matching chunk with its distance to the query. Lower is closer.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

// Turn is one question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// Answer is what the query entry point hands back to a shell.
type Answer struct {
	Text    string
	Context []string
}

// Embedder converts free text into numeric vectors.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Parser extracts plain text from a file on disk.
type Parser interface {
	Parse(path string) (string, error)
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message sent to a completer.
type Message struct {
	Role    Role
	Content string
}

// CompleteOptions tunes a single completion call.
type CompleteOptions struct {
	Temperature float64
}

// Completer produces a model answer for an ordered message list.
type Completer interface {
	Complete(ctx context.Context, messages []Message, options CompleteOptions) (string, error)
}
