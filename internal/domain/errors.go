package domain

import (
	"errors"
	"strings"
)

// Kind classifies failures of the answering pipeline.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindIngestion
	KindRetrieval
	KindGeneration
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindIngestion:
		return "ingestion error"
	case KindRetrieval:
		return "retrieval error"
	case KindGeneration:
		return "generation error"
	default:
		return "error"
	}
}

// Error is a failure tagged with its kind, the operation that raised it and,
// for ingestion failures, the offending file.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrIngestion     = &Error{Kind: KindIngestion}
	ErrRetrieval     = &Error{Kind: KindRetrieval}
	ErrGeneration    = &Error{Kind: KindGeneration}
)

// ErrEmptyQuestion is returned when a query carries no text.
var ErrEmptyQuestion = errors.New("question is empty")

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		b.WriteString(")")
	}
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Path != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func ConfigurationError(op string, err error) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

func IngestionError(path string, err error) error {
	return &Error{Kind: KindIngestion, Op: "load", Path: path, Err: err}
}

func RetrievalError(op string, err error) error {
	return &Error{Kind: KindRetrieval, Op: op, Err: err}
}

func GenerationError(op string, err error) error {
	return &Error{Kind: KindGeneration, Op: op, Err: err}
}
