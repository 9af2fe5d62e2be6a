package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"ragtutor/internal/domain"
)

// Loader reads every supported file in a directory and converts it to text.
type Loader struct {
	parsers map[string]domain.Parser
	log     log.FieldLogger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithParser registers or replaces the parser for an extension such as ".pdf".
func WithParser(ext string, p domain.Parser) Option {
	return func(l *Loader) {
		l.parsers[strings.ToLower(ext)] = p
	}
}

func WithLogger(logger log.FieldLogger) Option {
	return func(l *Loader) {
		l.log = logger
	}
}

// New returns a loader with the PDF, Word and plain text parsers registered.
func New(options ...Option) *Loader {
	docx := NewDocxParser()
	l := &Loader{
		parsers: map[string]domain.Parser{
			".pdf":  NewPDFParser(),
			".docx": docx,
			".doc":  docx,
			".txt":  NewTextParser(),
		},
		log: log.StandardLogger(),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// SupportedExtensions lists the extensions that have a parser.
func (l *Loader) SupportedExtensions() []string {
	exts := make([]string, 0, len(l.parsers))
	for ext := range l.parsers {
		exts = append(exts, ext)
	}
	return exts
}

// Report is the outcome of loading one directory.
type Report struct {
	Documents []domain.Document
	Failed    []string
}

// Load parses the files directly inside dir. Files with unknown extensions are
// skipped. A file that fails to parse is logged and left out; only a missing or
// unreadable directory fails the whole load.
func (l *Loader) Load(dir string) ([]domain.Document, error) {
	report, err := l.LoadReport(dir)
	if err != nil {
		return nil, err
	}
	return report.Documents, nil
}

// LoadReport is Load that also names the files that failed to parse.
func (l *Loader) LoadReport(dir string) (Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Report{}, domain.ConfigurationError("read documents dir", err)
	}

	var report Report
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parser, ok := l.parsers[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		text, err := parse(parser, path)
		if err != nil {
			report.Failed = append(report.Failed, entry.Name())
			l.log.WithFields(log.Fields{
				"file":  entry.Name(),
				"error": domain.IngestionError(path, err).Error(),
			}).Error("error loading document")
			continue
		}
		report.Documents = append(report.Documents, domain.Document{
			ID:      hashString(path),
			Path:    path,
			Content: text,
		})
	}

	l.log.WithFields(log.Fields{
		"dir":    dir,
		"loaded": len(report.Documents),
		"failed": len(report.Failed),
	}).Info("documents loaded")
	return report, nil
}

// parse shields the batch from parsers that panic on malformed input.
func parse(p domain.Parser, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return p.Parse(path)
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
