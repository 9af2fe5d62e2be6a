package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"
)

// TextParser reads UTF-8 text files.
type TextParser struct{}

func NewTextParser() *TextParser { return &TextParser{} }

func (TextParser) Parse(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.New("unsupported encoding: file is not valid UTF-8")
	}
	return string(data), nil
}

// PDFParser extracts the plain text layer of a PDF.
type PDFParser struct{}

func NewPDFParser() *PDFParser { return &PDFParser{} }

func (PDFParser) Parse(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// DocxParser reads the body text of an Office Open XML document.
// Legacy binary .doc files are not zip archives and fail to open.
type DocxParser struct{}

func NewDocxParser() *DocxParser { return &DocxParser{} }

func (DocxParser) Parse(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	text, _, err := docconv.ConvertDocx(f)
	if err != nil {
		return "", fmt.Errorf("extract docx text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
