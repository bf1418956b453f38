package kvfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Writer produces files Reader reads back
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
}

// Create truncates or creates path
func Create(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewWriter(file)
	w.closer = file
	return w, nil
}

func NewWriter(dst io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(dst)}
}

func escapeText(s string, special string) string {
	if !strings.ContainsAny(s, special) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(special, s[i]) >= 0 {
			sb.WriteByte(escape)
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// escapeEdges escapes the outermost whitespace so Reader keeps it
func escapeEdges(s string) string {
	if r, size := utf8.DecodeLastRuneInString(s); unicode.IsSpace(r) {
		s = s[:len(s)-size] + string(escape) + s[len(s)-size:]
	}
	if r, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(r) {
		s = string(escape) + s
	}
	return s
}

// Write writes one "key: value" line. Surrounding whitespace of the key
// is dropped, the value is written so it reads back unchanged.
func (w *Writer) Write(key, value string) error {
	if strings.ContainsAny(key, "\r\n") || strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: %q", ErrNewline, key)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	_, err := fmt.Fprintf(w.w, "%s: %s\n",
		escapeText(key, `\:#`),
		escapeEdges(escapeText(value, `\#`)))
	return err
}

// Comment writes a comment line
func (w *Writer) Comment(text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return ErrNewline
	}
	_, err := fmt.Fprintf(w.w, "# %s\n", text)
	return err
}

// Flush writes buffered lines out
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes and closes the file opened by Create
func (w *Writer) Close() error {
	err := w.w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}
