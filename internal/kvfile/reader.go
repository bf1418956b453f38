// Package kvfile reads and writes flat configuration files of the form
//
//	key: value   # comment
//
// Whitespace around keys and values is dropped, '#' starts a comment unless
// escaped with a backslash, and the value runs from the first ':' to the end
// of the line. A backslash makes the next byte literal, escaped whitespace is
// kept. No compression, no versioning.
package kvfile

import (
	"bytes"
	"errors"
	"io"
	"os"
	"unicode"
)

const (
	delimiter = ':'
	comment   = '#'
	escape    = '\\'

	blockSize = 256

	// DefaultMaxLen bounds keys and values, longer ones are cut
	DefaultMaxLen = 1024
)

var (
	ErrNewline  = errors.New("newline in key or value")
	ErrEmptyKey = errors.New("empty key")
)

type state byte

const (
	inKey state = iota
	inValue
	inComment
)

// Reader returns one key/value pair per Read. Input is consumed in fixed
// size blocks; the parse state survives block boundaries, so a line may
// span several reads.
type Reader struct {
	src    io.Reader
	closer io.Closer
	maxLen int

	block [blockSize]byte
	n     int
	idx   int
	done  bool

	state    state
	escaped  bool
	key      []byte
	value    []byte
	keyLit   span
	valueLit span
}

// span marks the escaped bytes of a key or value, trimming stops there
type span struct {
	first, end int
}

var noSpan = span{first: -1}

func (s *span) mark(from, to int) {
	if s.first < 0 {
		s.first = from
	}
	s.end = to
}

// trim drops surrounding whitespace that was not escaped
func trim(b []byte, lit span) string {
	if lit.first < 0 {
		return string(bytes.TrimSpace(b))
	}
	head := bytes.TrimLeftFunc(b[:lit.first], unicode.IsSpace)
	tail := bytes.TrimRightFunc(b[lit.end:], unicode.IsSpace)
	ret := make([]byte, 0, len(head)+lit.end-lit.first+len(tail))
	ret = append(ret, head...)
	ret = append(ret, b[lit.first:lit.end]...)
	return string(append(ret, tail...))
}

// Open opens path for reading
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(file)
	r.closer = file
	return r, nil
}

// NewReader reads pairs from src
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, maxLen: DefaultMaxLen, keyLit: noSpan, valueLit: noSpan}
}

// SetMaxLen changes the key and value length limit
func (r *Reader) SetMaxLen(n int) {
	if n > 0 {
		r.maxLen = n
	}
}

// Close closes the file opened by Open
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Read returns the next pair, io.EOF when there are no more.
// Lines without a key are skipped; a line without ':' gives an empty value.
func (r *Reader) Read() (string, string, error) {
	for {
		if r.idx >= r.n {
			if r.done {
				if key, value, ok := r.flush(); ok {
					return key, value, nil
				}
				return "", "", io.EOF
			}
			if err := r.fill(); err != nil {
				return "", "", err
			}
			continue
		}

		c := r.block[r.idx]
		r.idx++

		if c == '\n' {
			if key, value, ok := r.flush(); ok {
				return key, value, nil
			}
			continue
		}
		if r.state == inComment {
			continue
		}
		if r.escaped {
			r.escaped = false
			r.appendLiteral(c)
			continue
		}

		switch c {
		case escape:
			r.escaped = true
		case comment:
			r.state = inComment
		case delimiter:
			if r.state == inKey {
				r.state = inValue
			} else {
				r.append(c)
			}
		default:
			r.append(c)
		}
	}
}

func (r *Reader) fill() error {
	n, err := r.src.Read(r.block[:])
	r.n, r.idx = n, 0
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return err
		}
		r.done = true
	}
	return nil
}

func (r *Reader) append(c byte) bool {
	target := &r.key
	if r.state == inValue {
		target = &r.value
	}
	if len(*target) >= r.maxLen {
		return false
	}
	*target = append(*target, c)
	return true
}

func (r *Reader) appendLiteral(c byte) {
	if !r.append(c) {
		return
	}
	if r.state == inValue {
		r.valueLit.mark(len(r.value)-1, len(r.value))
	} else {
		r.keyLit.mark(len(r.key)-1, len(r.key))
	}
}

// flush ends the current line
func (r *Reader) flush() (string, string, bool) {
	key := trim(r.key, r.keyLit)
	value := trim(r.value, r.valueLit)

	r.key = r.key[:0]
	r.value = r.value[:0]
	r.keyLit, r.valueLit = noSpan, noSpan
	r.state = inKey
	r.escaped = false

	return key, value, key != ""
}
