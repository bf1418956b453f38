package datafile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"

	"vtstore/internal/numeral"
)

// Compression is the detected encoding of an input stream
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionXZ   Compression = "xz"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

// InputFile reads a token file.
//
// End of data is sticky: once a read hits it every later read fails too.
// Reads never fail because a record ended early, callers check EOF after
// reading a structured record.
type InputFile struct {
	path        string
	closers     []io.Closer
	r           *bufio.Reader
	alphabet    *numeral.Alphabet
	version     int
	oldFormat   bool
	eof         bool
	closed      bool
	compression Compression
	opts        options
	sugar       *zap.SugaredLogger
}

// OpenInput opens path and reads its header
func OpenInput(path string, opts ...Option) (*InputFile, error) {
	o := newOptions(opts)
	file, err := os.Open(path)
	if err != nil {
		o.logger.Sugar().Errorw("open data file", "path", path, "err", err)
		return nil, err
	}

	f, err := newInput(file, path, o)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	f.closers = append(f.closers, file)
	return f, nil
}

// NewInput reads the header from r. Closing the InputFile does not close r.
func NewInput(r io.Reader, opts ...Option) (*InputFile, error) {
	return newInput(r, "", newOptions(opts))
}

func newInput(src io.Reader, path string, o options) (*InputFile, error) {
	const msg = "open data file"
	f := &InputFile{
		path:  path,
		opts:  o,
		sugar: o.logger.Sugar(),
	}

	if err := f.attach(src); err != nil {
		f.sugar.Errorw(msg, "path", path, "err", err)
		return nil, err
	}

	if err := f.readHeader(); err != nil {
		f.sugar.Errorw(msg, "path", path, "err", err)
		_ = f.Close()
		f.version = 0
		return nil, err
	}

	f.sugar.Debugw(msg, "path", path, "version", f.version, "legacy", f.oldFormat, "compression", f.compression)
	return f, nil
}

// attach detects compression and sets up the buffered reader
func (f *InputFile) attach(src io.Reader) error {
	br := bufio.NewReaderSize(src, bufferSize)
	magic, _ := br.Peek(len(xzMagic))

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		f.closers = append(f.closers, gz)
		f.r = bufio.NewReaderSize(gz, bufferSize)
		f.compression = CompressionGzip
	case bytes.Equal(magic, xzMagic):
		xzr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("xz reader: %w", err)
		}
		f.r = bufio.NewReaderSize(xzr, bufferSize)
		f.compression = CompressionXZ
	default:
		f.r = br
		f.compression = CompressionNone
	}
	return nil
}

func (f *InputFile) readHeader() error {
	tok, err := f.GetToken(f.opts.maxToken)
	if err != nil {
		return ErrUnknownFormat
	}

	switch {
	case strings.HasPrefix(tok, legacyPrefix):
		v, err := strconv.Atoi(tok[len(legacyPrefix):])
		if err != nil {
			return fmt.Errorf("%w: %q", ErrUnknownFormat, tok)
		}
		f.version = v
		f.oldFormat = true
	case strings.HasPrefix(tok, currentMagic):
		// type tag, unused
		if _, err := f.GetToken(f.opts.maxToken); err != nil {
			return ErrUnknownFormat
		}
		tok, err = f.GetToken(f.opts.maxToken)
		if err != nil {
			return ErrUnknownFormat
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return fmt.Errorf("%w: version %q", ErrUnknownFormat, tok)
		}
		f.version = v
		f.oldFormat = false
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, tok)
	}

	f.alphabet = numeral.For(f.oldFormat)
	return nil
}

// Version returns the header version, 0 if unknown
func (f *InputFile) Version() int {
	return f.version
}

// OldFormat returns true for legacy files
func (f *InputFile) OldFormat() bool {
	return f.oldFormat
}

// EOF returns true once a read ran out of data
func (f *InputFile) EOF() bool {
	return f.eof
}

func (f *InputFile) Compression() Compression {
	return f.compression
}

func (f *InputFile) Path() string {
	return f.path
}

// Close releases the stream. Safe to call more than once.
func (f *InputFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.eof = true

	var err error
	for _, c := range f.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	f.closers = nil
	return err
}

// readByte marks the stream exhausted on any read error
func (f *InputFile) readByte() (byte, bool) {
	c, err := f.r.ReadByte()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			f.sugar.Errorw("read data file", "path", f.path, "err", err)
		}
		return 0, false
	}
	return c, true
}

// skipSpace returns the first non-space byte
func (f *InputFile) skipSpace() (byte, bool) {
	for {
		c, ok := f.readByte()
		if !ok {
			f.eof = true
			return 0, false
		}
		if !numeral.IsSpace(c) {
			return c, true
		}
	}
}

// GetToken returns the next whitespace delimited token.
// A token longer than maxLen is consumed whole, returned cut to maxLen
// together with ErrTokenTooLong.
func (f *InputFile) GetToken(maxLen int) (string, error) {
	if f.eof {
		return "", ErrEOF
	}

	c, ok := f.skipSpace()
	if !ok {
		return "", ErrEOF
	}

	var sb strings.Builder
	truncated := false
	for {
		if maxLen > 0 && sb.Len() >= maxLen {
			truncated = true
		} else {
			sb.WriteByte(c)
		}

		if c, ok = f.readByte(); !ok || numeral.IsSpace(c) {
			break
		}
	}

	if truncated {
		return sb.String(), fmt.Errorf("%w: limit %d", ErrTokenTooLong, maxLen)
	}
	return sb.String(), nil
}

// GetValue reads one numeral, 0 once the data ran out
func (f *InputFile) GetValue() uint64 {
	value, _ := f.ReadUint64()
	return value
}

// ReadUint64 reads one numeral in the alphabet the header selected
func (f *InputFile) ReadUint64() (uint64, error) {
	if f.eof {
		return 0, ErrEOF
	}

	c, ok := f.skipSpace()
	if !ok {
		return 0, ErrEOF
	}

	var value uint64
	var err error
	for {
		if f.opts.strict && err == nil && !f.alphabet.Valid(c) {
			err = fmt.Errorf("%w: %q (%s)", ErrBadDigit, c, f.alphabet)
		}
		value = f.alphabet.Accumulate(value, c)

		if c, ok = f.readByte(); !ok || numeral.IsSpace(c) {
			break
		}
	}
	return value, err
}

func (f *InputFile) ReadInt64() (int64, error) {
	v, err := f.ReadUint64()
	return int64(v), err
}

func (f *InputFile) ReadInt() (int, error) {
	v, err := f.ReadUint64()
	return int(int64(v)), err
}

// ReadBool reads a numeral, anything but 0 is true
func (f *InputFile) ReadBool() (bool, error) {
	v, err := f.ReadUint64()
	return v != 0, err
}

func (f *InputFile) ReadFloat() (float64, error) {
	tok, err := f.GetToken(f.opts.maxToken)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadFloat, tok)
	}
	return v, nil
}

// ReadString reverses the write-side escaping. Every underscore becomes a
// space, so underscores, spaces and tildes written by WriteString all read
// back as spaces.
func (f *InputFile) ReadString() (string, error) {
	tok, err := f.GetToken(f.opts.maxToken)
	if tok == emptyString || tok == "" {
		return "", err
	}
	return strings.ReplaceAll(tok, "_", " "), err
}

// ReadTimestamp reads the seconds and year integers
func (f *InputFile) ReadTimestamp() (Timestamp, error) {
	seconds, err := f.ReadUint64()
	if err != nil {
		return Timestamp{}, err
	}
	year, err := f.ReadInt()
	if err != nil {
		return Timestamp{}, err
	}
	return TimestampFromParts(seconds, year), nil
}

func (f *InputFile) ReadTime() (time.Time, error) {
	ts, err := f.ReadTimestamp()
	return ts.Time(), err
}

// Read fills dst, which must be a pointer to a supported type.
// A nil pointer is skipped without reading.
func (f *InputFile) Read(dst any) error {
	var err error
	switch d := dst.(type) {
	case *int:
		if d != nil {
			*d, err = f.ReadInt()
		}
	case *int64:
		if d != nil {
			*d, err = f.ReadInt64()
		}
	case *uint64:
		if d != nil {
			*d, err = f.ReadUint64()
		}
	case *bool:
		if d != nil {
			*d, err = f.ReadBool()
		}
	case *float64:
		if d != nil {
			*d, err = f.ReadFloat()
		}
	case *string:
		if d != nil {
			*d, err = f.ReadString()
		}
	case *Timestamp:
		if d != nil {
			*d, err = f.ReadTimestamp()
		}
	case *time.Time:
		if d != nil {
			*d, err = f.ReadTime()
		}
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupported, dst)
	}
	return err
}

// peekLines returns the buffered text up to and including the n-th newline
// without moving the read position. Lookahead is bounded by the buffer size.
func (f *InputFile) peekLines(n int) []byte {
	if f.closed || f.r == nil {
		return nil
	}
	for size := 256; ; size *= 2 {
		if size > bufferSize {
			size = bufferSize
		}
		buf, err := f.r.Peek(size)

		found := 0
		for i, c := range buf {
			if c == '\n' {
				found++
				if found == n {
					return buf[:i+1]
				}
			}
		}
		if err != nil || size == bufferSize {
			return buf
		}
	}
}

// PeekTokens counts the tokens left on the current line.
// For diagnostics only.
func (f *InputFile) PeekTokens() int {
	return len(bytes.Fields(f.peekLines(1)))
}

// ShowTokens returns the raw text of the next n lines.
// For diagnostics only.
func (f *InputFile) ShowTokens(n int) string {
	if n <= 0 {
		return ""
	}
	return string(f.peekLines(n))
}
