// Package datafile reads and writes the versioned token files every record is saved in.
//
// A file is a header followed by whitespace separated tokens:
//
//	vtpos 0 <version>        current header, numerals use numeral.Current
//	version_<version>        legacy header, numerals use numeral.Legacy (read only)
//
// Integers are numerals, floats are decimal text, strings have spaces and
// tildes written as underscores and "~" stands for the empty string.
// Timestamps are two integers. A newline ends a record line.
// Output may be gzip compressed; input compression is detected.
package datafile

import (
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	currentMagic = "vtpos"
	legacyPrefix = "version_"

	emptyString = "~"

	// DefaultMaxToken is the token length limit used by typed reads
	DefaultMaxToken = 1024

	bufferSize = 64 * 1024
)

var (
	ErrUnknownFormat = errors.New("unknown file format")
	ErrEOF           = errors.New("end of data file")
	ErrTokenTooLong  = errors.New("token too long")
	ErrBadFloat      = errors.New("malformed float")
	ErrBadDigit      = errors.New("invalid numeral digit")
	ErrClosed        = errors.New("data file closed")
	ErrUnsupported   = errors.New("unsupported value type")
)

type options struct {
	logger   *zap.Logger
	strict   bool
	maxToken int
}

// Option configures input and output files
type Option func(*options)

// WithLogger sets the logger open failures are reported to
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStrictNumerals makes numeral reads fail with ErrBadDigit on characters
// outside the alphabet instead of reading them as 0. Files written by older
// versions may rely on the lenient behaviour.
func WithStrictNumerals() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithMaxToken sets the token length limit of typed reads
func WithMaxToken(n int) Option {
	return func(o *options) {
		o.maxToken = n
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:   zap.NewNop(),
		maxToken: DefaultMaxToken,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.maxToken <= 0 {
		o.maxToken = DefaultMaxToken
	}
	return o
}

// Result collects field write failures of one record.
// Every field is attempted; the failures surface once at the end.
type Result struct {
	Failed int
	err    error
}

// Add records the outcome of one field write
func (r *Result) Add(err error) {
	if err == nil {
		return
	}
	r.Failed++
	r.err = multierr.Append(r.err, err)
}

// Err returns all failures combined, nil if there were none
func (r *Result) Err() error {
	return r.err
}

// OK returns true if no write failed
func (r *Result) OK() bool {
	return r.Failed == 0
}
