package datafile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"vtstore/internal/numeral"
)

// OutputFile writes a token file, always with the current header.
//
// A file opened by path is written next to its destination and renamed
// over it by Close, so readers never see a half written file.
type OutputFile struct {
	path       string
	tmpPath    string
	file       *os.File
	gz         *gzip.Writer
	w          *bufio.Writer
	version    int
	compressed bool
	closed     bool
	failures   int
	errs       error
	scratch    []byte
	sugar      *zap.SugaredLogger
}

// OpenOutput creates path and writes the header
func OpenOutput(path string, version int, compressed bool, opts ...Option) (*OutputFile, error) {
	const msg = "create data file"
	o := newOptions(opts)
	sugar := o.logger.Sugar()

	tmpPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.New().String()+".tmp")
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		sugar.Errorw(msg, "path", path, "err", err)
		return nil, err
	}

	f, err := newOutput(file, version, compressed, o)
	if err != nil {
		sugar.Errorw(msg, "path", path, "err", err)
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return nil, err
	}
	f.path = path
	f.tmpPath = tmpPath
	f.file = file
	return f, nil
}

// NewOutput writes the header to w. Closing the OutputFile does not close w.
func NewOutput(w io.Writer, version int, compressed bool, opts ...Option) (*OutputFile, error) {
	return newOutput(w, version, compressed, newOptions(opts))
}

func newOutput(dst io.Writer, version int, compressed bool, o options) (*OutputFile, error) {
	f := &OutputFile{
		version:    version,
		compressed: compressed,
		scratch:    make([]byte, 0, 64),
		sugar:      o.logger.Sugar(),
	}

	if compressed {
		f.gz = gzip.NewWriter(dst)
		dst = f.gz
	}
	f.w = bufio.NewWriterSize(dst, bufferSize)

	if _, err := fmt.Fprintf(f.w, "%s 0 %d\n", currentMagic, version); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *OutputFile) Version() int {
	return f.version
}

func (f *OutputFile) Compressed() bool {
	return f.compressed
}

// Failures returns the number of failed writes so far
func (f *OutputFile) Failures() int {
	return f.failures
}

// Err returns every write failure so far combined
func (f *OutputFile) Err() error {
	return f.errs
}

// fail counts err as a failed write and returns it
func (f *OutputFile) fail(err error) error {
	f.failures++
	f.errs = multierr.Append(f.errs, err)
	return err
}

func (f *OutputFile) write(p []byte) error {
	if f.closed {
		return f.fail(ErrClosed)
	}
	if _, err := f.w.Write(p); err != nil {
		return f.fail(err)
	}
	return nil
}

func separator(dst []byte, last bool) []byte {
	if last {
		return append(dst, '\n')
	}
	return append(dst, ' ')
}

// PutValue writes a numeral followed by a space, or a newline if last
func (f *OutputFile) PutValue(value uint64, last bool) error {
	buf := numeral.Current.Append(f.scratch[:0], value)
	return f.write(separator(buf, last))
}

func (f *OutputFile) WriteUint64(value uint64, last bool) error {
	return f.PutValue(value, last)
}

func (f *OutputFile) WriteInt64(value int64, last bool) error {
	return f.PutValue(uint64(value), last)
}

func (f *OutputFile) WriteInt(value int, last bool) error {
	return f.PutValue(uint64(int64(value)), last)
}

func (f *OutputFile) WriteBool(value bool, last bool) error {
	if value {
		return f.PutValue(1, last)
	}
	return f.PutValue(0, last)
}

// WriteFloat writes the shortest decimal that reads back as value
func (f *OutputFile) WriteFloat(value float64, last bool) error {
	buf := strconv.AppendFloat(f.scratch[:0], value, 'g', -1, 64)
	return f.write(separator(buf, last))
}

// WriteString writes value as one token: spaces and tildes become
// underscores, the empty string becomes "~".
func (f *OutputFile) WriteString(value string, last bool) error {
	if value == "" {
		return f.write(separator(append(f.scratch[:0], emptyString...), last))
	}

	buf := f.scratch[:0]
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == ' ' || c == '~' {
			c = '_'
		}
		buf = append(buf, c)
	}
	f.scratch = buf
	return f.write(separator(buf, last))
}

// WriteTimestamp writes the packed seconds then the year
func (f *OutputFile) WriteTimestamp(ts Timestamp, last bool) error {
	return multierr.Append(
		f.PutValue(ts.Seconds(), false),
		f.WriteInt(ts.Year, last),
	)
}

func (f *OutputFile) WriteTime(t time.Time, last bool) error {
	return f.WriteTimestamp(TimestampOf(t.UTC()), last)
}

// Write dispatches on the dynamic type of value
func (f *OutputFile) Write(value any, last bool) error {
	switch v := value.(type) {
	case int:
		return f.WriteInt(v, last)
	case int64:
		return f.WriteInt64(v, last)
	case uint64:
		return f.WriteUint64(v, last)
	case bool:
		return f.WriteBool(v, last)
	case float64:
		return f.WriteFloat(v, last)
	case string:
		return f.WriteString(v, last)
	case Timestamp:
		return f.WriteTimestamp(v, last)
	case time.Time:
		return f.WriteTime(v, last)
	}
	return f.fail(fmt.Errorf("%w: %T", ErrUnsupported, value))
}

// finish flushes and closes every layer, it does not rename
func (f *OutputFile) finish() error {
	f.closed = true
	err := f.w.Flush()
	if f.gz != nil {
		err = multierr.Append(err, f.gz.Close())
	}
	if f.file != nil {
		err = multierr.Append(err, f.file.Sync())
		err = multierr.Append(err, f.file.Close())
	}
	return err
}

// Close flushes the stream and, for files opened by path, moves the file
// into place. Safe to call more than once.
func (f *OutputFile) Close() error {
	const msg = "close data file"
	if f.closed {
		return nil
	}

	if err := f.finish(); err != nil {
		f.sugar.Errorw(msg, "path", f.path, "err", err)
		if f.tmpPath != "" {
			_ = os.Remove(f.tmpPath)
		}
		return f.fail(err)
	}

	if f.tmpPath != "" {
		if err := os.Rename(f.tmpPath, f.path); err != nil {
			f.sugar.Errorw(msg, "path", f.path, "err", err)
			_ = os.Remove(f.tmpPath)
			return f.fail(err)
		}
	}
	f.sugar.Debugw(msg, "path", f.path, "version", f.version, "compressed", f.compressed, "failures", f.failures)
	return nil
}

// Abort closes the stream and drops a file opened by path; the previous
// file at path, if any, is left untouched.
func (f *OutputFile) Abort() error {
	if f.closed {
		return nil
	}
	err := f.finish()
	if f.tmpPath != "" {
		err = multierr.Append(err, os.Remove(f.tmpPath))
	}
	return err
}
