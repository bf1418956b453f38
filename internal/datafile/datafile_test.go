package datafile

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"vtstore/internal/numeral"
)

type sample struct {
	ints    []int
	uints   []uint64
	floats  []float64
	strings []string
	stamps  []Timestamp
	flags   []bool
}

func newSample() sample {
	return sample{
		ints:    []int{0, 1, -1, 42, 12345, math.MaxInt32, math.MinInt32, math.MaxInt64, math.MinInt64},
		uints:   []uint64{0, 63, 64, math.MaxUint64},
		floats:  []float64{0, 1.5, -2.25, 0.1, 1e300, -1e-300, math.Inf(1), 3.14159265358979},
		strings: []string{"", "burger", "x", "A1-sauce", "combo#3"},
		stamps: []Timestamp{
			{},
			TimestampOf(time.Date(2024, time.February, 29, 23, 59, 58, 0, time.UTC)),
			TimestampOf(time.Date(1999, time.December, 31, 0, 0, 1, 0, time.UTC)),
		},
		flags: []bool{true, false},
	}
}

func (s sample) write(t *testing.T, out *OutputFile) {
	t.Helper()
	var res Result
	for _, v := range s.ints {
		res.Add(out.WriteInt(v, false))
	}
	for _, v := range s.uints {
		res.Add(out.WriteUint64(v, false))
	}
	for _, v := range s.floats {
		res.Add(out.WriteFloat(v, false))
	}
	for _, v := range s.strings {
		res.Add(out.WriteString(v, false))
	}
	for _, v := range s.stamps {
		res.Add(out.WriteTimestamp(v, false))
	}
	for i, v := range s.flags {
		res.Add(out.WriteBool(v, i == len(s.flags)-1))
	}
	require.NoError(t, res.Err())
	require.True(t, res.OK())
}

func (s sample) read(t *testing.T, in *InputFile) {
	t.Helper()
	for _, v := range s.ints {
		got, err := in.ReadInt()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	for _, v := range s.uints {
		got, err := in.ReadUint64()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	for _, v := range s.floats {
		got, err := in.ReadFloat()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	for _, v := range s.strings {
		got, err := in.ReadString()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	for _, v := range s.stamps {
		got, err := in.ReadTimestamp()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	for _, v := range s.flags {
		got, err := in.ReadBool()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.False(t, in.EOF())
}

func TestRoundTrip_File(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "labor.dat")
		s := newSample()

		out, err := OpenOutput(path, 12, compressed)
		require.NoError(t, err)
		s.write(t, out)
		require.NoError(t, out.Close())
		require.NoError(t, out.Close())

		in, err := OpenInput(path)
		require.NoError(t, err)
		require.Equal(t, 12, in.Version())
		require.False(t, in.OldFormat())
		if compressed {
			require.Equal(t, CompressionGzip, in.Compression())
		} else {
			require.Equal(t, CompressionNone, in.Compression())
		}
		s.read(t, in)

		_, err = in.GetToken(0)
		require.ErrorIs(t, err, ErrEOF)
		require.True(t, in.EOF())
		require.NoError(t, in.Close())
		require.NoError(t, in.Close())

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1, "temp file left behind")
	}
}

func TestRoundTrip_XZ(t *testing.T) {
	var plain bytes.Buffer
	out, err := NewOutput(&plain, 3, false)
	require.NoError(t, err)
	s := newSample()
	s.write(t, out)
	require.NoError(t, out.Close())

	var packed bytes.Buffer
	w, err := xz.NewWriter(&packed)
	require.NoError(t, err)
	_, err = w.Write(plain.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	in, err := NewInput(&packed)
	require.NoError(t, err)
	require.Equal(t, CompressionXZ, in.Compression())
	require.Equal(t, 3, in.Version())
	s.read(t, in)
}

func TestPutValue_Scenario(t *testing.T) {
	var buf bytes.Buffer
	out, err := NewOutput(&buf, 5, false)
	require.NoError(t, err)
	require.NoError(t, out.PutValue(12345, true))
	require.NoError(t, out.Close())
	require.Equal(t, "vtpos 0 5\nDA5\n", buf.String())

	in, err := NewInput(&buf)
	require.NoError(t, err)
	require.False(t, in.OldFormat())
	require.EqualValues(t, 12345, in.GetValue())
}

func TestWriteString_Escaping(t *testing.T) {
	var buf bytes.Buffer
	out, err := NewOutput(&buf, 1, false)
	require.NoError(t, err)
	require.NoError(t, out.WriteString("a~b c", false))
	require.NoError(t, out.WriteString("a~b c", false))
	require.NoError(t, out.WriteString("", true))
	require.NoError(t, out.Close())
	require.Equal(t, "vtpos 0 1\na_b_c a_b_c ~\n", buf.String())

	in, err := NewInput(&buf)
	require.NoError(t, err)

	tok, err := in.GetToken(0)
	require.NoError(t, err)
	require.Equal(t, "a_b_c", tok)

	// underscores always come back as spaces
	str, err := in.ReadString()
	require.NoError(t, err)
	require.Equal(t, "a b c", str)

	str, err = in.ReadString()
	require.NoError(t, err)
	require.Equal(t, "", str)
}

func TestReadString_Sentinel(t *testing.T) {
	in, err := NewInput(strings.NewReader("vtpos 0 1\n~ snake_case\n"))
	require.NoError(t, err)

	str, err := in.ReadString()
	require.NoError(t, err)
	require.Equal(t, "", str)

	str, err = in.ReadString()
	require.NoError(t, err)
	require.Equal(t, "snake case", str)
}

func TestHeader_Legacy(t *testing.T) {
	in, err := NewInput(strings.NewReader("version_7\n105 A\n"))
	require.NoError(t, err)
	require.Equal(t, 7, in.Version())
	require.True(t, in.OldFormat())
	require.EqualValues(t, 92*92+5, in.GetValue())
	require.EqualValues(t, 10, in.GetValue())
}

func TestHeader_AlphabetIsolation(t *testing.T) {
	in, err := NewInput(strings.NewReader("vtpos 0 7\n105 A\n"))
	require.NoError(t, err)
	require.False(t, in.OldFormat())
	require.Equal(t, numeral.Current.Decode("105"), in.GetValue())
	require.EqualValues(t, 0, in.GetValue())
}

func TestHeader_Unknown(t *testing.T) {
	for _, text := range []string{"", "   \n", "hello world", "version_x", "vtpos 0", "vtpos 0 seven"} {
		in, err := NewInput(strings.NewReader(text))
		require.ErrorIs(t, err, ErrUnknownFormat, "%q", text)
		require.Nil(t, in)
	}
}

func TestOpenInput_Missing(t *testing.T) {
	in, err := OpenInput(filepath.Join(t.TempDir(), "nope.dat"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.Nil(t, in)
}

func TestEOF_Sticky(t *testing.T) {
	in, err := NewInput(strings.NewReader("vtpos 0 1\nB"))
	require.NoError(t, err)

	v, err := in.ReadUint64()
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
	require.False(t, in.EOF())

	v, err = in.ReadUint64()
	require.ErrorIs(t, err, ErrEOF)
	require.EqualValues(t, 0, v)
	require.True(t, in.EOF())

	_, err = in.ReadString()
	require.ErrorIs(t, err, ErrEOF)
	_, err = in.ReadFloat()
	require.ErrorIs(t, err, ErrEOF)
	_, err = in.ReadTimestamp()
	require.ErrorIs(t, err, ErrEOF)
	require.EqualValues(t, 0, in.GetValue())
	require.True(t, in.EOF())
}

func TestGetToken_Truncate(t *testing.T) {
	in, err := NewInput(strings.NewReader("vtpos 0 1\nabcdefgh next\n"))
	require.NoError(t, err)

	tok, err := in.GetToken(4)
	require.ErrorIs(t, err, ErrTokenTooLong)
	require.Equal(t, "abcd", tok)

	tok, err = in.GetToken(4)
	require.NoError(t, err)
	require.Equal(t, "next", tok)
}

func TestReadFloat_Malformed(t *testing.T) {
	in, err := NewInput(strings.NewReader("vtpos 0 1\n1.5x 2.5\n"))
	require.NoError(t, err)

	_, err = in.ReadFloat()
	require.ErrorIs(t, err, ErrBadFloat)

	v, err := in.ReadFloat()
	require.NoError(t, err)
	require.Equal(t, 2.5, v)
}

func TestStrictNumerals(t *testing.T) {
	lenient, err := NewInput(strings.NewReader("vtpos 0 1\nB* B\n"))
	require.NoError(t, err)
	v, err := lenient.ReadUint64()
	require.NoError(t, err)
	require.EqualValues(t, 64, v)

	strict, err := NewInput(strings.NewReader("vtpos 0 1\nB* B\n"), WithStrictNumerals())
	require.NoError(t, err)
	v, err = strict.ReadUint64()
	require.ErrorIs(t, err, ErrBadDigit)
	require.EqualValues(t, 64, v)

	v, err = strict.ReadUint64()
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
}

func TestPeekAndShowTokens(t *testing.T) {
	in, err := NewInput(strings.NewReader("vtpos 0 1\nB C D\nE F\nG\n"))
	require.NoError(t, err)

	require.Equal(t, 3, in.PeekTokens())
	require.Equal(t, 3, in.PeekTokens())
	require.Equal(t, "B C D\nE F\n", in.ShowTokens(2))
	require.Equal(t, "B C D\nE F\nG\n", in.ShowTokens(10))
	require.Equal(t, "", in.ShowTokens(0))

	require.EqualValues(t, 1, in.GetValue())
	require.Equal(t, 2, in.PeekTokens())
	require.EqualValues(t, 2, in.GetValue())
	require.EqualValues(t, 3, in.GetValue())
	require.Equal(t, 2, in.PeekTokens())
	require.Equal(t, "E F\n", in.ShowTokens(1))
}

func TestRead_Pointers(t *testing.T) {
	var buf bytes.Buffer
	out, err := NewOutput(&buf, 1, false)
	require.NoError(t, err)
	when := time.Date(2023, time.July, 4, 12, 30, 0, 0, time.UTC)
	for _, v := range []any{7, int64(-8), uint64(9), true, 2.5, "fish tacos", when} {
		require.NoError(t, out.Write(v, false))
	}
	require.ErrorIs(t, out.Write(struct{}{}, true), ErrUnsupported)
	require.Equal(t, 1, out.Failures())
	require.Error(t, out.Err())
	require.NoError(t, out.Close())

	in, err := NewInput(&buf)
	require.NoError(t, err)

	var (
		i   int
		i64 int64
		u   uint64
		b   bool
		f   float64
		s   string
		tm  time.Time
	)
	var skipped *int
	require.NoError(t, in.Read(skipped))
	for _, dst := range []any{&i, &i64, &u, &b, &f, &s, &tm} {
		require.NoError(t, in.Read(dst))
	}
	require.Equal(t, 7, i)
	require.EqualValues(t, -8, i64)
	require.EqualValues(t, 9, u)
	require.True(t, b)
	require.Equal(t, 2.5, f)
	require.Equal(t, "fish tacos", s)
	require.True(t, when.Equal(tm))

	require.ErrorIs(t, in.Read(&struct{}{}), ErrUnsupported)
}

func TestOutput_Abort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drawer.dat")
	require.NoError(t, os.WriteFile(path, []byte("vtpos 0 1\nB\n"), 0644))

	out, err := OpenOutput(path, 2, false)
	require.NoError(t, err)
	require.NoError(t, out.PutValue(99, true))
	require.NoError(t, out.Abort())
	require.ErrorIs(t, out.PutValue(1, true), ErrClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "vtpos 0 1\nB\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestResult(t *testing.T) {
	var res Result
	res.Add(nil)
	require.True(t, res.OK())
	require.NoError(t, res.Err())

	res.Add(ErrClosed)
	res.Add(nil)
	res.Add(ErrUnsupported)
	require.False(t, res.OK())
	require.Equal(t, 2, res.Failed)
	require.ErrorIs(t, res.Err(), ErrClosed)
	require.ErrorIs(t, res.Err(), ErrUnsupported)
}

var errDiskFull = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errDiskFull
}

func TestOutput_WriteFailures(t *testing.T) {
	out, err := NewOutput(failingWriter{}, 1, false)
	require.NoError(t, err)

	// buffered, the writer is not reached yet
	require.NoError(t, out.PutValue(7, false))
	require.NoError(t, out.WriteString("fries", true))
	require.Equal(t, 0, out.Failures())

	require.ErrorIs(t, out.Close(), errDiskFull)
	require.Equal(t, 1, out.Failures())
	require.ErrorIs(t, out.Err(), errDiskFull)

	require.ErrorIs(t, out.PutValue(1, true), ErrClosed)
	require.ErrorIs(t, out.WriteFloat(1.5, true), ErrClosed)
	require.Equal(t, 3, out.Failures())
	require.ErrorIs(t, out.Err(), ErrClosed)
	require.ErrorIs(t, out.Err(), errDiskFull)

	require.NoError(t, out.Close())
}

func TestOutput_WriteFailures_Compressed(t *testing.T) {
	out, err := NewOutput(failingWriter{}, 1, true)
	require.NoError(t, err)

	var res Result
	for i := 0; i < 3; i++ {
		res.Add(out.WriteInt(i, i == 2))
	}
	require.True(t, res.OK())

	require.Error(t, out.Close())
	require.Equal(t, 1, out.Failures())
	require.ErrorIs(t, out.Err(), errDiskFull)
}
