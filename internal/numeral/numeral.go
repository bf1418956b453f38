// Package numeral encodes unsigned integers as short printable digit strings.
//
// Two alphabets exist and are never mixed within one file: Legacy (base 92)
// is only ever read, Current (base 64, 6 bits per digit) is read and written.
// A character outside the alphabet decodes as digit 0.
package numeral

const (
	LegacyBase  = 92
	CurrentBase = 64

	// MaxDigits is enough for any uint64 in either alphabet
	MaxDigits = 11
)

const (
	legacyDigits  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz!#$%&'()*+,-./:;<=>?@[]^_`{|}~"
	currentDigits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
)

// Alphabet is a digit set with its decode table
type Alphabet struct {
	name   string
	digits string
	shift  bool
	decode [256]byte
	valid  [256]bool
}

// Tables are built once at program start, before any file is opened.
var (
	Legacy  = newAlphabet("legacy", legacyDigits, false)
	Current = newAlphabet("current", currentDigits, true)
)

func newAlphabet(name, digits string, shift bool) *Alphabet {
	a := &Alphabet{name: name, digits: digits, shift: shift}
	for i := 0; i < len(digits); i++ {
		a.decode[digits[i]] = byte(i)
		a.valid[digits[i]] = true
	}
	return a
}

// For returns the alphabet a file header selects
func For(oldFormat bool) *Alphabet {
	if oldFormat {
		return Legacy
	}
	return Current
}

func (a *Alphabet) String() string {
	return a.name
}

// Base returns the number of digits in the alphabet
func (a *Alphabet) Base() int {
	return len(a.digits)
}

// Valid reports whether c is a digit of the alphabet
func (a *Alphabet) Valid(c byte) bool {
	return a.valid[c]
}

// Digit returns the value of c, 0 for characters outside the alphabet
func (a *Alphabet) Digit(c byte) uint64 {
	return uint64(a.decode[c])
}

// Accumulate folds one more digit character into value
func (a *Alphabet) Accumulate(value uint64, c byte) uint64 {
	if a.shift {
		return (value << 6) | a.Digit(c)
	}
	return value*LegacyBase + a.Digit(c)
}

// Decode converts a whole numeral; whitespace terminates it
func (a *Alphabet) Decode(s string) uint64 {
	var value uint64
	for i := 0; i < len(s); i++ {
		if IsSpace(s[i]) {
			break
		}
		value = a.Accumulate(value, s[i])
	}
	return value
}

// Append appends the numeral for value to dst
func (a *Alphabet) Append(dst []byte, value uint64) []byte {
	var buf [MaxDigits]byte
	i := len(buf)
	for {
		i--
		if a.shift {
			buf[i] = a.digits[value&63]
			value >>= 6
		} else {
			buf[i] = a.digits[value%LegacyBase]
			value /= LegacyBase
		}
		if value == 0 {
			break
		}
	}
	return append(dst, buf[i:]...)
}

// Encode returns the numeral for value
func (a *Alphabet) Encode(value uint64) string {
	return string(a.Append(nil, value))
}

// IsSpace matches the C locale whitespace set
func IsSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
