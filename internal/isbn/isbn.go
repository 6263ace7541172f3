// Package isbn validates and normalizes ISBN-10 and ISBN-13 identifiers.
package isbn

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned when a string is not a well-formed ISBN.
var ErrInvalid = errors.New("invalid ISBN")

// Normalize strips hyphens and whitespace and upper-cases a trailing x.
func Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == 'x' || r == 'X':
			sb.WriteRune('X')
		case r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r':
			// separator
		default:
			// keep it so validation fails
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Validate normalizes s and checks its checksum. The returned value is
// always the ISBN-13 form.
func Validate(s string) (string, error) {
	n := Normalize(s)
	switch len(n) {
	case 10:
		if !valid10(n) {
			return "", fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		return to13(n), nil
	case 13:
		if !valid13(n) {
			return "", fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		return n, nil
	default:
		return "", fmt.Errorf("%w: %q has %d digits", ErrInvalid, s, len(n))
	}
}

// IsValid reports whether s is a valid ISBN-10 or ISBN-13.
func IsValid(s string) bool {
	_, err := Validate(s)
	return err == nil
}

// Equal reports whether a and b identify the same book, comparing the
// ISBN-13 forms. Invalid inputs are never equal.
func Equal(a, b string) bool {
	a13, err := Validate(a)
	if err != nil {
		return false
	}
	b13, err := Validate(b)
	if err != nil {
		return false
	}
	return a13 == b13
}

func valid10(n string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		c := n[i]
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c == 'X' && i == 9:
			d = 10
		default:
			return false
		}
		sum += (10 - i) * d
	}
	return sum%11 == 0
}

func valid13(n string) bool {
	for i := 0; i < 13; i++ {
		if n[i] < '0' || n[i] > '9' {
			return false
		}
	}
	return checkDigit13(n[:12]) == n[12]
}

// checkDigit13 computes the ISBN-13 check digit for the first twelve digits.
func checkDigit13(first12 string) byte {
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(first12[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return byte('0' + (10-sum%10)%10)
}

func to13(isbn10 string) string {
	body := "978" + isbn10[:9]
	return body + string(checkDigit13(body))
}
