// Package codec implements the forgiving base64 used by the atob and btoa globals.
//
// Encoding always pads. Decoding follows the WHATWG forgiving-base64 algorithm:
// ASCII whitespace is ignored, trailing padding is optional, and anything else
// outside the alphabet is an error.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Alphabet selects the 64-character set used by Encode and Decode.
type Alphabet int

const (
	// Standard is the RFC 4648 section 4 alphabet ('+' and '/').
	Standard Alphabet = iota
	// URL is the RFC 4648 section 5 alphabet ('-' and '_').
	URL
)

// ErrInvalidCharacter is returned when the input cannot be decoded.
// Scripts observe it as an InvalidCharacterError.
var ErrInvalidCharacter = errors.New("invalid character")

func (a Alphabet) padded() *base64.Encoding {
	if a == URL {
		return base64.URLEncoding
	}
	return base64.StdEncoding
}

func (a Alphabet) raw() *base64.Encoding {
	if a == URL {
		return base64.RawURLEncoding
	}
	return base64.RawStdEncoding
}

// Encode returns the padded base64 encoding of data.
func Encode(data []byte, alphabet Alphabet) string {
	return alphabet.padded().EncodeToString(data)
}

// Decode decodes s using the forgiving-base64 rules.
func Decode(s string, alphabet Alphabet) ([]byte, error) {
	s = stripWhitespace(s)

	if len(s)%4 == 0 {
		if strings.HasSuffix(s, "==") {
			s = s[:len(s)-2]
		} else if strings.HasSuffix(s, "=") {
			s = s[:len(s)-1]
		}
	}
	if len(s)%4 == 1 {
		return nil, fmt.Errorf("%w: input length is not valid base64", ErrInvalidCharacter)
	}

	// The raw encoding rejects '=' and any byte outside the alphabet.
	// Strict mode is off, so non-zero trailing bits are discarded.
	out, err := alphabet.raw().DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCharacter, err)
	}
	return out, nil
}

// ByteString converts a string of code points into bytes, one byte per code point.
// Code points above U+00FF cannot be represented and yield ErrInvalidCharacter.
func ByteString(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i, r := range s {
		if r > 0xFF {
			return nil, fmt.Errorf("%w: code point U+%04X at offset %d is outside Latin-1", ErrInvalidCharacter, r, i)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

// Latin1 converts bytes back into a string of code points U+0000..U+00FF.
func Latin1(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

func stripWhitespace(s string) string {
	if !strings.ContainsAny(s, "\t\n\f\r ") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\t', '\n', '\f', '\r', ' ':
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
