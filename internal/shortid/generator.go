// Package shortid produces the compact identifiers used as short-link keys.
package shortid

import (
	"crypto/rand"
	"fmt"
)

// Alphabet is the fixed base62 alphabet short ids are drawn from. Lookups
// are case-sensitive, so upper and lower case are distinct ids.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator produces independent random short ids. Generation alone does
// not guarantee uniqueness; callers must validate candidates at insertion
// time.
type Generator interface {
	Generate() (string, error)
}

type randomGenerator struct {
	length int
}

// New returns a crypto/rand backed Generator emitting ids of the given
// length. Length must be positive.
func New(length int) (Generator, error) {
	if length <= 0 {
		return nil, fmt.Errorf("shortid: invalid id length %d", length)
	}
	return &randomGenerator{length: length}, nil
}

func (g *randomGenerator) Generate() (string, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("shortid: read random bytes: %w", err)
	}
	// Modulo bias over 62 symbols is under 1% per character, which is
	// irrelevant for collision behaviour at these lengths.
	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf), nil
}

// Valid reports whether s has the shape of a generated id of the given
// length. Handlers use it to reject malformed ids before querying storage.
func Valid(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
