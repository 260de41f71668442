// Package keygen generates random short keys.
package keygen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	// Alphabet is the set of characters keys are drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// DefaultLength is the length of keys generated for requests without one.
	DefaultLength = 8
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate returns a string of the given length where every character is
// drawn uniformly from Alphabet using crypto/rand.
// Keys are not guaranteed to be unique.
func Generate(length int) (string, error) {
	if length < 1 {
		return "", errors.New("key length must be positive")
	}
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// IsValid reports whether key is non-empty and made of Alphabet characters
// plus '-' and '_'.
func IsValid(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
