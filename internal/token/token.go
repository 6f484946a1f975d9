// Package token generates the opaque identifiers used for public link and
// federated share lookup.
package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabets for generated tokens. The human readable set drops characters
// that are easily confused when a link is read aloud or retyped.
const (
	AlphabetHumanReadable = "abcdefgijkmnopqrstwxyzABCDEFGHJKLMNPQRSTWXYZ23456789"
	AlphabetAlphanumeric  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Generator produces fixed-length random strings from a configured
// alphabet.
type Generator interface {
	Generate(length int) (string, error)
}

type generator struct {
	alphabet string
}

func NewGenerator(alphabet string) Generator {
	if alphabet == "" {
		alphabet = AlphabetAlphanumeric
	}
	return &generator{alphabet: alphabet}
}

func (g *generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", length)
	}
	max := big.NewInt(int64(len(g.alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("token generation: %w", err)
		}
		out[i] = g.alphabet[n.Int64()]
	}
	return string(out), nil
}
