package codegen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NanoidEngine independently samples each position from a cryptographically
// strong source, uniform over the configured alphabet.
type NanoidEngine struct {
	alphabet *Alphabet
	length   int
	max      *big.Int
}

// NewNanoidEngine builds a NanoidEngine over the given alphabet and length.
func NewNanoidEngine(alphabet *Alphabet, length int) (*NanoidEngine, error) {
	if alphabet.Size() < 2 {
		return nil, fmt.Errorf("codegen: nanoid alphabet needs at least 2 characters")
	}
	return &NanoidEngine{
		alphabet: alphabet,
		length:   length,
		max:      big.NewInt(int64(alphabet.Size())),
	}, nil
}

// Next returns a candidate code of the configured length. Each character is
// indexed by crypto/rand.Int, which returns a uniform integer in
// [0, alphabet size), so there is no modulo bias regardless of alphabet size.
func (e *NanoidEngine) Next() (string, error) {
	buf := make([]byte, e.length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, e.max)
		if err != nil {
			return "", fmt.Errorf("codegen: nanoid random source failed: %w", err)
		}
		buf[i] = e.alphabet.At(n.Int64())
	}
	return string(buf), nil
}

// Length returns the configured code length.
func (e *NanoidEngine) Length() int { return e.length }
