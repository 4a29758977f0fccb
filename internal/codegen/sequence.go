package codegen

import (
	"fmt"
	"sync/atomic"
)

// SequenceEngine base-N encodes a monotonically increasing counter,
// zero-padded to the configured length. The counter is recovered at
// startup from the current maximum issued primary code (decoded) + 1 via
// Recover; absent any prior codes it starts at 1.
type SequenceEngine struct {
	alphabet *Alphabet
	length   int
	counter  atomic.Int64
}

// NewSequenceEngine builds a SequenceEngine. The counter starts at 1 until
// Recover is called with the store's observed maximum.
func NewSequenceEngine(alphabet *Alphabet, length int) (*SequenceEngine, error) {
	e := &SequenceEngine{alphabet: alphabet, length: length}
	e.counter.Store(0)
	return e, nil
}

// Recover sets the counter so the next Next() call strictly exceeds
// maxIssued, the largest decoded value among all currently-stored primary
// codes. Callers pass 0 when no codes exist yet.
func (e *SequenceEngine) Recover(maxIssued int64) {
	e.counter.Store(maxIssued)
}

// Next returns the base-N encoding of the next counter value, zero-padded
// to the configured length. Returns an error if the value overflows the
// configured length for this alphabet.
func (e *SequenceEngine) Next() (string, error) {
	n := e.counter.Add(1)
	encoded := e.encode(n)
	if len(encoded) > e.length {
		return "", fmt.Errorf("codegen: sequence value %d overflows code length %d", n, e.length)
	}
	return e.pad(encoded), nil
}

// Length returns the configured code length.
func (e *SequenceEngine) Length() int { return e.length }

func (e *SequenceEngine) encode(n int64) string {
	if n == 0 {
		return string(e.alphabet.At(0))
	}
	base := int64(e.alphabet.Size())
	buf := make([]byte, 0, e.length)
	for n > 0 {
		rem := n % base
		buf = append(buf, e.alphabet.At(rem))
		n /= base
	}
	// reverse in place
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

func (e *SequenceEngine) pad(s string) string {
	if len(s) >= e.length {
		return s
	}
	padding := make([]byte, e.length-len(s))
	zero := e.alphabet.At(0)
	for i := range padding {
		padding[i] = zero
	}
	return string(padding) + s
}

// Decode converts a base-N string (drawn from this engine's alphabet) back
// to its integer value. Characters outside the alphabet are skipped and
// take no position in the result — callers recovering the counter should only feed it
// strings already known to be well-formed primary codes (I5).
func (e *SequenceEngine) Decode(s string) int64 {
	base := int64(e.alphabet.Size())
	var n int64
	for i := 0; i < len(s); i++ {
		v := e.alphabet.ValueOf(s[i])
		if v < 0 {
			continue
		}
		n = n*base + v
	}
	return n
}
