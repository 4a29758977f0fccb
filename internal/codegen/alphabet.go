package codegen

import (
	"fmt"
	"strings"
)

// Alphabet is an ordered, deduplicated byte table resolved from a compact
// spec string such as "0-9A-Za-z".
type Alphabet struct {
	bytes []byte
	index map[byte]int64
}

// ParseAlphabet resolves a compact range spec into an Alphabet. The spec is
// read left to right: each "X-Y" triple (inclusive, X <= Y) adds that range,
// and every other character, commas included, is added literally. Ranges
// are concatenated in the order given; duplicate characters are kept only
// on first occurrence.
func ParseAlphabet(spec string) (*Alphabet, error) {
	if spec == "" {
		return nil, fmt.Errorf("alphabet spec must not be empty")
	}

	var ordered []byte
	seen := make(map[byte]struct{})

	runes := []rune(spec)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && runes[i+1] == '-' && runes[i] <= runes[i+2] {
			lo, hi := runes[i], runes[i+2]
			for c := lo; c <= hi; c++ {
				b := byte(c)
				if _, ok := seen[b]; !ok {
					seen[b] = struct{}{}
					ordered = append(ordered, b)
				}
			}
			i += 2
			continue
		}
		b := byte(runes[i])
		if _, ok := seen[b]; !ok {
			seen[b] = struct{}{}
			ordered = append(ordered, b)
		}
	}

	if len(ordered) < 2 {
		return nil, fmt.Errorf("alphabet spec %q resolves to fewer than 2 characters", spec)
	}

	idx := make(map[byte]int64, len(ordered))
	for i, b := range ordered {
		idx[b] = int64(i)
	}

	return &Alphabet{bytes: ordered, index: idx}, nil
}

// Size returns the number of distinct characters in the alphabet.
func (a *Alphabet) Size() int { return len(a.bytes) }

// At returns the character at a given ordinal.
func (a *Alphabet) At(i int64) byte { return a.bytes[i] }

// ValueOf returns the ordinal of a character, or -1 if it is not in the
// alphabet.
func (a *Alphabet) ValueOf(c byte) int64 {
	if v, ok := a.index[c]; ok {
		return v
	}
	return -1
}

// String renders the resolved character set (for logging/debugging).
func (a *Alphabet) String() string {
	var b strings.Builder
	b.Write(a.bytes)
	return b.String()
}
