// Package codegen implements the Code Generator (CG): it produces
// candidate short codes from a configured alphabet and length, with no
// obligation of global uniqueness — that responsibility belongs to the
// Allocator. Two engines are supported, selected by the flat
// shortener.engine_kind setting (there is no nested shortener.engine block):
// "nanoid" (cryptographically random, the default) and "sequence"
// (monotonic counter, base-N encoded).
package codegen

import "fmt"

// Engine produces short-code candidates of a fixed, deterministic length
// drawn from a configured alphabet.
type Engine interface {
	// Next returns a new candidate code. It carries no uniqueness guarantee.
	Next() (string, error)
	// Length returns the configured code length.
	Length() int
}

// Kind selects which Engine implementation to build.
type Kind string

const (
	KindNanoid   Kind = "nanoid"
	KindSequence Kind = "sequence"
)

// Config collects the parameters shared by both engines.
type Config struct {
	Length   int
	Alphabet string
	Kind     Kind
}

// New builds the configured Engine. For KindSequence, call Recover on the
// returned *SequenceEngine afterward with the store's maximum decodable
// primary code before serving traffic (spec §4.2, §9 open question
// resolution: scan primary codes only).
func New(cfg Config) (Engine, error) {
	if cfg.Length <= 0 {
		return nil, fmt.Errorf("codegen: length must be positive")
	}
	alphabet, err := ParseAlphabet(cfg.Alphabet)
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}

	switch cfg.Kind {
	case KindNanoid, "":
		return NewNanoidEngine(alphabet, cfg.Length)
	case KindSequence:
		return NewSequenceEngine(alphabet, cfg.Length)
	default:
		return nil, fmt.Errorf("codegen: unknown engine kind %q", cfg.Kind)
	}
}
