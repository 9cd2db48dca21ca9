package uuid

import gonanoid "github.com/matoous/go-nanoid"

// Generator UUID generator interface
type Generator interface {
	Generate() (string, error)
}

// NanoIDGenerator UUID implementation using NanoID
type NanoIDGenerator struct {
	Length   int
	Alphabet string // optional, default url-safe alphabet when empty
}

var _ Generator = &NanoIDGenerator{}

// NewNanoIDGenerator create a new `NanoIDGenerator` instance
func NewNanoIDGenerator(length int) *NanoIDGenerator {
	if length < 1 {
		panic("length must be larger than 1")
	}
	return &NanoIDGenerator{Length: length}
}

// NewAlphabetGenerator create a `NanoIDGenerator` drawing from a custom alphabet
func NewAlphabetGenerator(alphabet string, length int) *NanoIDGenerator {
	if length < 1 {
		panic("length must be larger than 1")
	}
	if alphabet == "" {
		panic("alphabet must not be empty")
	}
	return &NanoIDGenerator{Length: length, Alphabet: alphabet}
}

// Generate generate UUID
func (ns *NanoIDGenerator) Generate() (string, error) {
	if ns.Alphabet != "" {
		return gonanoid.Generate(ns.Alphabet, ns.Length)
	}
	return gonanoid.Nanoid(ns.Length)
}
