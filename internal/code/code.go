// Package code produces the short URL-safe identifiers that address
// embed documents. There is no issuance log: uniqueness is enforced by
// the store's primary key, and the alphabet/length defaults keep the
// code space large enough that collisions stay a retry-loop detail.
package code

import (
	"crypto/rand"
	"errors"
	"io"
)

type Generator struct {
	alphabet string
	length   int
	rand     io.Reader
}

// NewGenerator returns a Generator drawing length characters from
// alphabet using crypto/rand.
func NewGenerator(alphabet string, length int) (*Generator, error) {
	if length < 1 {
		return nil, errors.New("code length must be positive")
	}
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return nil, errors.New("code alphabet must have between 2 and 256 characters")
	}
	return &Generator{alphabet: alphabet, length: length, rand: rand.Reader}, nil
}

// Generate returns a fresh random code. Output is uniform over the code
// space; bytes that would bias the draw are discarded.
func (g *Generator) Generate() (string, error) {
	// Largest multiple of len(alphabet) that fits in a byte.
	max := byte(256 - 256%len(g.alphabet))

	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length)
	for len(out) < g.length {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if max != 0 && b >= max {
				continue
			}
			out = append(out, g.alphabet[int(b)%len(g.alphabet)])
			if len(out) == g.length {
				break
			}
		}
	}
	return string(out), nil
}

// Length reports the configured code length.
func (g *Generator) Length() int {
	return g.length
}
