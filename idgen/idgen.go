// Package idgen provides the deterministic sequence numbers used to order
// events that fire at the same virtual time.
package idgen

import "sync/atomic"

// ID is a sequence number. The first ID a fresh generator emits is 1, so the
// zero value never identifies anything.
type ID = uint64

// Generator produces strictly increasing IDs.
type Generator interface {
	Generate() ID

	// Last returns the most recently generated ID, or 0 if none.
	Last() ID

	// Reset makes the next Generate return 1 again.
	Reset()
}

// New returns a sequential generator whose first emitted ID is 1.
func New() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next atomic.Uint64
}

func (g *sequentialGenerator) Generate() ID {
	return g.next.Add(1)
}

func (g *sequentialGenerator) Last() ID {
	return g.next.Load()
}

func (g *sequentialGenerator) Reset() {
	g.next.Store(0)
}
