package identity

import (
	"errors"
	"math/rand/v2"
)

var ErrExhausted = errors.New("no combinations left")

// IsExhausted reports whether every triple of the space is already taken.
func IsExhausted(existing []Triple) bool {
	return len(Unused(existing)) == 0
}

// Space draws unassigned triples. Draws pick uniformly among the triples
// that are still free, so a draw never needs to be retried.
type Space struct {
	intN func(n int) int
}

func NewSpace() *Space {
	return &Space{intN: rand.IntN}
}

// NewSeededSpace returns a Space with a deterministic draw sequence. It is not
// safe for concurrent use.
func NewSeededSpace(seed1, seed2 uint64) *Space {
	return &Space{intN: rand.New(rand.NewPCG(seed1, seed2)).IntN}
}

func (s *Space) DrawUnused(existing []Triple) (Triple, error) {
	drawn, err := s.DrawUnusedN(existing, 1)
	if err != nil {
		return Triple{}, err
	}
	return drawn[0], nil
}

// DrawUnusedN draws n distinct triples absent from existing. It fails with
// ErrExhausted when fewer than n triples are free.
func (s *Space) DrawUnusedN(existing []Triple, n int) ([]Triple, error) {
	unused := Unused(existing)
	if n > len(unused) {
		return nil, ErrExhausted
	}
	// partial Fisher-Yates: the first n slots end up holding the draw
	for i := 0; i < n; i++ {
		j := i + s.intN(len(unused)-i)
		unused[i], unused[j] = unused[j], unused[i]
	}
	return unused[:n:n], nil
}

// Unused lists every triple not present in existing.
func Unused(existing []Triple) []Triple {
	taken := toSet(existing)
	unused := make([]Triple, 0, SpaceSize)
	for _, t := range All() {
		if _, ok := taken[t]; !ok {
			unused = append(unused, t)
		}
	}
	return unused
}

func toSet(triples []Triple) map[Triple]struct{} {
	set := make(map[Triple]struct{}, len(triples))
	for _, t := range triples {
		set[t] = struct{}{}
	}
	return set
}
