// Package identity derives a coin's BitSlow identity from its three bit
// components and tracks which component triples are still unassigned.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"sync"
)

const (
	MinBit = 1
	MaxBit = 10

	// SpaceSize is the number of distinct triples with components in
	// [MinBit, MaxBit].
	SpaceSize = (MaxBit - MinBit + 1) * (MaxBit - MinBit + 1) * (MaxBit - MinBit + 1)
)

type Triple struct {
	Bit1 int
	Bit2 int
	Bit3 int
}

func (t Triple) Valid() bool {
	return inRange(t.Bit1) && inRange(t.Bit2) && inRange(t.Bit3)
}

func inRange(bit int) bool {
	return bit >= MinBit && bit <= MaxBit
}

// Encode returns the BitSlow identity of t: the MD5 of the concatenated MD5
// digests of each component. Components must already be valid.
func Encode(t Triple) string {
	return md5Hex(md5Hex(strconv.Itoa(t.Bit1)) +
		md5Hex(strconv.Itoa(t.Bit2)) +
		md5Hex(strconv.Itoa(t.Bit3)))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

var (
	decodeOnce  sync.Once
	decodeTable map[string]Triple
)

// Decode resolves a BitSlow identity back to its triple.
func Decode(bitslow string) (Triple, bool) {
	decodeOnce.Do(func() {
		decodeTable = make(map[string]Triple, SpaceSize)
		for _, t := range All() {
			decodeTable[Encode(t)] = t
		}
	})
	t, ok := decodeTable[bitslow]
	return t, ok
}

// All lists every triple of the combination space in lexicographic order.
func All() []Triple {
	all := make([]Triple, 0, SpaceSize)
	for b1 := MinBit; b1 <= MaxBit; b1++ {
		for b2 := MinBit; b2 <= MaxBit; b2++ {
			for b3 := MinBit; b3 <= MaxBit; b3++ {
				all = append(all, Triple{Bit1: b1, Bit2: b2, Bit3: b3})
			}
		}
	}
	return all
}
