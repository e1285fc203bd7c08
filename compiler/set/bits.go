// Package set implements dense sets of small non-negative integer keys.
package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	Key interface {
		~int | ~int64
	}

	// Bits is a set of keys. The zero value is an empty set.
	Bits[K Key] struct {
		b  []uint64
		b0 [2]uint64
	}
)

func MakeBits[K Key](size int) Bits[K] {
	var s Bits[K]

	s.b = s.b0[:]
	s.grow((size + 63) / 64)

	return s
}

// Add inserts k and reports whether it was absent. Negative keys are never added.
func (s *Bits[K]) Add(k K) bool {
	if k < 0 {
		return false
	}

	i, j := ij(k)

	s.grow(i + 1)

	if s.b[i]&(1<<j) != 0 {
		return false
	}

	s.b[i] |= 1 << j

	return true
}

func (s *Bits[K]) Remove(k K) {
	if k < 0 {
		return
	}

	i, j := ij(k)

	if i >= len(s.b) {
		return
	}

	s.b[i] &^= 1 << j
}

func (s *Bits[K]) Has(k K) bool {
	if k < 0 {
		return false
	}

	i, j := ij(k)

	if i >= len(s.b) {
		return false
	}

	return s.b[i]&(1<<j) != 0
}

// Size is the number of keys in the set.
func (s *Bits[K]) Size() (n int) {
	for _, x := range s.b {
		n += bits.OnesCount64(x)
	}

	return n
}

// Range calls f for each key in ascending order until it returns false.
func (s *Bits[K]) Range(f func(k K) bool) {
	for i, x := range s.b {
		for x != 0 {
			j := bits.TrailingZeros64(x)
			x &^= 1 << j

			if !f(K(i*64 + j)) {
				return
			}
		}
	}
}

func (s Bits[K]) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(k K) bool {
		b = e.AppendInt(b, int(k))

		return true
	})

	return e.AppendBreak(b)
}

func ij[K Key](k K) (i, j int) {
	return int(k) / 64, int(k) % 64
}

func (s *Bits[K]) grow(n int) {
	for len(s.b) < n {
		s.b = append(s.b, 0)
	}
}
