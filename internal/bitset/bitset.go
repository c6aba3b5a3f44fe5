// Package bitset provides a single-word bitset indexed by a typed integer.
//
// The index type parameter keeps group masks, vertex-buffer slot masks and
// aspect sets from being mixed up at compile time.
package bitset

import (
	"iter"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Size is the number of indices a Set can hold.
const Size = 64

// Set is a set of indices of type T packed into one uint64 word.
// Indices at or beyond Size are ignored by Add and never reported by Has.
type Set[T constraints.Integer] struct {
	word uint64
}

// Of returns a set containing the given indices.
func Of[T constraints.Integer](indices ...T) Set[T] {
	var s Set[T]
	for _, i := range indices {
		s.Add(i)
	}
	return s
}

// FromWord returns a set whose bits are w.
func FromWord[T constraints.Integer](w uint64) Set[T] { return Set[T]{word: w} }

// FirstN returns a set holding indices [0, n).
func FirstN[T constraints.Integer](n T) Set[T] {
	if n <= 0 {
		return Set[T]{}
	}
	if uint64(n) >= Size {
		return Set[T]{word: ^uint64(0)}
	}
	return Set[T]{word: (uint64(1) << uint64(n)) - 1}
}

// Word returns the raw bits.
func (s Set[T]) Word() uint64 { return s.word }

// Add inserts i.
func (s *Set[T]) Add(i T) {
	if i < 0 || uint64(i) >= Size {
		return
	}
	s.word |= 1 << uint64(i)
}

// Remove deletes i.
func (s *Set[T]) Remove(i T) {
	if i < 0 || uint64(i) >= Size {
		return
	}
	s.word &^= 1 << uint64(i)
}

// Has reports whether i is in the set.
func (s Set[T]) Has(i T) bool {
	if i < 0 || uint64(i) >= Size {
		return false
	}
	return s.word&(1<<uint64(i)) != 0
}

// Empty reports whether the set has no members.
func (s Set[T]) Empty() bool { return s.word == 0 }

// Len returns the number of members.
func (s Set[T]) Len() int { return bits.OnesCount64(s.word) }

// Union returns s ∪ o.
func (s Set[T]) Union(o Set[T]) Set[T] { return Set[T]{word: s.word | o.word} }

// Intersect returns s ∩ o.
func (s Set[T]) Intersect(o Set[T]) Set[T] { return Set[T]{word: s.word & o.word} }

// Difference returns s \ o.
func (s Set[T]) Difference(o Set[T]) Set[T] { return Set[T]{word: s.word &^ o.word} }

// SymmetricDifference returns the members in exactly one of s and o.
func (s Set[T]) SymmetricDifference(o Set[T]) Set[T] { return Set[T]{word: s.word ^ o.word} }

// Contains reports whether every member of o is in s.
func (s Set[T]) Contains(o Set[T]) bool { return o.word&^s.word == 0 }

// Highest returns the largest member. ok is false for an empty set.
func (s Set[T]) Highest() (i T, ok bool) {
	if s.word == 0 {
		return 0, false
	}
	return T(63 - bits.LeadingZeros64(s.word)), true
}

// Lowest returns the smallest member. ok is false for an empty set.
func (s Set[T]) Lowest() (i T, ok bool) {
	if s.word == 0 {
		return 0, false
	}
	return T(bits.TrailingZeros64(s.word)), true
}

// All iterates members in ascending order.
func (s Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		w := s.word
		for w != 0 {
			i := bits.TrailingZeros64(w)
			if !yield(T(i)) {
				return
			}
			w &= w - 1
		}
	}
}
