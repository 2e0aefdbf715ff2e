package flow

import "math/bits"

// BitSet is a compact set of instruction positions.
type BitSet struct {
	bits []uint64
}

// NewBitSet creates a BitSet that can hold positions up to maxVal (inclusive).
func NewBitSet(maxVal int) *BitSet {
	words := (maxVal + 64) / 64
	return &BitSet{bits: make([]uint64, words)}
}

// Set adds pos to the set.
func (b *BitSet) Set(pos int) {
	word := pos / 64
	if word >= len(b.bits) {
		b.grow(word + 1)
	}
	b.bits[word] |= 1 << (uint(pos) % 64)
}

// Has returns true if pos is in the set.
func (b *BitSet) Has(pos int) bool {
	if pos < 0 {
		return false
	}
	word := pos / 64
	if word >= len(b.bits) {
		return false
	}
	return b.bits[word]&(1<<(uint(pos)%64)) != 0
}

// Count returns the number of positions in the set.
func (b *BitSet) Count() int {
	count := 0
	for _, word := range b.bits {
		count += bits.OnesCount64(word)
	}
	return count
}

// FirstClear returns the lowest position below n not in the set, or -1.
func (b *BitSet) FirstClear(n int) int {
	for i, word := range b.bits {
		if word == ^uint64(0) {
			continue
		}
		pos := i*64 + bits.TrailingZeros64(^word)
		if pos < n {
			return pos
		}
		return -1
	}
	if len(b.bits)*64 < n {
		return len(b.bits) * 64
	}
	return -1
}

// grow expands the bitset to n words.
// Callers guarantee n > len(b.bits).
func (b *BitSet) grow(n int) {
	newBits := make([]uint64, n)
	copy(newBits, b.bits)
	b.bits = newBits
}
