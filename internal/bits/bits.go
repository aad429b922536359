// Package bits provides low-level bit manipulation primitives.
package bits

import "math/bits"

// FastRange64 maps a 64-bit hash uniformly to [0, n).
// Uses the "fastrange" technique: multiply and take high bits.
// This is the standard way to map hashes to ranges without modulo bias.
func FastRange64(hash, n uint64) uint64 {
	if n == 0 {
		return 0
	}
	hi, _ := bits.Mul64(hash, n)
	return hi
}

// WordCount returns the number of 64-bit words needed to hold n bits.
func WordCount(n uint64) uint64 {
	return (n + 63) / 64
}

// Test reports whether bit i is set in words.
func Test(words []uint64, i uint64) bool {
	return words[i>>6]&(1<<(i&63)) != 0
}

// Set sets bit i in words.
func Set(words []uint64, i uint64) {
	words[i>>6] |= 1 << (i & 63)
}

// PopCount returns the number of set bits in words.
func PopCount(words []uint64) uint64 {
	var n uint64
	for _, w := range words {
		n += uint64(bits.OnesCount64(w))
	}
	return n
}
