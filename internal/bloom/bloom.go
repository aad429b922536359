// Package bloom implements a fixed-size bloom filter over 32-bit keys.
//
// The bit array and hash count are derived analytically from the expected
// item count n and the target false-positive rate p:
//
//	m = ceil(-n * ln(p) / ln(2)^2)   rounded up to a multiple of 64
//	k = max(1, round(m / n * ln(2)))
//
// Bit positions use double hashing (Kirsch–Mitzenmacher): one 128-bit hash
// of the key yields h1 and h2, and probe i sets bit FastRange(h1 + i*h2, m).
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	pderrors "github.com/phonedata/phonedata/errors"
	intbits "github.com/phonedata/phonedata/internal/bits"
)

// maxHashCount caps k. Beyond this the probe cost dominates lookups and
// the false-positive rate target is unrealistically small.
const maxHashCount = 32

// Hash selects the 128-bit hash used to derive probe positions.
type Hash uint8

const (
	// HashXXH3 uses xxHash3-128.
	HashXXH3 Hash = 0

	// HashMurmur3 uses MurmurHash3 x64 128.
	HashMurmur3 Hash = 1
)

// String returns the hash name.
func (h Hash) String() string {
	switch h {
	case HashXXH3:
		return "xxh3"
	case HashMurmur3:
		return "murmur3"
	default:
		return "unknown"
	}
}

// ParseHash converts a hash name to a Hash.
func ParseHash(name string) (Hash, error) {
	switch strings.ToLower(name) {
	case "", "xxh3":
		return HashXXH3, nil
	case "murmur3":
		return HashMurmur3, nil
	}
	return 0, fmt.Errorf("%w: %q", pderrors.ErrUnknownBloomHash, name)
}

// Filter is a bloom filter. Add is not safe for concurrent use; once
// populated, Contains may be called from any number of goroutines.
type Filter struct {
	words []uint64
	m     uint64 // bits
	k     uint32 // probes per key
	n     uint64 // keys added
	hash  Hash
}

// OptimalParams returns the bit count (a multiple of 64) and probe count for
// n expected items at false-positive rate p.
func OptimalParams(n uint64, p float64) (uint64, uint32, error) {
	if n == 0 || math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, 0, fmt.Errorf("%w: expected=%d rate=%v", pderrors.ErrInvalidBloomParams, n, p)
	}

	m := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	bitCount := intbits.WordCount(uint64(m)) * 64
	if bitCount == 0 {
		bitCount = 64
	}

	k := math.Round(float64(bitCount) / float64(n) * math.Ln2)
	k = max(1, min(k, maxHashCount))

	return bitCount, uint32(k), nil
}

// New creates an empty filter sized for expected items at rate fpRate.
func New(expected uint64, fpRate float64, h Hash) (*Filter, error) {
	if h != HashXXH3 && h != HashMurmur3 {
		return nil, fmt.Errorf("%w: %d", pderrors.ErrUnknownBloomHash, h)
	}
	m, k, err := OptimalParams(expected, fpRate)
	if err != nil {
		return nil, err
	}
	return &Filter{
		words: make([]uint64, m/64),
		m:     m,
		k:     k,
		hash:  h,
	}, nil
}

// hash128 returns the two 64-bit halves used for double hashing.
// h2 is forced odd so successive probes never collapse onto one bit.
func (f *Filter) hash128(key uint32) (uint64, uint64) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], key)

	var h1, h2 uint64
	switch f.hash {
	case HashMurmur3:
		h1, h2 = murmur3.Sum128(buf[:])
	default:
		u := xxh3.Hash128(buf[:])
		h1, h2 = u.Lo, u.Hi
	}
	return h1, h2 | 1
}

// Add inserts key.
func (f *Filter) Add(key uint32) {
	h1, h2 := f.hash128(key)
	for i := uint32(0); i < f.k; i++ {
		intbits.Set(f.words, intbits.FastRange64(h1+uint64(i)*h2, f.m))
	}
	f.n++
}

// Contains reports whether key may have been added. A false result is
// definitive; a true result may be a false positive.
func (f *Filter) Contains(key uint32) bool {
	h1, h2 := f.hash128(key)
	for i := uint32(0); i < f.k; i++ {
		if !intbits.Test(f.words, intbits.FastRange64(h1+uint64(i)*h2, f.m)) {
			return false
		}
	}
	return true
}

// Bits returns the size of the bit array.
func (f *Filter) Bits() uint64 { return f.m }

// HashCount returns the number of probes per key.
func (f *Filter) HashCount() uint32 { return f.k }

// Count returns the number of keys added.
func (f *Filter) Count() uint64 { return f.n }

// Hash returns the hash function in use.
func (f *Filter) Hash() Hash { return f.hash }

// SizeBytes returns the memory held by the bit array.
func (f *Filter) SizeBytes() int { return len(f.words) * 8 }

// FillRatio returns the fraction of bits set.
func (f *Filter) FillRatio() float64 {
	return float64(intbits.PopCount(f.words)) / float64(f.m)
}

// EstimatedFalsePositiveRate returns (1 - e^(-k*n/m))^k for the keys added
// so far.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	if f.n == 0 {
		return 0
	}
	k := float64(f.k)
	return math.Pow(1-math.Exp(-k*float64(f.n)/float64(f.m)), k)
}
