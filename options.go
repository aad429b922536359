package phonedata

import (
	"github.com/phonedata/phonedata/internal/bloom"
)

const (
	// DefaultBloomFalsePositiveRate is the bloom strategy's target rate.
	DefaultBloomFalsePositiveRate = 0.01
)

// BloomHash selects the hash function behind the bloom strategy's filter.
type BloomHash = bloom.Hash

const (
	BloomHashXXH3    = bloom.HashXXH3
	BloomHashMurmur3 = bloom.HashMurmur3
)

// ParseBloomHash converts "xxh3" or "murmur3" to a BloomHash.
func ParseBloomHash(name string) (BloomHash, error) {
	return bloom.ParseHash(name)
}

// Option is a functional option for configuring Open.
type Option func(*config)

type config struct {
	strategy StrategyID

	cacheEnabled    bool
	cacheMaxEntries int

	bloomExpected uint64 // 0 = size for the number of index entries
	bloomRate     float64
	bloomHash     BloomHash

	buildWorkers int // hash strategy table build
	batchWorkers int // FindBatch fan-out
}

func defaultConfig() *config {
	return &config{
		strategy:     StrategySortedIndex,
		bloomRate:    DefaultBloomFalsePositiveRate,
		bloomHash:    BloomHashXXH3,
		buildWorkers: 1,
		batchWorkers: 1,
	}
}

// WithStrategy sets the lookup strategy. Default is StrategySortedIndex.
func WithStrategy(s StrategyID) Option {
	return func(c *config) {
		c.strategy = s
	}
}

// WithCache enables the result cache with room for maxEntries results.
// Once full, the cache stops accepting new numbers; nothing is evicted.
// maxEntries <= 0 disables the cache.
func WithCache(maxEntries int) Option {
	return func(c *config) {
		c.cacheEnabled = maxEntries > 0
		c.cacheMaxEntries = maxEntries
	}
}

// WithBloomFilter overrides the bloom strategy's sizing. expected = 0 keeps
// the default of one slot per index entry.
func WithBloomFilter(expected uint64, falsePositiveRate float64) Option {
	return func(c *config) {
		c.bloomExpected = expected
		c.bloomRate = falsePositiveRate
	}
}

// WithBloomHash selects the bloom filter hash function. Default is xxh3.
func WithBloomHash(h BloomHash) Option {
	return func(c *config) {
		c.bloomHash = h
	}
}

// WithBuildWorkers sets how many goroutines decode records when the hash
// strategy builds its table. Values < 1 mean 1.
func WithBuildWorkers(n int) Option {
	return func(c *config) {
		c.buildWorkers = n
	}
}

// WithBatchWorkers sets how many goroutines FindBatch uses. Values < 1 mean 1.
func WithBatchWorkers(n int) Option {
	return func(c *config) {
		c.batchWorkers = n
	}
}
