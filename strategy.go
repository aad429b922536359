package phonedata

import (
	"fmt"
	"strings"
	"time"

	pderrors "github.com/phonedata/phonedata/errors"
)

// StrategyID identifies the lookup structure a Database builds at Open.
type StrategyID uint8

const (
	// StrategySortedIndex binary-searches the index entries. O(log n), no
	// structure beyond the index itself.
	StrategySortedIndex StrategyID = 0

	// StrategyHash decodes every record at Open into a prefix-keyed map.
	// O(1) lookups, slower Open and more memory.
	StrategyHash StrategyID = 1

	// StrategyBloom gates the sorted-index search with a bloom filter so
	// absent prefixes are usually rejected without probing the index.
	StrategyBloom StrategyID = 2
)

// String returns the strategy name.
func (s StrategyID) String() string {
	switch s {
	case StrategySortedIndex:
		return "sorted"
	case StrategyHash:
		return "hash"
	case StrategyBloom:
		return "bloom"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a strategy name ("sorted", "hash" or "bloom") to a
// StrategyID.
func ParseStrategy(name string) (StrategyID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sorted", "binary", "sorted-index":
		return StrategySortedIndex, nil
	case "hash":
		return StrategyHash, nil
	case "bloom":
		return StrategyBloom, nil
	}
	return 0, fmt.Errorf("%w: %q", pderrors.ErrUnknownStrategy, name)
}

// Strategies returns all strategies in ID order.
func Strategies() []StrategyID {
	return []StrategyID{StrategySortedIndex, StrategyHash, StrategyBloom}
}

// LookupTrace describes how a single lookup was resolved.
type LookupTrace struct {
	Strategy       StrategyID
	FilterChecked  bool // bloom strategy only
	FilterPositive bool
	FilterTime     time.Duration
	SearchTime     time.Duration
	Found          bool
}

// lookupStrategy resolves a validated prefix to a record.
//
// Implementations are built once by newLookupStrategy and are immutable
// afterwards, so lookup is safe for concurrent use.
type lookupStrategy interface {
	// lookup returns the record for prefix, ErrNotFound on a miss, or a
	// decode error. tr may be nil; when set, implementations fill in the
	// timing and filter fields.
	lookup(prefix int32, tr *LookupTrace) (PhoneRecord, error)

	// memoryUsage estimates the bytes held by the strategy's structures,
	// including the records region when the strategy retains it.
	memoryUsage() int

	// fillStats adds strategy specific fields to s.
	fillStats(s *Stats)
}

// newLookupStrategy builds the structure for cfg.strategy from the parsed
// file contents. Construction either fully succeeds or returns an error.
func newLookupStrategy(cfg *config, raw *rawDatabase) (lookupStrategy, error) {
	switch cfg.strategy {
	case StrategySortedIndex:
		return newSortedIndex(raw), nil
	case StrategyHash:
		return newHashTable(raw, cfg.buildWorkers)
	case StrategyBloom:
		return newBloomIndex(raw, cfg.bloomExpected, cfg.bloomRate, cfg.bloomHash)
	}
	return nil, fmt.Errorf("%w: id %d", pderrors.ErrUnknownStrategy, cfg.strategy)
}
