package phonedata

import (
	"time"

	pderrors "github.com/phonedata/phonedata/errors"
	"github.com/phonedata/phonedata/internal/bloom"
)

// BloomStats describes the bloom strategy's filter.
type BloomStats struct {
	Bits                       uint64  `json:"bits"`
	HashCount                  uint32  `json:"hash_count"`
	Hash                       string  `json:"hash"`
	SizeBytes                  int     `json:"size_bytes"`
	Items                      uint64  `json:"items"`
	FillRatio                  float64 `json:"fill_ratio"`
	EstimatedFalsePositiveRate float64 `json:"estimated_false_positive_rate"`
}

// bloomIndex answers "definitely absent" from the filter and falls back to
// the sorted index for everything else. Every indexed prefix is in the
// filter, so results match the sorted index exactly.
type bloomIndex struct {
	*sortedIndex
	filter *bloom.Filter
}

// newBloomIndex sizes the filter for expected items (0 means one per index
// entry) at false-positive rate fpRate and inserts every indexed prefix.
func newBloomIndex(raw *rawDatabase, expected uint64, fpRate float64, h BloomHash) (*bloomIndex, error) {
	if expected == 0 {
		expected = max(1, uint64(len(raw.entries)))
	}
	f, err := bloom.New(expected, fpRate, h)
	if err != nil {
		return nil, err
	}
	for _, e := range raw.entries {
		f.Add(uint32(e.Prefix))
	}
	return &bloomIndex{
		sortedIndex: newSortedIndex(raw),
		filter:      f,
	}, nil
}

func (b *bloomIndex) lookup(prefix int32, tr *LookupTrace) (PhoneRecord, error) {
	if tr == nil {
		if !b.filter.Contains(uint32(prefix)) {
			return PhoneRecord{}, pderrors.ErrNotFound
		}
		return b.sortedIndex.lookup(prefix, nil)
	}

	start := time.Now()
	positive := b.filter.Contains(uint32(prefix))
	tr.FilterTime = time.Since(start)
	tr.FilterChecked = true
	tr.FilterPositive = positive
	if !positive {
		return PhoneRecord{}, pderrors.ErrNotFound
	}
	return b.sortedIndex.lookup(prefix, tr)
}

func (b *bloomIndex) memoryUsage() int {
	return b.sortedIndex.memoryUsage() + b.filter.SizeBytes()
}

func (b *bloomIndex) fillStats(s *Stats) {
	s.Bloom = &BloomStats{
		Bits:                       b.filter.Bits(),
		HashCount:                  b.filter.HashCount(),
		Hash:                       b.filter.Hash().String(),
		SizeBytes:                  b.filter.SizeBytes(),
		Items:                      b.filter.Count(),
		FillRatio:                  b.filter.FillRatio(),
		EstimatedFalsePositiveRate: b.filter.EstimatedFalsePositiveRate(),
	}
}
