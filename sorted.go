package phonedata

import (
	"cmp"
	"slices"
	"time"
	"unsafe"

	pderrors "github.com/phonedata/phonedata/errors"
)

// indexEntryMemSize is the in-memory size of an indexEntry (with padding).
const indexEntryMemSize = int(unsafe.Sizeof(indexEntry{}))

// sortedIndex binary-searches the ascending index entries and decodes the
// matching record on demand.
type sortedIndex struct {
	records []byte
	entries []indexEntry
}

func newSortedIndex(raw *rawDatabase) *sortedIndex {
	return &sortedIndex{
		records: raw.records,
		entries: raw.entries,
	}
}

// search returns the entry for prefix. entries must be sorted ascending
// with unique prefixes, which Open verifies.
func (s *sortedIndex) search(prefix int32) (indexEntry, bool) {
	i, found := slices.BinarySearchFunc(s.entries, prefix, func(e indexEntry, p int32) int {
		return cmp.Compare(e.Prefix, p)
	})
	if !found {
		return indexEntry{}, false
	}
	return s.entries[i], true
}

func (s *sortedIndex) lookup(prefix int32, tr *LookupTrace) (PhoneRecord, error) {
	var start time.Time
	if tr != nil {
		start = time.Now()
	}
	e, ok := s.search(prefix)
	if tr != nil {
		tr.SearchTime = time.Since(start)
		tr.Found = ok
	}
	if !ok {
		return PhoneRecord{}, pderrors.ErrNotFound
	}
	return resolveEntry(s.records, e)
}

func (s *sortedIndex) memoryUsage() int {
	return len(s.records) + len(s.entries)*indexEntryMemSize
}

func (s *sortedIndex) fillStats(*Stats) {}
