package phonedata

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"

	pderrors "github.com/phonedata/phonedata/errors"
)

// Database is a read-only phone prefix database.
//
// Thread Safety:
//   - Every method is safe for concurrent use
//   - All lookup structures are immutable after Open; the optional result
//     cache is the only mutable state and is internally locked
//   - There is no Close. A Database owns heap copies of everything it needs,
//     so replacing one means opening a new instance and swapping the pointer
type Database struct {
	version       string
	totalEntries  int
	recordsBytes  int
	trailingBytes int
	fileBytes     int
	digest        uint64

	cfg      *config
	strategy lookupStrategy
	cache    *resultCache // nil when disabled
}

// Result is one element of FindBatch's output.
type Result struct {
	Record PhoneRecord
	Err    error
}

// Stats holds database statistics.
type Stats struct {
	Version          string      `json:"version"`
	Strategy         string      `json:"strategy"`
	TotalEntries     int         `json:"total_entries"`
	RecordsBytes     int         `json:"records_bytes"`
	TrailingBytes    int         `json:"trailing_bytes"`
	FileBytes        int         `json:"file_bytes"`
	MemoryUsageBytes int         `json:"memory_usage_bytes"`
	Digest           uint64      `json:"digest,string"`
	UniqueRecords    int         `json:"unique_records,omitempty"` // hash strategy
	Bloom            *BloomStats `json:"bloom,omitempty"`
	Cache            *CacheStats `json:"cache,omitempty"`
}

// rawDatabase is the parsed file: header, records region and index entries.
type rawDatabase struct {
	header   *header
	records  []byte // owned copy of [headerSize, IndexOffset)
	entries  []indexEntry
	trailing int
	size     int
	digest   uint64
}

// Open loads the database file at path.
// It opens the file, memory-maps it, copies what the lookup structures need
// and releases both the mapping and the file descriptor before returning.
func Open(path string, opts ...Option) (*Database, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	defer file.Close()
	return OpenFile(file, opts...)
}

// OpenFile loads a database by memory-mapping f.
// The caller is responsible for closing f; it may be closed as soon as
// OpenFile returns.
func OpenFile(f *os.File, opts ...Option) (*Database, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat database file: %w", err)
	}
	fileSize := stat.Size()
	if fileSize < headerSize {
		return nil, corrupt(pderrors.ErrTruncatedFile, "file is %d bytes, need at least %d", fileSize, headerSize)
	}

	fadviseSequential(int(f.Fd()), 0, fileSize)

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap database file: %w", err)
	}
	adviseSequential(mm)

	raw, err := parseDatabase(mm)
	if unmapErr := mm.Unmap(); unmapErr != nil {
		return nil, errors.Join(err, fmt.Errorf("unmap database file: %w", unmapErr))
	}
	if err != nil {
		return nil, err
	}
	return newDatabase(raw, opts)
}

// OpenBytes loads a database from an in-memory image of the file.
// data is not retained; the caller may reuse it once OpenBytes returns.
func OpenBytes(data []byte, opts ...Option) (*Database, error) {
	raw, err := parseDatabase(data)
	if err != nil {
		return nil, err
	}
	return newDatabase(raw, opts)
}

// parseDatabase validates the file image and extracts the records region
// and index entries. The records region is copied so the result does not
// alias data.
func parseDatabase(data []byte) (*rawDatabase, error) {
	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if uint64(hdr.IndexOffset) > uint64(len(data)) {
		return nil, corrupt(pderrors.ErrTruncatedFile, "records region ends at %d but file is %d bytes",
			hdr.IndexOffset, len(data))
	}

	index := data[hdr.IndexOffset:]
	numEntries := len(index) / indexEntrySize

	entries := make([]indexEntry, numEntries)
	for i := range entries {
		off := i * indexEntrySize
		entries[i] = decodeIndexEntry(index[off : off+indexEntrySize])
		if i > 0 && entries[i].Prefix <= entries[i-1].Prefix {
			return nil, fmt.Errorf("%w: index entry %d (prefix %d) does not follow prefix %d",
				pderrors.ErrCorruptDatabase, i, entries[i].Prefix, entries[i-1].Prefix)
		}
	}

	return &rawDatabase{
		header:   hdr,
		records:  bytes.Clone(data[headerSize:hdr.IndexOffset]),
		entries:  entries,
		trailing: len(index) % indexEntrySize,
		size:     len(data),
		digest:   xxhash.Sum64(data),
	}, nil
}

func newDatabase(raw *rawDatabase, opts []Option) (*Database, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	strategy, err := newLookupStrategy(cfg, raw)
	if err != nil {
		return nil, err
	}

	db := &Database{
		version:       raw.header.version(),
		totalEntries:  len(raw.entries),
		recordsBytes:  len(raw.records),
		trailingBytes: raw.trailing,
		fileBytes:     raw.size,
		digest:        raw.digest,
		cfg:           cfg,
		strategy:      strategy,
	}
	if cfg.cacheEnabled {
		db.cache = newResultCache(cfg.cacheMaxEntries)
	}
	return db, nil
}

// Find resolves number to its record.
//
// number must be 7 to 11 characters (ErrInvalidLength) whose first 7 are
// ASCII digits (ErrInvalidFormat). An absent prefix returns ErrNotFound.
// ErrCorruptDatabase and ErrInvalidCarrierCode report a bad record or
// carrier byte behind a matching index entry.
func (db *Database) Find(number string) (PhoneRecord, error) {
	prefix, err := parsePrefix(number)
	if err != nil {
		return PhoneRecord{}, err
	}

	if db.cache != nil {
		if rec, ok := db.cache.get(number); ok {
			return rec, nil
		}
	}

	rec, err := db.strategy.lookup(prefix, nil)
	if err != nil {
		return PhoneRecord{}, err
	}

	if db.cache != nil {
		db.cache.put(number, rec)
	}
	return rec, nil
}

// FindWithTrace is Find plus a description of how the strategy resolved
// the prefix. It bypasses the result cache.
func (db *Database) FindWithTrace(number string) (PhoneRecord, LookupTrace, error) {
	tr := LookupTrace{Strategy: db.cfg.strategy}
	prefix, err := parsePrefix(number)
	if err != nil {
		return PhoneRecord{}, tr, err
	}
	rec, err := db.strategy.lookup(prefix, &tr)
	return rec, tr, err
}

// FindBatch resolves each number independently; one failure does not stop
// the others. Results are in input order.
func (db *Database) FindBatch(numbers []string) []Result {
	results := make([]Result, len(numbers))

	workers := db.cfg.batchWorkers
	if workers <= 1 || len(numbers) < 2 {
		for i, n := range numbers {
			results[i].Record, results[i].Err = db.Find(n)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, n := range numbers {
		g.Go(func() error {
			results[i].Record, results[i].Err = db.Find(n)
			return nil
		})
	}
	_ = g.Wait() // workers never return an error; per-number errors live in results
	return results
}

// Version returns the 4-byte version string from the header.
func (db *Database) Version() string { return db.version }

// TotalEntries returns the number of complete index entries.
func (db *Database) TotalEntries() int { return db.totalEntries }

// Strategy returns the lookup strategy in use.
func (db *Database) Strategy() StrategyID { return db.cfg.strategy }

// Digest returns the xxHash64 of the file image the database was loaded
// from. Two databases with equal digests hold identical data.
func (db *Database) Digest() uint64 { return db.digest }

// MemoryUsageBytes estimates the memory held by the lookup structures,
// excluding the result cache.
func (db *Database) MemoryUsageBytes() int { return db.strategy.memoryUsage() }

// CacheStats returns result cache statistics. ok is false when the cache
// is disabled.
func (db *Database) CacheStats() (stats CacheStats, ok bool) {
	if db.cache == nil {
		return CacheStats{}, false
	}
	return db.cache.stats(), true
}

// Stats returns a snapshot of database statistics.
func (db *Database) Stats() Stats {
	s := Stats{
		Version:          db.version,
		Strategy:         db.cfg.strategy.String(),
		TotalEntries:     db.totalEntries,
		RecordsBytes:     db.recordsBytes,
		TrailingBytes:    db.trailingBytes,
		FileBytes:        db.fileBytes,
		MemoryUsageBytes: db.strategy.memoryUsage(),
		Digest:           db.digest,
	}
	db.strategy.fillStats(&s)
	if cs, ok := db.CacheStats(); ok {
		s.Cache = &cs
	}
	return s
}
