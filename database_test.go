package phonedata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cespare/xxhash/v2"

	pderrors "github.com/phonedata/phonedata/errors"
)

func TestFindScenario(t *testing.T) {
	data := singleRecordImage(1)
	for s, db := range openAll(t, data) {
		t.Run(s.String(), func(t *testing.T) {
			if db.Version() != "v001" {
				t.Errorf("Version = %q, want v001", db.Version())
			}
			if db.TotalEntries() != 1 {
				t.Errorf("TotalEntries = %d, want 1", db.TotalEntries())
			}

			rec, err := db.Find("18086834111")
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			want := PhoneRecord{
				Province:    "Guangdong",
				City:        "Shenzhen",
				ZipCode:     "518000",
				AreaCode:    "0755",
				Carrier:     "China Mobile",
				CarrierCode: CarrierMobile,
			}
			if rec != want {
				t.Errorf("Find = %+v, want %+v", rec, want)
			}

			if _, err := db.Find("99999999999"); !errors.Is(err, pderrors.ErrNotFound) {
				t.Errorf("Find(99999999999) error = %v, want ErrNotFound", err)
			}
			if _, err := db.Find("123"); !errors.Is(err, pderrors.ErrInvalidLength) {
				t.Errorf("Find(123) error = %v, want ErrInvalidLength", err)
			}
		})
	}
}

// TestInvalidCarrierCode verifies a carrier byte outside 1..8 fails the
// lookup even though the region itself decodes cleanly.
func TestInvalidCarrierCode(t *testing.T) {
	for _, code := range []byte{0, 9, 255} {
		for s, db := range openAll(t, singleRecordImage(code)) {
			_, err := db.Find("1808683")
			if !errors.Is(err, pderrors.ErrInvalidCarrierCode) {
				t.Errorf("%s carrier %d: error = %v, want ErrInvalidCarrierCode", s, code, err)
			}
		}
	}
}

func TestLengthBoundaries(t *testing.T) {
	for s, db := range openAll(t, singleRecordImage(1)) {
		for _, n := range []string{"", "123456", "123456789012", "180868341111111"} {
			if _, err := db.Find(n); !errors.Is(err, pderrors.ErrInvalidLength) {
				t.Errorf("%s Find(%q) error = %v, want ErrInvalidLength", s, n, err)
			}
		}
		for _, n := range []string{"1808683", "18086834111"} {
			if _, err := db.Find(n); err != nil {
				t.Errorf("%s Find(%q): %v", s, n, err)
			}
		}
		for _, n := range []string{"1234567", "12345678901"} {
			if _, err := db.Find(n); !errors.Is(err, pderrors.ErrNotFound) {
				t.Errorf("%s Find(%q) error = %v, want ErrNotFound", s, n, err)
			}
		}
	}
}

func TestInvalidFormat(t *testing.T) {
	db, err := OpenBytes(singleRecordImage(1))
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"18086a34111", "+8618086834", "180 8683411", "-180868"} {
		if _, err := db.Find(n); !errors.Is(err, pderrors.ErrInvalidFormat) {
			t.Errorf("Find(%q) error = %v, want ErrInvalidFormat", n, err)
		}
	}
	// Characters after the prefix are not inspected.
	if _, err := db.Find("1808683abcd"); err != nil {
		t.Errorf("Find(1808683abcd): %v", err)
	}
}

// TestStrategiesAgree checks that all strategies return identical results
// for present and absent prefixes.
func TestStrategiesAgree(t *testing.T) {
	rng := newTestRNG(t)
	entries := generateEntries(rng, 3000)
	dbs := openAll(t, buildImage(t, entries))

	check := func(number string) {
		t.Helper()
		wantRec, wantErr := dbs[StrategySortedIndex].Find(number)
		for _, s := range []StrategyID{StrategyHash, StrategyBloom} {
			rec, err := dbs[s].Find(number)
			if rec != wantRec || err != wantErr {
				t.Fatalf("%s Find(%s) = %+v, %v; sorted gave %+v, %v", s, number, rec, err, wantRec, wantErr)
			}
		}
	}

	for _, e := range entries {
		number := numberFor(rng, e.Prefix)
		check(number)

		rec, err := dbs[StrategySortedIndex].Find(number)
		if err != nil {
			t.Fatalf("Find(%s): %v", number, err)
		}
		if rec.Province != e.Region.Province || rec.City != e.Region.City || rec.CarrierCode != e.Carrier {
			t.Fatalf("Find(%s) = %+v, want region %+v carrier %d", number, rec, e.Region, e.Carrier)
		}
	}
	for i := 0; i < 3000; i++ {
		check(numberFor(rng, rng.Int32N(10_000_000)))
	}
}

// TestPrefixEquivalence checks Find(n) == Find(n[:7]) for 8..11 character numbers.
func TestPrefixEquivalence(t *testing.T) {
	rng := newTestRNG(t)
	entries := generateEntries(rng, 500)
	data := buildImage(t, entries)

	for s, db := range openAll(t, data) {
		for _, e := range entries[:100] {
			full := numberFor(rng, e.Prefix)
			want, wantErr := db.Find(full[:7])
			for l := 8; l <= 11; l++ {
				got, err := db.Find(full[:l])
				if got != want || err != wantErr {
					t.Fatalf("%s Find(%s) = %+v, %v; Find(%s) = %+v, %v", s, full[:l], got, err, full[:7], want, wantErr)
				}
			}
		}
	}
}

func TestOpenFileVariants(t *testing.T) {
	rng := newTestRNG(t)
	entries := generateEntries(rng, 1000)
	path := buildFile(t, entries)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	fromPath, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	fromFile, err := OpenFile(f)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	// The database does not depend on the file after OpenFile returns.
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	fromBytes, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	for i := range data {
		data[i] = 0
	}

	want := xxhash.Sum64(mustReadFile(t, path))
	for name, db := range map[string]*Database{"Open": fromPath, "OpenFile": fromFile, "OpenBytes": fromBytes} {
		if db.Digest() != want {
			t.Errorf("%s Digest = %x, want %x", name, db.Digest(), want)
		}
		if db.TotalEntries() != len(entries) {
			t.Errorf("%s TotalEntries = %d, want %d", name, db.TotalEntries(), len(entries))
		}
		for _, e := range entries[:50] {
			if _, err := db.Find(numberFor(rng, e.Prefix)); err != nil {
				t.Errorf("%s Find(%07d): %v", name, e.Prefix, err)
			}
		}
	}
}

func mustReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open("/nonexistent/path/phone.dat"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("expected error when opening a directory")
	}

	empty := filepath.Join(t.TempDir(), "empty.dat")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(empty)
	if !errors.Is(err, pderrors.ErrTruncatedFile) || !errors.Is(err, pderrors.ErrCorruptDatabase) {
		t.Errorf("Open(empty) error = %v, want ErrTruncatedFile and ErrCorruptDatabase", err)
	}

	if _, err := OpenBytes(singleRecordImage(1), WithStrategy(StrategyID(7))); !errors.Is(err, pderrors.ErrUnknownStrategy) {
		t.Errorf("unknown strategy error = %v", err)
	}
	if _, err := OpenBytes(singleRecordImage(1), WithStrategy(StrategyBloom), WithBloomFilter(10, 1.5)); !errors.Is(err, pderrors.ErrInvalidBloomParams) {
		t.Errorf("invalid bloom params error = %v", err)
	}
}

// TestOpenCorruption covers header and index damage that Open must reject.
func TestOpenCorruption(t *testing.T) {
	recordEnd := headerSize + len("Guangdong|Shenzhen|518000|0755\x00")

	tests := []struct {
		name      string
		mutate    func([]byte) []byte
		truncated bool
	}{
		{"Empty", func([]byte) []byte { return nil }, true},
		{"ShortHeader", func(b []byte) []byte { return b[:7] }, true},
		{"InvalidVersionUTF8", func(b []byte) []byte { b[1] = 0xff; return b }, false},
		{"IndexOffsetInsideHeader", func(b []byte) []byte { b[4], b[5], b[6], b[7] = 4, 0, 0, 0; return b }, false},
		{"IndexOffsetPastEOF", func(b []byte) []byte { b[4] = 0xff; b[5] = 0xff; return b }, true},
		{"RecordsTruncated", func(b []byte) []byte { return b[:recordEnd-3] }, true},
		{"DescendingPrefixes", func(b []byte) []byte {
			second := make([]byte, indexEntrySize)
			encodeIndexEntryTo(indexEntry{Prefix: 1300000, RecordOffset: headerSize, Carrier: 1}, second)
			return append(b, second...)
		}, false},
		{"DuplicatePrefix", func(b []byte) []byte {
			return append(b, b[recordEnd:recordEnd+indexEntrySize]...)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(singleRecordImage(1))
			for _, s := range Strategies() {
				_, err := OpenBytes(data, WithStrategy(s))
				if !errors.Is(err, pderrors.ErrCorruptDatabase) {
					t.Fatalf("%s: error = %v, want ErrCorruptDatabase", s, err)
				}
				if tt.truncated != errors.Is(err, pderrors.ErrTruncatedFile) {
					t.Errorf("%s: errors.Is(err, ErrTruncatedFile) = %v, want %v", s, !tt.truncated, tt.truncated)
				}
			}
		})
	}
}

// TestRecordCorruption damages the record an entry points to. Lazy
// strategies open fine and fail the lookup; the hash strategy decodes
// eagerly and fails Open.
func TestRecordCorruption(t *testing.T) {
	recordStart := headerSize
	terminator := headerSize + len("Guangdong|Shenzhen|518000|0755")
	indexOffset := terminator + 1

	tests := []struct {
		name   string
		mutate func([]byte)
	}{
		{"Unterminated", func(b []byte) { b[terminator] = 'x' }},
		{"InvalidUTF8", func(b []byte) { b[recordStart+2] = 0xfe }},
		{"ThreeFields", func(b []byte) { b[recordStart+len("Guangdong")] = ',' }},
		{"FiveFields", func(b []byte) { b[recordStart+1] = '|' }},
		{"OffsetBeforeRecords", func(b []byte) { b[indexOffset+4] = 2 }},
		{"OffsetPastRecords", func(b []byte) { b[indexOffset+4] = byte(indexOffset) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := singleRecordImage(1)
			tt.mutate(data)

			for _, s := range []StrategyID{StrategySortedIndex, StrategyBloom} {
				db, err := OpenBytes(data, WithStrategy(s))
				if err != nil {
					t.Fatalf("%s OpenBytes: %v", s, err)
				}
				if _, err := db.Find("1808683"); !errors.Is(err, pderrors.ErrCorruptDatabase) {
					t.Errorf("%s Find error = %v, want ErrCorruptDatabase", s, err)
				}
			}

			if _, err := OpenBytes(data, WithStrategy(StrategyHash)); !errors.Is(err, pderrors.ErrCorruptDatabase) {
				t.Errorf("hash OpenBytes error = %v, want ErrCorruptDatabase", err)
			}
		})
	}
}

// TestTrailingPartialEntry verifies a short final index chunk is ignored.
func TestTrailingPartialEntry(t *testing.T) {
	data := append(singleRecordImage(1), 0x01, 0x02, 0x03, 0x04)
	for s, db := range openAll(t, data) {
		if db.TotalEntries() != 1 {
			t.Errorf("%s TotalEntries = %d, want 1", s, db.TotalEntries())
		}
		if got := db.Stats().TrailingBytes; got != 4 {
			t.Errorf("%s TrailingBytes = %d, want 4", s, got)
		}
		if _, err := db.Find("18086834111"); err != nil {
			t.Errorf("%s Find: %v", s, err)
		}
	}
}

func TestEmptyIndex(t *testing.T) {
	data := singleRecordImage(1)
	data = data[:len(data)-indexEntrySize]
	for s, db := range openAll(t, data) {
		if db.TotalEntries() != 0 {
			t.Errorf("%s TotalEntries = %d, want 0", s, db.TotalEntries())
		}
		if _, err := db.Find("18086834111"); !errors.Is(err, pderrors.ErrNotFound) {
			t.Errorf("%s Find error = %v, want ErrNotFound", s, err)
		}
	}
}

func TestCacheTransparency(t *testing.T) {
	rng := newTestRNG(t)
	entries := generateEntries(rng, 1000)
	data := buildImage(t, entries)

	numbers := make([]string, 0, 3000)
	for _, e := range entries {
		numbers = append(numbers, numberFor(rng, e.Prefix))
	}
	for i := 0; i < 1000; i++ {
		numbers = append(numbers, numberFor(rng, rng.Int32N(10_000_000)))
	}
	numbers = append(numbers, "123", "12x4567890")

	for _, s := range Strategies() {
		plain, err := OpenBytes(data, WithStrategy(s))
		if err != nil {
			t.Fatal(err)
		}
		cached, err := OpenBytes(data, WithStrategy(s), WithCache(500))
		if err != nil {
			t.Fatal(err)
		}
		// Two passes: the second is served partly from the cache.
		for pass := 0; pass < 2; pass++ {
			for _, n := range numbers {
				want, wantErr := plain.Find(n)
				got, err := cached.Find(n)
				if got != want || err != wantErr {
					t.Fatalf("%s pass %d Find(%s): cached %+v, %v; uncached %+v, %v", s, pass, n, got, err, want, wantErr)
				}
			}
		}
		stats, ok := cached.CacheStats()
		if !ok {
			t.Fatal("CacheStats reported cache disabled")
		}
		if stats.Entries != 500 || !stats.Frozen {
			t.Errorf("%s cache stats = %+v, want 500 entries and frozen", s, stats)
		}
		if stats.Hits == 0 {
			t.Errorf("%s cache never hit", s)
		}
	}
}

// TestCacheFillThenFreeze pins the cache policy: once full no new keys are
// admitted and nothing is evicted.
func TestCacheFillThenFreeze(t *testing.T) {
	rng := newTestRNG(t)
	entries := generateEntries(rng, 10)
	db, err := OpenBytes(buildImage(t, entries), WithCache(2))
	if err != nil {
		t.Fatal(err)
	}

	a := numberFor(rng, entries[0].Prefix)
	b := numberFor(rng, entries[1].Prefix)
	c := numberFor(rng, entries[2].Prefix)
	for _, n := range []string{a, b, c, a, c} {
		if _, err := db.Find(n); err != nil {
			t.Fatalf("Find(%s): %v", n, err)
		}
	}

	stats, _ := db.CacheStats()
	want := CacheStats{Entries: 2, Capacity: 2, Hits: 1, Misses: 4, HitRatio: 0.2, Frozen: true}
	if stats != want {
		t.Errorf("CacheStats = %+v, want %+v", stats, want)
	}
}

func TestCacheKeysAndFailures(t *testing.T) {
	db, err := OpenBytes(singleRecordImage(1), WithCache(10))
	if err != nil {
		t.Fatal(err)
	}

	// Same prefix, distinct inputs: separate entries.
	for _, n := range []string{"1808683", "18086834111", "18086834111"} {
		if _, err := db.Find(n); err != nil {
			t.Fatal(err)
		}
	}
	// Failures are not cached.
	for _, n := range []string{"99999999999", "99999999999", "123"} {
		_, _ = db.Find(n)
	}

	stats, _ := db.CacheStats()
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
}

func TestCacheDisabled(t *testing.T) {
	for _, opts := range [][]Option{nil, {WithCache(0)}, {WithCache(-5)}} {
		db, err := OpenBytes(singleRecordImage(1), opts...)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := db.CacheStats(); ok {
			t.Error("CacheStats reported an enabled cache")
		}
		if db.Stats().Cache != nil {
			t.Error("Stats.Cache set with cache disabled")
		}
	}
}

func TestConcurrentFind(t *testing.T) {
	rng := newTestRNG(t)
	entries := generateEntries(rng, 2000)
	data := buildImage(t, entries)

	numbers := make([]string, len(entries))
	for i, e := range entries {
		numbers[i] = numberFor(rng, e.Prefix)
	}

	for _, s := range Strategies() {
		db, err := OpenBytes(data, WithStrategy(s), WithCache(1000))
		if err != nil {
			t.Fatal(err)
		}
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range numbers {
					n := numbers[(i+g*250)%len(numbers)]
					if _, err := db.Find(n); err != nil {
						errs <- fmt.Errorf("%s Find(%s): %w", s, n, err)
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	}
}

func TestFindBatch(t *testing.T) {
	numbers := []string{"18086834111", "123", "99999999999", "1808683", "18x86834111"}
	wantErrs := []error{nil, pderrors.ErrInvalidLength, pderrors.ErrNotFound, nil, pderrors.ErrInvalidFormat}

	for _, workers := range []int{1, 4} {
		db, err := OpenBytes(singleRecordImage(1), WithBatchWorkers(workers))
		if err != nil {
			t.Fatal(err)
		}
		results := db.FindBatch(numbers)
		if len(results) != len(numbers) {
			t.Fatalf("workers=%d: %d results, want %d", workers, len(results), len(numbers))
		}
		for i, r := range results {
			if !errors.Is(r.Err, wantErrs[i]) || (wantErrs[i] == nil) != (r.Err == nil) {
				t.Errorf("workers=%d result %d error = %v, want %v", workers, i, r.Err, wantErrs[i])
			}
			if r.Err == nil && r.Record.City != "Shenzhen" {
				t.Errorf("workers=%d result %d = %+v", workers, i, r.Record)
			}
		}
	}

	db, _ := OpenBytes(singleRecordImage(1))
	if got := db.FindBatch(nil); len(got) != 0 {
		t.Errorf("FindBatch(nil) = %v", got)
	}
}

func TestFindWithTrace(t *testing.T) {
	dbs := openAll(t, singleRecordImage(1), WithCache(10))

	_, tr, err := dbs[StrategyBloom].FindWithTrace("18086834111")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Strategy != StrategyBloom || !tr.FilterChecked || !tr.FilterPositive || !tr.Found {
		t.Errorf("bloom hit trace = %+v", tr)
	}

	_, tr, err = dbs[StrategyBloom].FindWithTrace("99999999999")
	if !errors.Is(err, pderrors.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !tr.FilterChecked || tr.Found {
		t.Errorf("bloom miss trace = %+v", tr)
	}

	_, tr, err = dbs[StrategySortedIndex].FindWithTrace("1808683")
	if err != nil {
		t.Fatal(err)
	}
	if tr.FilterChecked || !tr.Found {
		t.Errorf("sorted trace = %+v", tr)
	}

	_, _, err = dbs[StrategyHash].FindWithTrace("12")
	if !errors.Is(err, pderrors.ErrInvalidLength) {
		t.Errorf("error = %v, want ErrInvalidLength", err)
	}

	// Tracing bypasses the cache.
	if stats, _ := dbs[StrategyBloom].CacheStats(); stats.Entries != 0 || stats.Hits+stats.Misses != 0 {
		t.Errorf("trace touched the cache: %+v", stats)
	}
}

func TestStats(t *testing.T) {
	rng := newTestRNG(t)
	entries := generateEntries(rng, 2000)
	data := buildImage(t, entries)
	dbs := openAll(t, data)

	sorted := dbs[StrategySortedIndex].Stats()
	if sorted.Version != "v002" || sorted.Strategy != "sorted" || sorted.TotalEntries != len(entries) {
		t.Errorf("sorted stats = %+v", sorted)
	}
	if sorted.FileBytes != len(data) || sorted.Digest != xxhash.Sum64(data) {
		t.Errorf("FileBytes/Digest = %d/%x", sorted.FileBytes, sorted.Digest)
	}
	if sorted.Bloom != nil || sorted.UniqueRecords != 0 {
		t.Errorf("sorted stats carry strategy fields: %+v", sorted)
	}
	if sorted.MemoryUsageBytes != dbs[StrategySortedIndex].MemoryUsageBytes() {
		t.Error("Stats.MemoryUsageBytes disagrees with MemoryUsageBytes")
	}

	hash := dbs[StrategyHash].Stats()
	if hash.UniqueRecords == 0 || hash.UniqueRecords > 40 {
		t.Errorf("hash UniqueRecords = %d, want 1..40", hash.UniqueRecords)
	}

	bloomStats := dbs[StrategyBloom].Stats()
	if bloomStats.Bloom == nil {
		t.Fatal("bloom stats missing")
	}
	if bloomStats.Bloom.Items != uint64(len(entries)) || bloomStats.Bloom.Hash != "xxh3" || bloomStats.Bloom.HashCount != 7 {
		t.Errorf("bloom stats = %+v", bloomStats.Bloom)
	}
	if fp := bloomStats.Bloom.EstimatedFalsePositiveRate; fp <= 0 || fp > 0.015 {
		t.Errorf("EstimatedFalsePositiveRate = %v", fp)
	}
	if bloomStats.MemoryUsageBytes != sorted.MemoryUsageBytes+bloomStats.Bloom.SizeBytes {
		t.Errorf("bloom memory %d, want sorted %d + filter %d", bloomStats.MemoryUsageBytes, sorted.MemoryUsageBytes, bloomStats.Bloom.SizeBytes)
	}
}

// TestBloomOptions exercises the sizing and hash overrides.
func TestBloomOptions(t *testing.T) {
	rng := newTestRNG(t)
	entries := generateEntries(rng, 500)
	data := buildImage(t, entries)

	db, err := OpenBytes(data,
		WithStrategy(StrategyBloom),
		WithBloomFilter(517258, 0.01),
		WithBloomHash(BloomHashMurmur3))
	if err != nil {
		t.Fatal(err)
	}
	s := db.Stats().Bloom
	if s.Bits != 4957952 || s.HashCount != 7 || s.Hash != "murmur3" {
		t.Errorf("bloom stats = %+v", s)
	}
	for _, e := range entries {
		if _, err := db.Find(numberFor(rng, e.Prefix)); err != nil {
			t.Fatalf("Find(%07d): %v", e.Prefix, err)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies() {
		got, err := ParseStrategy(s.String())
		if err != nil || got != s {
			t.Errorf("ParseStrategy(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseStrategy("trie"); !errors.Is(err, pderrors.ErrUnknownStrategy) {
		t.Errorf("ParseStrategy(trie) error = %v", err)
	}
}
