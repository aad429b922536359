package phonedata

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"path/filepath"
	"testing"
)

// newTestRNG returns a deterministic RNG seeded from the test name.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:])))
}

var shenzhen = Region{Province: "Guangdong", City: "Shenzhen", ZipCode: "518000", AreaCode: "0755"}

// singleRecordImage is the canonical one-record database: "v001", one
// record for Shenzhen and one entry for prefix 1808683 with the given
// carrier byte. It is assembled by hand so tests do not depend on Builder.
func singleRecordImage(carrier byte) []byte {
	record := "Guangdong|Shenzhen|518000|0755\x00"
	indexOffset := headerSize + len(record)

	buf := make([]byte, indexOffset+indexEntrySize)
	copy(buf[0:4], "v001")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(indexOffset))
	copy(buf[headerSize:], record)
	binary.LittleEndian.PutUint32(buf[indexOffset:], 1808683)
	binary.LittleEndian.PutUint32(buf[indexOffset+4:], headerSize)
	buf[indexOffset+8] = carrier
	return buf
}

// testEntry is one row of a synthetic database.
type testEntry struct {
	Prefix  int32
	Region  Region
	Carrier Carrier
}

// generateEntries creates n entries with unique prefixes in [1300000, 1999999]
// spread over a small pool of regions, as in real data.
func generateEntries(rng *rand.Rand, n int) []testEntry {
	regions := make([]Region, 40)
	for i := range regions {
		regions[i] = Region{
			Province: fmt.Sprintf("Province%02d", i/4),
			City:     fmt.Sprintf("City%02d", i),
			ZipCode:  fmt.Sprintf("%06d", 100000+i*1111),
			AreaCode: fmt.Sprintf("0%03d", 10+i),
		}
	}

	seen := make(map[int32]bool, n)
	entries := make([]testEntry, 0, n)
	for len(entries) < n {
		p := 1300000 + rng.Int32N(700000)
		if seen[p] {
			continue
		}
		seen[p] = true
		entries = append(entries, testEntry{
			Prefix:  p,
			Region:  regions[rng.IntN(len(regions))],
			Carrier: Carrier(1 + rng.IntN(8)),
		})
	}
	return entries
}

// buildImage encodes entries with Builder.
func buildImage(t testing.TB, entries []testEntry) []byte {
	t.Helper()
	b, err := NewBuilder(context.Background(), "", "v002")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	defer b.Close()
	for _, e := range entries {
		if err := b.Add(e.Prefix, e.Region, e.Carrier); err != nil {
			t.Fatalf("Add(%d): %v", e.Prefix, err)
		}
	}
	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

// buildFile writes entries to a database file in a temp dir and returns its path.
func buildFile(t testing.TB, entries []testEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phone.dat")
	b, err := NewBuilder(context.Background(), path, "v002")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	defer b.Close()
	for _, e := range entries {
		if err := b.Add(e.Prefix, e.Region, e.Carrier); err != nil {
			t.Fatalf("Add(%d): %v", e.Prefix, err)
		}
	}
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return path
}

// numberFor returns an 11 digit number starting with prefix.
func numberFor(rng *rand.Rand, prefix int32) string {
	return fmt.Sprintf("%07d%04d", prefix, rng.IntN(10000))
}

// openAll opens data once per strategy.
func openAll(t testing.TB, data []byte, opts ...Option) map[StrategyID]*Database {
	t.Helper()
	dbs := make(map[StrategyID]*Database)
	for _, s := range Strategies() {
		db, err := OpenBytes(data, append([]Option{WithStrategy(s)}, opts...)...)
		if err != nil {
			t.Fatalf("OpenBytes(%s): %v", s, err)
		}
		dbs[s] = db
	}
	return dbs
}
