// Bench measures phonedata open time, memory usage and lookup latency for
// every lookup strategy, with and without the result cache.
//
// Usage:
//
//	go run ./cmd/bench -entries 517258 -queries 1000000
//
// Flags:
//
//	-db        Existing database file to benchmark (default: generate one)
//	-entries   Number of prefixes in the generated database (default: 517,258)
//	-queries   Number of timed lookups per configuration (default: 1,000,000)
//	-miss      Fraction of lookups for absent prefixes (default: 0.1)
//	-cache     Result cache size for the cached runs, 0 to skip them (default: 10,000)
//	-workers   Goroutines used to build the hash strategy's table (default: 4)
package main

import (
	"context"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/phonedata/phonedata"
)

// getMaxRSS returns the maximum resident set size in bytes.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

type result struct {
	strategy  phonedata.StrategyID
	cached    bool
	open      time.Duration
	memory    int
	heapDelta uint64
	latency   float64 // μs per lookup
	found     int
	hitRatio  float64
}

func main() {
	dbFlag := flag.String("db", "", "existing database file (default: generate one)")
	entriesFlag := flag.Int("entries", 517_258, "number of prefixes to generate")
	queriesFlag := flag.Int("queries", 1_000_000, "timed lookups per configuration")
	missFlag := flag.Float64("miss", 0.1, "fraction of lookups for absent prefixes")
	cacheFlag := flag.Int("cache", 10_000, "result cache size for cached runs (0 = skip)")
	workersFlag := flag.Int("workers", 4, "hash table build workers")
	flag.Parse()

	path := *dbFlag
	if path == "" {
		tmpDir, err := os.MkdirTemp("", "phonedata-bench-")
		if err != nil {
			fmt.Printf("Failed to create temp dir: %v\n", err)
			return
		}
		defer func() { _ = os.RemoveAll(tmpDir) }()
		path = filepath.Join(tmpDir, "phone.dat")

		fmt.Printf("Generating %d prefixes...\n", *entriesFlag)
		buildStart := time.Now()
		if err := generate(path, *entriesFlag); err != nil {
			fmt.Printf("Generate failed: %v\n", err)
			return
		}
		fmt.Printf("Built %s in %.2fs\n", path, time.Since(buildStart).Seconds())
	}

	// Collect the indexed prefixes once so every configuration runs the
	// same query sequence.
	probe, err := phonedata.Open(path)
	if err != nil {
		fmt.Printf("Open failed: %v\n", err)
		return
	}
	numbers := queryNumbers(probe, path, *queriesFlag, *missFlag)
	if numbers == nil {
		return
	}

	var results []result
	for _, s := range phonedata.Strategies() {
		for _, cached := range []bool{false, true} {
			if cached && *cacheFlag <= 0 {
				continue
			}
			opts := []phonedata.Option{phonedata.WithStrategy(s), phonedata.WithBuildWorkers(*workersFlag)}
			if cached {
				opts = append(opts, phonedata.WithCache(*cacheFlag))
			}
			r, err := run(path, numbers, opts)
			if err != nil {
				fmt.Printf("%s: %v\n", s, err)
				return
			}
			r.strategy, r.cached = s, cached
			results = append(results, r)
		}
	}

	fmt.Printf("\n")
	fmt.Printf("Database: %s  version %s  %d entries  digest %016x\n",
		path, probe.Version(), probe.TotalEntries(), probe.Digest())
	fmt.Printf("╔═══════════╦════════╦════════════╦════════════╦═════════════╦══════════╦═══════════╗\n")
	fmt.Printf("║ Strategy  ║ Cache  ║ Open       ║ Memory     ║ Heap delta  ║ Latency  ║ Cache hit ║\n")
	fmt.Printf("╠═══════════╬════════╬════════════╬════════════╬═════════════╬══════════╬═══════════╣\n")
	for _, r := range results {
		cache, hit := "off", "-"
		if r.cached {
			cache = "on"
			hit = fmt.Sprintf("%6.1f%%", r.hitRatio*100)
		}
		fmt.Printf("║ %-9s ║ %-6s ║ %7.1f ms ║ %7.1f MB ║ %8.1f MB ║ %5.3f μs ║ %9s ║\n",
			r.strategy, cache, float64(r.open.Microseconds())/1000,
			float64(r.memory)/1_000_000, float64(r.heapDelta)/1_000_000, r.latency, hit)
	}
	fmt.Printf("╚═══════════╩════════╩════════════╩════════════╩═════════════╩══════════╩═══════════╝\n")
	fmt.Printf("Queries per configuration: %d (%.0f%% absent), found: %d\n",
		len(numbers), *missFlag*100, results[0].found)
}

// run opens the database with opts, warms up, and times lookups.
func run(path string, numbers []string, opts []phonedata.Option) (result, error) {
	runtime.GC()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	openStart := time.Now()
	db, err := phonedata.Open(path, opts...)
	if err != nil {
		return result{}, err
	}
	openDuration := time.Since(openStart)

	runtime.GC()
	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	var heapDelta uint64
	if after.HeapAlloc > before.HeapAlloc {
		heapDelta = after.HeapAlloc - before.HeapAlloc
	}

	for i := 0; i < 10000 && i < len(numbers); i++ {
		_, _ = db.Find(numbers[i]) // warm-up
	}

	found := 0
	queryStart := time.Now()
	for _, n := range numbers {
		if _, err := db.Find(n); err == nil {
			found++
		}
	}
	queryDuration := time.Since(queryStart)

	r := result{
		open:      openDuration,
		memory:    db.MemoryUsageBytes(),
		heapDelta: heapDelta,
		latency:   float64(queryDuration.Nanoseconds()) / float64(len(numbers)) / 1000,
		found:     found,
	}
	if cs, ok := db.CacheStats(); ok {
		r.hitRatio = cs.HitRatio
	}
	return r, nil
}

// generate writes a synthetic database of n prefixes drawn from the mobile
// ranges 130xxxx-199xxxx.
func generate(path string, n int) error {
	if n <= 0 || n > 700_000 {
		return fmt.Errorf("entries must be in [1, 700000], got %d", n)
	}
	b, err := phonedata.NewBuilder(context.Background(), path, "v001")
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	regions := make([]phonedata.Region, 400)
	for i := range regions {
		regions[i] = phonedata.Region{
			Province: fmt.Sprintf("Province%02d", i%34),
			City:     fmt.Sprintf("City%03d", i),
			ZipCode:  fmt.Sprintf("%06d", 100000+i*2011),
			AreaCode: fmt.Sprintf("0%03d", 10+i),
		}
	}

	perm := mrand.Perm(700_000)
	carriers := phonedata.Carriers()
	for _, p := range perm[:n] {
		prefix := int32(1_300_000 + p)
		region := regions[mrand.IntN(len(regions))]
		if err := b.Add(prefix, region, carriers[mrand.IntN(len(carriers))]); err != nil {
			return err
		}
	}
	return b.Finish()
}

// queryNumbers builds a shuffled list of 11 digit numbers, a miss fraction
// of which fall outside every indexed prefix.
func queryNumbers(db *phonedata.Database, path string, count int, miss float64) []string {
	hits := make([]string, 0, 1<<16)
	for p := int32(1_300_000); p < 2_000_000 && len(hits) < cap(hits); p++ {
		n := fmt.Sprintf("%07d%04d", p, mrand.IntN(10000))
		if _, err := db.Find(n); err == nil {
			hits = append(hits, n)
		}
	}
	if len(hits) == 0 {
		fmt.Printf("No indexed prefixes found in 130xxxx-199xxxx in %s\n", path)
		return nil
	}

	numbers := make([]string, count)
	for i := range numbers {
		if mrand.Float64() < miss {
			// 100xxxx-129xxxx is never generated.
			numbers[i] = fmt.Sprintf("%07d%04d", 1_000_000+mrand.IntN(300_000), mrand.IntN(10000))
			continue
		}
		numbers[i] = hits[mrand.IntN(len(hits))]
	}
	return numbers
}
