// Phonedata looks up phone numbers in a database file, or builds one.
//
// Usage:
//
//	phonedata [-db phone.dat] [-strategy sorted] [-cache N] [-stats] number...
//	phonedata -build out.dat -from records.txt [-version v001]
//
// Lookups print one JSON object per number to stdout. With no numbers on the
// command line, numbers are read from stdin, one per line.
//
// The records file for -build holds one entry per line:
//
//	prefix|province|city|zip|area|carrier
//
// Blank lines and lines starting with '#' are skipped.
//
// Flags:
//
//	-config    JSON config file (default: ./config.json if present)
//	-db        Database file, overrides database.path
//	-strategy  sorted, hash or bloom, overrides database.strategy
//	-cache     Result cache size, 0 disables it, -1 keeps the config value
//	-stats     Print database statistics after the lookups
//	-build     Output path of a database to build
//	-from      Records file to build from
//	-version   Version tag written into the built database
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/phonedata/phonedata"
	"github.com/phonedata/phonedata/internal/config"
	"github.com/phonedata/phonedata/internal/logger"
)

type lookupLine struct {
	Number string                 `json:"number"`
	Record *phonedata.PhoneRecord `json:"record,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func main() {
	configFlag := flag.String("config", "", "JSON config file (default: ./config.json if present)")
	dbFlag := flag.String("db", "", "database file (overrides database.path)")
	strategyFlag := flag.String("strategy", "", "lookup strategy: sorted, hash or bloom")
	cacheFlag := flag.Int("cache", -1, "result cache size, 0 disables, -1 keeps config value")
	statsFlag := flag.Bool("stats", false, "print database statistics")
	buildFlag := flag.String("build", "", "build a database at this path")
	fromFlag := flag.String("from", "", "records file to build from")
	versionFlag := flag.String("version", "v001", "version tag of the built database")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "phonedata: %v\n", err)
		os.Exit(1)
	}
	lg := logger.New("phonedata", cfg.Logging.Level)
	lg.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *buildFlag != "" {
		if *fromFlag == "" {
			lg.Fatal("-build requires -from")
		}
		if err := build(ctx, lg, *buildFlag, *fromFlag, *versionFlag); err != nil {
			lg.Fatalf("build %s: %v", *buildFlag, err)
		}
		return
	}

	if *dbFlag != "" {
		cfg.Database.Path = *dbFlag
	}
	if *strategyFlag != "" {
		cfg.Database.Strategy = *strategyFlag
	}
	switch {
	case *cacheFlag == 0:
		cfg.Cache.Enabled = false
	case *cacheFlag > 0:
		cfg.Cache.Enabled = true
		cfg.Cache.MaxSize = *cacheFlag
	}
	if err := cfg.Validate(); err != nil {
		lg.Fatal(err)
	}

	if err := lookup(lg, cfg, flag.Args(), os.Stdin, os.Stdout, *statsFlag); err != nil {
		lg.Fatal(err)
	}
}

func lookup(lg *log.Logger, cfg *config.Config, numbers []string, in io.Reader, out io.Writer, stats bool) error {
	opts, err := cfg.DatabaseOptions()
	if err != nil {
		return err
	}
	db, err := phonedata.Open(cfg.Database.Path, opts...)
	if err != nil {
		return err
	}
	lg.Debugf("opened %s: version %s, %d entries, %s strategy",
		cfg.Database.Path, db.Version(), db.TotalEntries(), db.Strategy())

	enc := json.NewEncoder(out)
	emit := func(number string) error {
		line := lookupLine{Number: number}
		rec, err := db.Find(number)
		if err != nil {
			line.Error = err.Error()
		} else {
			line.Record = &rec
		}
		return enc.Encode(line)
	}

	if len(numbers) > 0 {
		for _, n := range numbers {
			if err := emit(n); err != nil {
				return err
			}
		}
	} else {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			n := strings.TrimSpace(sc.Text())
			if n == "" {
				continue
			}
			if err := emit(n); err != nil {
				return err
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read numbers: %w", err)
		}
	}

	if stats {
		return enc.Encode(db.Stats())
	}
	return nil
}
