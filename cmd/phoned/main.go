// Phoned serves phone-number prefix lookups over HTTP.
//
// Usage:
//
//	phoned -config config.json
//
// Settings come from the config file and PHONE_DATA_* environment variables
// (see internal/config). SIGHUP reloads the database file; SIGINT and
// SIGTERM shut the server down gracefully.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phonedata/phonedata"
	"github.com/phonedata/phonedata/internal/config"
	"github.com/phonedata/phonedata/internal/logger"
	"github.com/phonedata/phonedata/internal/server"
)

func main() {
	configFlag := flag.String("config", "", "path to JSON config file (default: ./config.json if present)")
	flag.Parse()

	if err := run(*configFlag); err != nil {
		fmt.Fprintf(os.Stderr, "phoned: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	lg := logger.New("phoned", cfg.Logging.Level)

	opts, err := cfg.DatabaseOptions()
	if err != nil {
		return err
	}
	start := time.Now()
	db, err := phonedata.Open(cfg.Database.Path, opts...)
	if err != nil {
		return err
	}
	lg.Infof("loaded %s: version %s, %d entries, %s strategy, %d bytes in memory, took %s",
		cfg.Database.Path, db.Version(), db.TotalEntries(), db.Strategy(), db.MemoryUsageBytes(), time.Since(start))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, db, lg)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go srv.ReloadOn(ctx, hup)

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	lg.Infof("stopped")
	return nil
}
