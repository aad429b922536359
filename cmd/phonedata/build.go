package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/phonedata/phonedata"
)

// build reads a records file and writes a database to output.
func build(ctx context.Context, lg *log.Logger, output, from, version string) error {
	f, err := os.Open(from)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := phonedata.NewBuilder(ctx, output, version)
	if err != nil {
		return err
	}
	defer b.Close()

	start := time.Now()
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prefix, region, carrier, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", from, lineNo, err)
		}
		if err := b.Add(prefix, region, carrier); err != nil {
			return fmt.Errorf("%s:%d: %w", from, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", from, err)
	}

	n := b.Len()
	if err := b.Finish(); err != nil {
		return err
	}
	lg.Infof("built %s: %d entries from %s in %s", output, n, from, time.Since(start))
	return nil
}

// parseLine splits "prefix|province|city|zip|area|carrier".
func parseLine(line string) (int32, phonedata.Region, phonedata.Carrier, error) {
	fields := strings.Split(line, "|")
	if len(fields) != 6 {
		return 0, phonedata.Region{}, 0, fmt.Errorf("want 6 '|'-separated fields, got %d", len(fields))
	}

	prefix, err := phonedata.PrefixOf(fields[0])
	if err != nil {
		return 0, phonedata.Region{}, 0, fmt.Errorf("prefix %q: %w", fields[0], err)
	}
	c, err := strconv.ParseUint(fields[5], 10, 8)
	if err != nil {
		return 0, phonedata.Region{}, 0, fmt.Errorf("carrier %q: %w", fields[5], err)
	}

	region := phonedata.Region{
		Province: fields[1],
		City:     fields[2],
		ZipCode:  fields[3],
		AreaCode: fields[4],
	}
	return prefix, region, phonedata.Carrier(c), nil
}
