// Command gengazetteer converts a US Census Gazetteer places file into the
// compact places table read by the local geocoding provider.
//
// The Census file is tab separated and carries, among others, the USPS,
// NAME, INTPTLAT and INTPTLONG columns. The output is a CSV with the header
// USPS,name,lat,long and coordinates rounded to four decimals.
//
// Usage:
//
//	go run ./cmd/gengazetteer \
//	  -in 2023_Gaz_place_national.txt \
//	  -out internal/geocode/data/us_places.csv \
//	  -states TX,OK,NM
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var censusColumns = []string{"USPS", "NAME", "INTPTLAT", "INTPTLONG"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "Census Gazetteer places file (tab separated)")
	out := flag.String("out", "", "output path for the places CSV")
	states := flag.String("states", "", "optional comma-separated USPS codes to keep")
	flag.Parse()

	if *in == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -in, -out")
	}

	src, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	counts, err := convert(src, dst, parseStates(*states))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("convert %s: %w", *in, err)
	}

	printStats(counts)
	log.Printf("wrote %s", *out)
	return nil
}

// convert reads Census rows from r and writes the places table to w. Rows
// outside keep (when non-empty) and repeated (state, name) pairs are skipped.
// It returns the number of places written per state.
func convert(r io.Reader, w io.Writer, keep map[string]bool) (map[string]int, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range censusColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"USPS", "name", "lat", "long"}); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		state := strings.ToUpper(get(row, idx, "USPS"))
		name := strings.Join(strings.Fields(get(row, idx, "NAME")), " ")
		if state == "" || name == "" || (len(keep) > 0 && !keep[state]) {
			continue
		}
		key := state + "|" + strings.ToLower(name)
		if seen[key] {
			continue
		}

		lat, err := coordinate(get(row, idx, "INTPTLAT"))
		if err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		lon, err := coordinate(get(row, idx, "INTPTLONG"))
		if err != nil {
			return nil, fmt.Errorf("line %d: long: %w", line, err)
		}

		if err := cw.Write([]string{state, name, lat, lon}); err != nil {
			return nil, err
		}
		seen[key] = true
		counts[state]++
	}

	cw.Flush()
	return counts, cw.Error()
}

func coordinate(raw string) (string, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(f, 'f', 4, 64), nil
}

func parseStates(raw string) map[string]bool {
	keep := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			keep[s] = true
		}
	}
	return keep
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func printStats(counts map[string]int) {
	states := make([]string, 0, len(counts))
	total := 0
	for s, n := range counts {
		states = append(states, s)
		total += n
	}
	sort.Strings(states)
	for _, s := range states {
		log.Printf("%s: %d places", s, counts[s])
	}
	log.Printf("total: %d places in %d states", total, len(states))
}
