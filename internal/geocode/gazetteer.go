package geocode

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

//go:embed data/us_places.csv
var embeddedPlaces []byte

//go:embed data/zips.csv
var embeddedZIPs []byte

// placeSuffixes are Census place-type descriptors stripped from names before
// matching. Longer descriptors come first.
var placeSuffixes = []string{
	" metropolitan government",
	" metro government",
	" city and borough",
	" urban county",
	" municipality",
	" borough",
	" village",
	" city",
	" town",
	" cdp",
}

type place struct {
	state  string
	key    string
	coords domain.Coordinates
}

// Gazetteer is an offline domain.Geocoder backed by a US places table
// (USPS,name,lat,long) and a ZIP table (zip,lat,long).
type Gazetteer struct {
	places  []place
	byState map[string][]place
	zips    map[string]domain.Coordinates
	cutoff  int
	metrics *observability.Metrics
}

// LoadGazetteer reads the places table from path, or the embedded table when
// path is empty. The ZIP table is always the embedded one.
func LoadGazetteer(path string, cutoff int, metrics *observability.Metrics) (*Gazetteer, error) {
	var places io.Reader = bytes.NewReader(embeddedPlaces)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open places table: %w", err)
		}
		defer f.Close()
		places = f
	}
	return NewGazetteer(places, bytes.NewReader(embeddedZIPs), cutoff, metrics)
}

// NewGazetteer parses a places table and an optional ZIP table. cutoff is the
// minimum fuzzy score; zero or less means DefaultFuzzyCutoff.
func NewGazetteer(places, zips io.Reader, cutoff int, metrics *observability.Metrics) (*Gazetteer, error) {
	if cutoff <= 0 {
		cutoff = DefaultFuzzyCutoff
	}
	g := &Gazetteer{
		byState: make(map[string][]place),
		zips:    make(map[string]domain.Coordinates),
		cutoff:  cutoff,
		metrics: metrics,
	}

	err := readTable(places, []string{"USPS", "name", "lat", "long"}, func(row []string) error {
		coords, err := parseCoords(row[2], row[3])
		if err != nil {
			return err
		}
		p := place{
			state:  strings.ToUpper(strings.TrimSpace(row[0])),
			key:    placeKey(row[1]),
			coords: coords,
		}
		g.places = append(g.places, p)
		g.byState[p.state] = append(g.byState[p.state], p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read places table: %w", err)
	}

	if zips != nil {
		err = readTable(zips, []string{"zip", "lat", "long"}, func(row []string) error {
			coords, err := parseCoords(row[1], row[2])
			if err != nil {
				return err
			}
			g.zips[strings.TrimSpace(row[0])] = coords
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read zip table: %w", err)
		}
	}
	return g, nil
}

// Name identifies the provider.
func (g *Gazetteer) Name() string { return "gazetteer" }

// Len returns the number of places loaded.
func (g *Gazetteer) Len() int { return len(g.places) }

// Names returns the distinct normalized place names, in table order.
func (g *Gazetteer) Names() []string {
	seen := make(map[string]bool, len(g.places))
	names := make([]string, 0, len(g.places))
	for _, p := range g.places {
		if !seen[p.key] {
			seen[p.key] = true
			names = append(names, p.key)
		}
	}
	return names
}

// ForwardGeocode matches name within state's places, or all places when no
// state is given or the state has none. Matching tries an exact name, then
// the shortest name containing the query, then the best fuzzy match.
func (g *Gazetteer) ForwardGeocode(_ context.Context, name, state string) (domain.GeocodingResult, error) {
	start := time.Now()
	result := g.lookup(name, strings.ToUpper(strings.TrimSpace(state)))
	outcome := "success"
	if !result.Found() {
		outcome = "empty"
	}
	g.metrics.ObserveUpstream(g.Name(), outcome, time.Since(start).Seconds())
	return result, nil
}

func (g *Gazetteer) lookup(name, state string) domain.GeocodingResult {
	name = strings.TrimSpace(name)
	if IsZIP(name) {
		if c, ok := g.zips[name]; ok {
			return domain.GeocodingResult{Lat: c.Lat, Lon: c.Lon, FormattedAddress: name, PlaceName: name, Confidence: 1}
		}
		return domain.GeocodingResult{}
	}

	query := placeKey(name)
	if query == "" {
		return domain.GeocodingResult{}
	}
	var (
		p          place
		confidence float64
		ok         bool
	)
	if subset := g.byState[state]; len(subset) > 0 {
		p, confidence, ok = match(subset, query, g.cutoff)
	}
	if !ok {
		p, confidence, ok = match(g.places, query, g.cutoff)
	}
	if !ok {
		return domain.GeocodingResult{}
	}
	return domain.GeocodingResult{
		Lat:              p.coords.Lat,
		Lon:              p.coords.Lon,
		FormattedAddress: titleCase(p.key) + ", " + p.state,
		PlaceName:        titleCase(p.key),
		Confidence:       confidence,
	}
}

func match(candidates []place, query string, cutoff int) (place, float64, bool) {
	for _, p := range candidates {
		if p.key == query {
			return p, 1, true
		}
	}

	if len(query) >= 3 {
		var best *place
		for i := range candidates {
			p := &candidates[i]
			if strings.Contains(p.key, query) && (best == nil || len(p.key) < len(best.key)) {
				best = p
			}
		}
		if best != nil {
			return *best, float64(len(query)) / float64(len(best.key)), true
		}
	}

	bestScore := -1
	var best place
	for _, p := range candidates {
		if s := similarity(query, p.key); s > bestScore {
			bestScore, best = s, p
		}
	}
	if bestScore >= cutoff {
		return best, float64(bestScore) / 100, true
	}
	return place{}, 0, false
}

// placeKey lowercases a place name, collapses whitespace, and strips Census
// place-type descriptors.
func placeKey(name string) string {
	k := strings.ToLower(strings.Join(strings.Fields(name), " "))
	k = strings.TrimSuffix(k, " (balance)")
	for _, suffix := range placeSuffixes {
		if trimmed, ok := strings.CutSuffix(k, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return k
}

func readTable(r io.Reader, columns []string, fn func(row []string) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	positions := make([]int, len(columns))
	for i, c := range columns {
		pos, ok := index[c]
		if !ok {
			return fmt.Errorf("missing column %q", c)
		}
		positions[i] = pos
	}

	row := make([]string, len(columns))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		for i, pos := range positions {
			row[i] = rec[pos]
		}
		if err := fn(row); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func parseCoords(lat, lon string) (domain.Coordinates, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("parse lat %q: %w", lat, err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("parse long %q: %w", lon, err)
	}
	return domain.Coordinates{Lat: la, Lon: lo}, nil
}
