// Command validate performs data integrity checks on a dataset directory
// before it is served or ingested: the station table, the climatology
// tables, the county directory and optionally the size model. It verifies
// referential integrity, full-year coverage, value sanity and that every
// station and county resolves the way the service will resolve it.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data -model data/model.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/firewhere/internal/adapter/file"
	"github.com/couchcryptid/firewhere/internal/adapter/model"
	"github.com/couchcryptid/firewhere/internal/domain"
)

// maxListed caps the missing days printed per station.
const maxListed = 5

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	errors  []string
	skipped bool
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// dataset is the raw content of a data directory.
type dataset struct {
	stations    []domain.Station
	climatology []domain.ClimatologyEntry
	incomplete  []file.IncompleteDay
	directory   *domain.Directory
}

func main() {
	dataDir := flag.String("data-dir", "", "directory containing stations.csv and the climatology JSON tables")
	modelPath := flag.String("model", "", "optional path or URL of the model artifact to check")
	threshold := flag.Float64("threshold", domain.DefaultCoverageThreshold, "coverage threshold in degrees")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataDir, *modelPath, *threshold); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, modelPath string, threshold float64) int {
	fmt.Println("=== Fire Size Dataset Validation ===")
	fmt.Println()

	ds, err := loadDataset(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	stationsPhase := validateStations(ds.stations)
	refsPhase := validateReferences(ds.stations, ds.climatology)
	phases := []*phase{stationsPhase, refsPhase, validateCompleteness(ds.incomplete), validateValues(ds.climatology)}

	var catalog *domain.Catalog
	if stationsPhase.passed() && refsPhase.passed() {
		catalog, err = domain.NewCatalog(ds.stations, ds.climatology)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: build catalog: %v\n", err)
			return 1
		}
	}
	phases = append(phases,
		validateCoverage(catalog),
		validateSelfResolution(catalog, threshold),
		validateDirectory(catalog, ds.directory, threshold),
	)
	if modelPath != "" {
		phases = append(phases, validateModel(catalog, modelPath))
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped:
			status = "\033[33mSKIP\033[0m"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d stations, %d climatology rows, %d states\n",
		len(ds.stations), len(ds.climatology), len(ds.directory.States()))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadDataset(dir string) (dataset, error) {
	stations, err := file.LoadStations(filepath.Join(dir, file.StationsFile))
	if err != nil {
		return dataset{}, fmt.Errorf("load stations: %w", err)
	}
	climatology, incomplete, err := file.LoadClimatology(dir)
	if err != nil {
		return dataset{}, fmt.Errorf("load climatology: %w", err)
	}
	directory, err := file.NewSource(dir, nil).LoadDirectory(context.Background())
	if err != nil {
		return dataset{}, fmt.Errorf("load county directory: %w", err)
	}
	return dataset{stations: stations, climatology: climatology, incomplete: incomplete, directory: directory}, nil
}

// ── Phase 1: station table ──

func validateStations(stations []domain.Station) *phase {
	p := &phase{name: "Station table"}
	if len(stations) == 0 {
		p.errorf("no stations")
		return p
	}

	seen := make(map[string]int, len(stations))
	for i, s := range stations {
		if s.ID == "" {
			p.errorf("row %d: empty station id", i+1)
			continue
		}
		if prev, dup := seen[s.ID]; dup {
			p.errorf("station %s: duplicate of row %d at row %d", s.ID, prev, i+1)
		}
		seen[s.ID] = i + 1
		if math.IsNaN(s.Lat) || s.Lat < -90 || s.Lat > 90 {
			p.errorf("station %s: latitude %g out of range", s.ID, s.Lat)
		}
		if math.IsNaN(s.Lon) || s.Lon < -180 || s.Lon > 180 {
			p.errorf("station %s: longitude %g out of range", s.ID, s.Lon)
		}
	}
	return p
}

// ── Phase 2: referential integrity ──

func validateReferences(stations []domain.Station, entries []domain.ClimatologyEntry) *phase {
	p := &phase{name: "Climatology references"}

	known := make(map[string]bool, len(stations))
	for _, s := range stations {
		known[s.ID] = true
	}

	orphans := map[string]int{}
	seen := map[string]map[int]bool{}
	for _, e := range entries {
		if !known[e.StationID] {
			orphans[e.StationID]++
			continue
		}
		if e.DayOfYear < 1 || e.DayOfYear > domain.DaysPerYear {
			p.errorf("station %s: day %d outside 1-%d", e.StationID, e.DayOfYear, domain.DaysPerYear)
			continue
		}
		if seen[e.StationID] == nil {
			seen[e.StationID] = map[int]bool{}
		}
		if seen[e.StationID][e.DayOfYear] {
			p.errorf("station %s: duplicate day %d", e.StationID, e.DayOfYear)
		}
		seen[e.StationID][e.DayOfYear] = true
	}

	for _, id := range sortedKeys(orphans) {
		p.errorf("climatology references unknown station %s (%d rows)", id, orphans[id])
	}
	return p
}

// ── Phase 3: per-day completeness ──

// validateCompleteness reports days where one of the four tables had no
// value. The service drops them at load and answers those days with a
// lookup error.
func validateCompleteness(incomplete []file.IncompleteDay) *phase {
	p := &phase{name: "Climatology completeness"}
	for _, d := range incomplete {
		p.errorf("station %s: day %d missing from at least one table", d.StationID, d.DayOfYear)
	}
	return p
}

// ── Phase 4: value sanity ──

func validateValues(entries []domain.ClimatologyEntry) *phase {
	p := &phase{name: "Climatology values"}
	for _, e := range entries {
		c := e.Climatology
		for name, v := range map[string]float64{
			"mean_temp":     c.MeanTemp,
			"diurnal_range": c.DiurnalRange,
			"precipitation": c.Precipitation,
			"snowfall":      c.Snowfall,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				p.errorf("station %s day %d: %s is not finite", e.StationID, e.DayOfYear, name)
			}
		}
		if c.DiurnalRange < 0 || c.Precipitation < 0 || c.Snowfall < 0 {
			p.errorf("station %s day %d: negative range or precipitation (%g, %g, %g)",
				e.StationID, e.DayOfYear, c.DiurnalRange, c.Precipitation, c.Snowfall)
		}
	}
	return p
}

// ── Phase 5: full-year coverage ──

func validateCoverage(catalog *domain.Catalog) *phase {
	p := &phase{name: "Climatology coverage (365 days)"}
	if catalog == nil {
		p.skipped = true
		return p
	}
	for _, s := range catalog.Stations() {
		missing := catalog.MissingDays(s.ID)
		if len(missing) == 0 {
			continue
		}
		p.errorf("station %s: %d days missing, first %v", s.ID, len(missing), missing[:min(maxListed, len(missing))])
	}
	return p
}

// ── Phase 6: nearest-station search ──

// validateSelfResolution checks that querying a station's own coordinates
// returns that station, or an earlier one at the same position.
func validateSelfResolution(catalog *domain.Catalog, threshold float64) *phase {
	p := &phase{name: "Nearest-station self resolution"}
	if catalog == nil {
		p.skipped = true
		return p
	}
	resolver := domain.NewResolver(catalog, threshold)
	for _, s := range catalog.Stations() {
		w, err := resolver.Resolve(domain.Query{Lat: s.Lat, Lon: s.Lon, DayOfYear: 1})
		var lookup *domain.LookupError
		switch {
		case errors.As(err, &lookup):
			// Reported by the coverage phase.
		case err != nil:
			p.errorf("station %s: %v", s.ID, err)
		case w.Station.ID != s.ID && w.Distance != 0:
			p.errorf("station %s resolved to %s at %.4f degrees", s.ID, w.Station.ID, w.Distance)
		}
	}
	return p
}

// ── Phase 7: county directory ──

func validateDirectory(catalog *domain.Catalog, dir *domain.Directory, threshold float64) *phase {
	p := &phase{name: "County directory coverage"}
	if catalog == nil || len(dir.States()) == 0 {
		p.skipped = true
		return p
	}
	for _, state := range dir.States() {
		counties, err := dir.Counties(state)
		if err != nil {
			p.errorf("%s: %v", state, err)
			continue
		}
		for _, county := range counties {
			c, err := dir.County(state, county)
			if err != nil {
				p.errorf("%s/%s: %v", state, county, err)
				continue
			}
			if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
				p.errorf("%s/%s: coordinates (%g, %g) out of range", state, county, c.Lat, c.Lon)
				continue
			}
			if d := nearestDistance(catalog, c); d > threshold {
				p.errorf("%s/%s: nearest station %.2f degrees away, threshold %.2f", state, county, d, threshold)
			}
		}
	}
	return p
}

func nearestDistance(catalog *domain.Catalog, c domain.Coordinates) float64 {
	best := math.Inf(1)
	for _, s := range catalog.Stations() {
		best = math.Min(best, domain.Distance(c.Lat, c.Lon, s.Lat, s.Lon))
	}
	return best
}

// ── Phase 8: model artifact ──

// validateModel loads the artifact and runs it once per cause at the first
// station on day 1.
func validateModel(catalog *domain.Catalog, src string) *phase {
	p := &phase{name: "Model artifact"}
	ctx := context.Background()

	network, err := model.Load(ctx, src, nil)
	if err != nil {
		p.errorf("load: %v", err)
		return p
	}
	if catalog == nil || catalog.Len() == 0 {
		return p
	}

	s := catalog.Stations()[0]
	clim, err := catalog.Climatology(s.ID, 1)
	if err != nil {
		p.errorf("sample input: %v", err)
		return p
	}
	q := domain.Query{Lat: s.Lat, Lon: s.Lon, DayOfYear: 1}
	for _, cause := range domain.Causes {
		if _, err := network.Predict(ctx, domain.NewFeatureVector(q, cause, clim)); err != nil {
			p.errorf("cause %q: %v", cause.Name, err)
		}
	}
	return p
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
