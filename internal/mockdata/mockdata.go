// Package mockdata generates a deterministic synthetic dataset: a grid of
// weather stations with seasonal climatology, a county directory and a small
// classifier network. It backs cmd/genmock and tests that need a realistic
// catalog without the real NOAA extracts.
package mockdata

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/firewhere/internal/adapter/file"
	"github.com/couchcryptid/firewhere/internal/adapter/model"
	"github.com/couchcryptid/firewhere/internal/domain"
)

// Options bounds the station grid.
type Options struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	Step           float64 // grid spacing in degrees
	Seed           uint64
}

// DefaultOptions covers Colorado at half-degree spacing.
func DefaultOptions() Options {
	return Options{MinLat: 37, MaxLat: 41, MinLon: -109, MaxLon: -102, Step: 0.5, Seed: 1}
}

// Dataset is everything the service loads at startup.
type Dataset struct {
	Stations    []domain.Station
	Climatology []domain.ClimatologyEntry
	Counties    map[string]map[string]domain.Coordinates
	Model       model.Artifact
}

// Generate builds a dataset. The same options always produce the same output.
func Generate(opts Options) Dataset {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var ds Dataset
	n := 0
	for lat := opts.MinLat; lat <= opts.MaxLat+1e-9; lat += opts.Step {
		for lon := opts.MinLon; lon <= opts.MaxLon+1e-9; lon += opts.Step {
			n++
			s := domain.Station{
				ID:  fmt.Sprintf("USC%08d", n),
				Lat: round(lat, 4),
				Lon: round(lon, 4),
			}
			ds.Stations = append(ds.Stations, s)
			ds.Climatology = append(ds.Climatology, seasonal(s, rng)...)
		}
	}

	ds.Counties = map[string]map[string]domain.Coordinates{}
	for _, c := range coloradoCounties {
		if c.lat < opts.MinLat || c.lat > opts.MaxLat || c.lon < opts.MinLon || c.lon > opts.MaxLon {
			continue
		}
		if ds.Counties["Colorado"] == nil {
			ds.Counties["Colorado"] = map[string]domain.Coordinates{}
		}
		ds.Counties["Colorado"][c.name] = domain.Coordinates{Lat: c.lat, Lon: c.lon}
	}

	ds.Model = classifier(rng, opts)
	return ds
}

// seasonal produces 365 days of smooth annual cycles with a little noise.
// Temperature drops with latitude and with distance west (elevation proxy).
func seasonal(s domain.Station, rng *rand.Rand) []domain.ClimatologyEntry {
	base := 52 - 2.5*(s.Lat-37) + 1.2*(s.Lon+102)
	entries := make([]domain.ClimatologyEntry, 0, domain.DaysPerYear)
	for day := 1; day <= domain.DaysPerYear; day++ {
		phase := 2 * math.Pi * float64(day-105) / domain.DaysPerYear
		temp := base + 22*math.Sin(phase) + rng.NormFloat64()*0.8
		snow := math.Max(0, (32-temp)*0.9+rng.NormFloat64()*0.5)
		entries = append(entries, domain.ClimatologyEntry{
			StationID: s.ID,
			DayOfYear: day,
			Climatology: domain.Climatology{
				MeanTemp:      round(temp, 1),
				DiurnalRange:  round(24+4*math.Sin(phase+0.4)+rng.NormFloat64()*0.6, 1),
				Precipitation: round(math.Max(0, 1.2+0.9*math.Sin(phase-0.6)+rng.NormFloat64()*0.2), 2),
				Snowfall:      round(snow, 1),
			},
		})
	}
	return entries
}

// classifier returns a 8-16-3 softmax network with normalization stats
// matching the generated grid.
func classifier(rng *rand.Rand, opts Options) model.Artifact {
	const hidden = 16
	midLat := (opts.MinLat + opts.MaxLat) / 2
	midLon := (opts.MinLon + opts.MaxLon) / 2
	spanLat := math.Max(opts.MaxLat-opts.MinLat, 1)
	spanLon := math.Max(opts.MaxLon-opts.MinLon, 1)

	norm := &model.Normalizer{
		Mean:     []float64{midLat, midLon, 183, 6, 45, 24, 1.2, 5},
		Variance: []float64{spanLat * spanLat / 12, spanLon * spanLon / 12, 11100, 14, 300, 16, 0.8, 60},
	}

	layer := func(in, out int, activation string) model.Layer {
		w := make([][]float64, in)
		for i := range w {
			w[i] = make([]float64, out)
			for j := range w[i] {
				w[i][j] = round(rng.NormFloat64()/math.Sqrt(float64(in)), 5)
			}
		}
		b := make([]float64, out)
		for j := range b {
			b[j] = round(rng.NormFloat64()*0.1, 5)
		}
		return model.Layer{Weights: w, Bias: b, Activation: activation}
	}

	return model.Artifact{
		Kind:       model.KindClassifier,
		Normalizer: norm,
		Layers: []model.Layer{
			layer(domain.FeatureCount, hidden, "relu"),
			layer(hidden, 3, "softmax"),
		},
	}
}

// ModelFile is the artifact name written next to the dataset.
const ModelFile = "model.json"

// Write stores ds in dir using the file source layout plus model.json.
func Write(dir string, ds Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := writeStations(filepath.Join(dir, file.StationsFile), ds.Stations); err != nil {
		return err
	}

	tables := map[string]func(domain.Climatology) float64{
		file.MeanTempFile:      func(c domain.Climatology) float64 { return c.MeanTemp },
		file.DiurnalRangeFile:  func(c domain.Climatology) float64 { return c.DiurnalRange },
		file.PrecipitationFile: func(c domain.Climatology) float64 { return c.Precipitation },
		file.SnowfallFile:      func(c domain.Climatology) float64 { return c.Snowfall },
	}
	for name, pick := range tables {
		t := map[string]map[string]float64{}
		for _, e := range ds.Climatology {
			if t[e.StationID] == nil {
				t[e.StationID] = map[string]float64{}
			}
			t[e.StationID][strconv.Itoa(e.DayOfYear)+".0"] = pick(e.Climatology)
		}
		if err := writeJSON(filepath.Join(dir, name), t); err != nil {
			return err
		}
	}

	if err := writeJSON(filepath.Join(dir, file.CountiesFile), ds.Counties); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, ModelFile), ds.Model)
}

func writeStations(path string, stations []domain.Station) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{{"id", "lat", "long"}}
	for _, s := range stations {
		rows = append(rows, []string{
			s.ID,
			strconv.FormatFloat(s.Lat, 'f', -1, 64),
			strconv.FormatFloat(s.Lon, 'f', -1, 64),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // dataset files are not secret
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

type county struct {
	name     string
	lat, lon float64
}

var coloradoCounties = []county{
	{"Adams", 39.87, -104.34},
	{"Alamosa", 37.57, -105.79},
	{"Arapahoe", 39.65, -104.34},
	{"Boulder", 40.09, -105.36},
	{"Chaffee", 38.75, -106.19},
	{"Denver", 39.76, -104.88},
	{"Eagle", 39.63, -106.69},
	{"El Paso", 38.83, -104.53},
	{"Garfield", 39.60, -107.90},
	{"Gunnison", 38.67, -107.03},
	{"Jefferson", 39.59, -105.25},
	{"La Plata", 37.29, -107.84},
	{"Larimer", 40.66, -105.46},
	{"Mesa", 39.02, -108.46},
	{"Montezuma", 37.34, -108.60},
	{"Pueblo", 38.17, -104.51},
	{"Routt", 40.48, -106.99},
	{"Weld", 40.55, -104.39},
}
