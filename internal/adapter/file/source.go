// Package file loads the station catalog, climatology and county directory
// from a dataset directory on disk.
//
// Layout:
//
//	stations.csv      id,lat,long
//	tavg.json         {"<station>": {"<day>.0": <mean temp °F>}}
//	diur.json         same shape, diurnal range °F
//	prcp.json         same shape, precipitation mm
//	snow.json         same shape, snowfall mm
//	countyinfo.json   {"<state>": {"<county>": {"Latitude": .., "Longitude": ..}}}
package file

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/firewhere/internal/domain"
)

// Dataset file names.
const (
	StationsFile      = "stations.csv"
	MeanTempFile      = "tavg.json"
	DiurnalRangeFile  = "diur.json"
	PrecipitationFile = "prcp.json"
	SnowfallFile      = "snow.json"
	CountiesFile      = "countyinfo.json"
)

// Source reads a dataset directory.
type Source struct {
	dir    string
	logger *slog.Logger
}

// NewSource creates a Source rooted at dir. A nil logger uses slog.Default.
func NewSource(dir string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{dir: dir, logger: logger}
}

// LoadCatalog reads stations.csv and the four climatology files. Days with
// only some of the four figures are dropped and logged; queries for them
// fail with a LookupError.
func (s *Source) LoadCatalog(_ context.Context) (*domain.Catalog, error) {
	stations, err := LoadStations(filepath.Join(s.dir, StationsFile))
	if err != nil {
		return nil, err
	}
	entries, dropped, err := LoadClimatology(s.dir)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		s.logger.Warn("incomplete climatology days dropped",
			"count", len(dropped),
			"first_station", dropped[0].StationID,
			"first_day", dropped[0].DayOfYear,
		)
	}
	catalog, err := domain.NewCatalog(stations, entries)
	if err != nil {
		return nil, fmt.Errorf("build catalog from %s: %w", s.dir, err)
	}
	return catalog, nil
}

// LoadDirectory reads countyinfo.json. A missing file yields an empty directory.
func (s *Source) LoadDirectory(_ context.Context) (*domain.Directory, error) {
	path := filepath.Join(s.dir, CountiesFile)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewDirectory(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var counties map[string]map[string]domain.Coordinates
	if err := json.NewDecoder(f).Decode(&counties); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return domain.NewDirectory(counties), nil
}

// LoadStations parses a station CSV with an id, lat and long (or lon) header.
// Row order is preserved.
func LoadStations(path string) ([]domain.Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stations, err := ReadStations(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return stations, nil
}

// ReadStations parses station CSV rows from r.
func ReadStations(r io.Reader) ([]domain.Station, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("missing header row")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idCol, okID := colIdx["id"]
	latCol, okLat := colIdx["lat"]
	lonCol, okLon := colIdx["long"]
	if !okLon {
		lonCol, okLon = colIdx["lon"]
	}
	if !okID || !okLat || !okLon {
		return nil, fmt.Errorf("header %v must contain id, lat and long", rows[0])
	}

	stations := make([]domain.Station, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		lat, err := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid lat %q", line, row[latCol])
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(row[lonCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid long %q", line, row[lonCol])
		}
		stations = append(stations, domain.Station{
			ID:  strings.TrimSpace(row[idCol]),
			Lat: lat,
			Lon: lon,
		})
	}
	return stations, nil
}

// climatologyTable is one of the four per-figure JSON files.
type climatologyTable map[string]map[string]*float64

// IncompleteDay is a (station, day) that has some but not all four figures.
type IncompleteDay struct {
	StationID string
	DayOfYear int
}

// LoadClimatology reads and joins the four climatology files in dir. Entries
// are sorted by station and day; see JoinClimatology for dropped days.
func LoadClimatology(dir string) ([]domain.ClimatologyEntry, []IncompleteDay, error) {
	names := []string{MeanTempFile, DiurnalRangeFile, PrecipitationFile, SnowfallFile}
	tables := make([]climatologyTable, len(names))
	for i, name := range names {
		t, err := readTable(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, err
		}
		tables[i] = t
	}
	return JoinClimatology(tables[0], tables[1], tables[2], tables[3])
}

func readTable(path string) (climatologyTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var t climatologyTable
	if err := json.NewDecoder(f).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return t, nil
}

type dayKey struct {
	station string
	day     int
}

// JoinClimatology merges the four figure tables into entries. A (station, day)
// present in some tables but not all is left out and returned in dropped;
// null values count as absent. Both slices are sorted by station and day.
func JoinClimatology(tavg, diur, prcp, snow climatologyTable) (entries []domain.ClimatologyEntry, dropped []IncompleteDay, err error) {
	type partial struct {
		values [4]float64
		seen   [4]bool
	}
	joined := map[dayKey]*partial{}

	for i, t := range []climatologyTable{tavg, diur, prcp, snow} {
		for station, byDay := range t {
			for rawDay, v := range byDay {
				if v == nil {
					continue
				}
				day, err := parseDayKey(rawDay)
				if err != nil {
					return nil, nil, fmt.Errorf("station %s: %w", station, err)
				}
				k := dayKey{station: station, day: day}
				p := joined[k]
				if p == nil {
					p = &partial{}
					joined[k] = p
				}
				p.values[i] = *v
				p.seen[i] = true
			}
		}
	}

	entries = make([]domain.ClimatologyEntry, 0, len(joined))
	for k, p := range joined {
		if p.seen != [4]bool{true, true, true, true} {
			dropped = append(dropped, IncompleteDay{StationID: k.station, DayOfYear: k.day})
			continue
		}
		entries = append(entries, domain.ClimatologyEntry{
			StationID: k.station,
			DayOfYear: k.day,
			Climatology: domain.Climatology{
				MeanTemp:      p.values[0],
				DiurnalRange:  p.values[1],
				Precipitation: p.values[2],
				Snowfall:      p.values[3],
			},
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StationID != entries[j].StationID {
			return entries[i].StationID < entries[j].StationID
		}
		return entries[i].DayOfYear < entries[j].DayOfYear
	})
	sort.Slice(dropped, func(i, j int) bool {
		if dropped[i].StationID != dropped[j].StationID {
			return dropped[i].StationID < dropped[j].StationID
		}
		return dropped[i].DayOfYear < dropped[j].DayOfYear
	})
	return entries, dropped, nil
}

// parseDayKey accepts "100", "100.0" and similar integral float spellings.
func parseDayKey(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid day key %q", s)
	}
	return int(f), nil
}
