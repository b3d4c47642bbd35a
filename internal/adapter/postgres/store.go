// Package postgres stores the station catalog, climatology and county
// directory in PostgreSQL. The schema lives in migrations/.
package postgres

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/couchcryptid/firewhere/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

const (
	selectStations = `
		SELECT id, lat, lon
		FROM stations
		ORDER BY id`

	selectClimatology = `
		SELECT station_id, day_of_year, mean_temp, diurnal_range, precipitation, snowfall
		FROM climatology
		ORDER BY station_id, day_of_year`

	selectCounties = `
		SELECT state, county, lat, lon
		FROM counties
		ORDER BY state, county`
)

// Store reads and writes the dataset tables.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database at url and verifies the connection.
func Open(ctx context.Context, url string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewStore(db), nil
}

// Dial prepares a connection pool without connecting. The first query
// connects, so a database that is still starting surfaces as a load error.
func Dial(url string) (*Store, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewStore(db), nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadCatalog reads the stations and climatology tables. Stations are
// ordered by id, which fixes tie-breaking during nearest-station search.
func (s *Store) LoadCatalog(ctx context.Context) (*domain.Catalog, error) {
	var stations []domain.Station
	if err := s.db.SelectContext(ctx, &stations, selectStations); err != nil {
		return nil, fmt.Errorf("select stations: %w", err)
	}

	var entries []domain.ClimatologyEntry
	if err := s.db.SelectContext(ctx, &entries, selectClimatology); err != nil {
		return nil, fmt.Errorf("select climatology: %w", err)
	}

	catalog, err := domain.NewCatalog(stations, entries)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	return catalog, nil
}

// countyRow is one row of the counties table.
type countyRow struct {
	State  string  `db:"state"`
	County string  `db:"county"`
	Lat    float64 `db:"lat"`
	Lon    float64 `db:"lon"`
}

// LoadDirectory reads the counties table.
func (s *Store) LoadDirectory(ctx context.Context) (*domain.Directory, error) {
	var rows []countyRow
	if err := s.db.SelectContext(ctx, &rows, selectCounties); err != nil {
		return nil, fmt.Errorf("select counties: %w", err)
	}
	return domain.NewDirectory(groupCounties(rows)), nil
}

func groupCounties(rows []countyRow) map[string]map[string]domain.Coordinates {
	out := make(map[string]map[string]domain.Coordinates)
	for _, r := range rows {
		byCounty := out[r.State]
		if byCounty == nil {
			byCounty = make(map[string]domain.Coordinates)
			out[r.State] = byCounty
		}
		byCounty[r.County] = domain.Coordinates{Lat: r.Lat, Lon: r.Lon}
	}
	return out
}

func flattenCounties(dir *domain.Directory) []countyRow {
	var rows []countyRow
	for _, state := range dir.States() {
		counties, _ := dir.Counties(state)
		for _, county := range counties {
			c, _ := dir.County(state, county)
			rows = append(rows, countyRow{State: state, County: county, Lat: c.Lat, Lon: c.Lon})
		}
	}
	return rows
}

// Dataset is a full copy of the three tables.
type Dataset struct {
	Stations    []domain.Station
	Climatology []domain.ClimatologyEntry
	Directory   *domain.Directory
}

// ReplaceResult reports how many rows were written per table.
type ReplaceResult struct {
	Stations    int
	Climatology int
	Counties    int
}

// Replace swaps the contents of all three tables in one transaction.
func (s *Store) Replace(ctx context.Context, ds Dataset) (ReplaceResult, error) {
	var res ReplaceResult

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"climatology", "stations", "counties"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return res, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	stationStmt, err := tx.PreparexContext(ctx, `INSERT INTO stations (id, lat, lon) VALUES ($1, $2, $3)`)
	if err != nil {
		return res, fmt.Errorf("prepare station insert: %w", err)
	}
	defer stationStmt.Close()
	for _, st := range ds.Stations {
		if _, err := stationStmt.ExecContext(ctx, st.ID, st.Lat, st.Lon); err != nil {
			return res, fmt.Errorf("insert station %s: %w", st.ID, err)
		}
		res.Stations++
	}

	entries := append([]domain.ClimatologyEntry(nil), ds.Climatology...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].StationID != entries[j].StationID {
			return entries[i].StationID < entries[j].StationID
		}
		return entries[i].DayOfYear < entries[j].DayOfYear
	})
	climStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO climatology (station_id, day_of_year, mean_temp, diurnal_range, precipitation, snowfall)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return res, fmt.Errorf("prepare climatology insert: %w", err)
	}
	defer climStmt.Close()
	for _, e := range entries {
		if _, err := climStmt.ExecContext(ctx,
			e.StationID, e.DayOfYear,
			e.MeanTemp, e.DiurnalRange, e.Precipitation, e.Snowfall,
		); err != nil {
			return res, fmt.Errorf("insert climatology %s/%d: %w", e.StationID, e.DayOfYear, err)
		}
		res.Climatology++
	}

	if ds.Directory != nil {
		countyStmt, err := tx.PreparexContext(ctx, `INSERT INTO counties (state, county, lat, lon) VALUES ($1, $2, $3, $4)`)
		if err != nil {
			return res, fmt.Errorf("prepare county insert: %w", err)
		}
		defer countyStmt.Close()
		for _, r := range flattenCounties(ds.Directory) {
			if _, err := countyStmt.ExecContext(ctx, r.State, r.County, r.Lat, r.Lon); err != nil {
				return res, fmt.Errorf("insert county %s, %s: %w", r.County, r.State, err)
			}
			res.Counties++
		}
	}

	if err := tx.Commit(); err != nil {
		return ReplaceResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// Migrate executes the SQL script at path, e.g. migrations/001_create_dataset.up.sql.
func (s *Store) Migrate(ctx context.Context, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("run migration %s: %w", path, err)
	}
	return nil
}
