package domain

import (
	"fmt"
	"math"
)

// DaysPerYear is the number of days covered by the climatology table.
const DaysPerYear = 365

// Station is a weather station with WGS-84 coordinates.
type Station struct {
	ID  string  `json:"id" db:"id"`
	Lat float64 `json:"lat" db:"lat"`
	Lon float64 `json:"lon" db:"lon"`
}

// Climatology holds the long-run averages for one station on one day-of-year.
type Climatology struct {
	MeanTemp      float64 `json:"mean_temp" db:"mean_temp"`           // °F
	DiurnalRange  float64 `json:"diurnal_range" db:"diurnal_range"`   // °F
	Precipitation float64 `json:"precipitation" db:"precipitation"`   // mm
	Snowfall      float64 `json:"snowfall" db:"snowfall"`             // mm
}

// ClimatologyEntry is one row of the climatology table.
type ClimatologyEntry struct {
	StationID string `db:"station_id"`
	DayOfYear int    `db:"day_of_year"`
	Climatology
}

// Catalog is the immutable station catalog together with its climatology
// table. It is safe for concurrent reads.
type Catalog struct {
	stations []Station
	index    map[string]int
	days     map[string]map[int]Climatology
}

// NewCatalog validates and indexes the two tables. Station order is kept as
// given and decides ties during nearest-station search.
func NewCatalog(stations []Station, entries []ClimatologyEntry) (*Catalog, error) {
	c := &Catalog{
		stations: make([]Station, 0, len(stations)),
		index:    make(map[string]int, len(stations)),
		days:     make(map[string]map[int]Climatology, len(stations)),
	}

	for _, s := range stations {
		if s.ID == "" {
			return nil, fmt.Errorf("station with empty id at (%g, %g)", s.Lat, s.Lon)
		}
		if !isFinite(s.Lat) || !isFinite(s.Lon) {
			return nil, fmt.Errorf("station %s has invalid coordinates (%g, %g)", s.ID, s.Lat, s.Lon)
		}
		if _, dup := c.index[s.ID]; dup {
			return nil, fmt.Errorf("duplicate station %s", s.ID)
		}
		c.index[s.ID] = len(c.stations)
		c.stations = append(c.stations, s)
	}

	for _, e := range entries {
		if _, ok := c.index[e.StationID]; !ok {
			return nil, fmt.Errorf("climatology references unknown station %s", e.StationID)
		}
		if e.DayOfYear < 1 || e.DayOfYear > DaysPerYear {
			return nil, fmt.Errorf("climatology for station %s has day %d outside 1-%d", e.StationID, e.DayOfYear, DaysPerYear)
		}
		byDay := c.days[e.StationID]
		if byDay == nil {
			byDay = make(map[int]Climatology, DaysPerYear)
			c.days[e.StationID] = byDay
		}
		if _, dup := byDay[e.DayOfYear]; dup {
			return nil, fmt.Errorf("duplicate climatology for station %s day %d", e.StationID, e.DayOfYear)
		}
		byDay[e.DayOfYear] = e.Climatology
	}

	return c, nil
}

// Stations returns a copy of the catalog in load order.
func (c *Catalog) Stations() []Station {
	out := make([]Station, len(c.stations))
	copy(out, c.stations)
	return out
}

// Len returns the number of stations.
func (c *Catalog) Len() int { return len(c.stations) }

// Station looks up a station by id.
func (c *Catalog) Station(id string) (Station, bool) {
	i, ok := c.index[id]
	if !ok {
		return Station{}, false
	}
	return c.stations[i], true
}

// Climatology returns the averages for a station on a day.
func (c *Catalog) Climatology(stationID string, dayOfYear int) (Climatology, error) {
	v, ok := c.days[stationID][dayOfYear]
	if !ok {
		return Climatology{}, &LookupError{StationID: stationID, DayOfYear: dayOfYear}
	}
	return v, nil
}

// MissingDays lists the days in 1..365 with no entry for the station.
func (c *Catalog) MissingDays(stationID string) []int {
	byDay := c.days[stationID]
	var missing []int
	for d := 1; d <= DaysPerYear; d++ {
		if _, ok := byDay[d]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
