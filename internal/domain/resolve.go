package domain

import (
	"math"
	"strconv"
)

// DefaultCoverageThreshold is the maximum distance, in degrees, between a
// query point and its nearest station.
const DefaultCoverageThreshold = 1.0

// Query asks for the climatology at a point on a day-of-year.
type Query struct {
	Lat       float64
	Lon       float64
	DayOfYear int
}

// Weather is the resolved climatology together with the station it came from.
type Weather struct {
	Station  Station     `json:"station"`
	Distance float64     `json:"distance_deg"`
	Values   Climatology `json:"values"`
}

// Resolver maps queries to the climatology of the nearest station.
type Resolver struct {
	catalog   *Catalog
	threshold float64
}

// NewResolver creates a Resolver over the catalog. A threshold that is not a
// positive finite number selects DefaultCoverageThreshold.
func NewResolver(catalog *Catalog, threshold float64) *Resolver {
	if !(threshold > 0) || math.IsInf(threshold, 1) {
		threshold = DefaultCoverageThreshold
	}
	return &Resolver{catalog: catalog, threshold: threshold}
}

// Threshold returns the coverage threshold in degrees.
func (r *Resolver) Threshold() float64 { return r.threshold }

// Resolve validates the day, finds the nearest station and returns its
// climatology for that day.
func (r *Resolver) Resolve(q Query) (Weather, error) {
	if err := ValidateDayOfYear(q.DayOfYear); err != nil {
		return Weather{}, err
	}

	station, dist, ok := r.nearest(q.Lat, q.Lon)
	if !ok || dist > r.threshold {
		return Weather{}, &CoverageError{
			Lat:            q.Lat,
			Lon:            q.Lon,
			NearestStation: station.ID,
			Distance:       dist,
			Threshold:      r.threshold,
		}
	}

	values, err := r.catalog.Climatology(station.ID, q.DayOfYear)
	if err != nil {
		return Weather{}, err
	}

	return Weather{Station: station, Distance: dist, Values: values}, nil
}

// nearest scans the catalog linearly. A NaN distance never compares smaller,
// so NaN coordinates fall through to a coverage failure.
func (r *Resolver) nearest(lat, lon float64) (Station, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, s := range r.catalog.stations {
		d := Distance(s.Lat, s.Lon, lat, lon)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Station{}, bestDist, false
	}
	return r.catalog.stations[best], bestDist, true
}

// Distance is the Euclidean distance between two points in degree space.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lat1-lat2, lon1-lon2)
}

// ValidateDayOfYear checks that day is within 1..365.
func ValidateDayOfYear(day int) error {
	if day < 1 || day > DaysPerYear {
		return &ValidationError{
			Field:   "day_of_year",
			Value:   strconv.Itoa(day),
			Message: "day of year has to be between 1 and 365",
		}
	}
	return nil
}
