package domain

import (
	"context"
	"sort"
	"strings"
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"Latitude"`
	Lon float64 `json:"Longitude"`
}

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder turns a place name into coordinates.
type Geocoder interface {
	// ForwardGeocode converts a place name and state to coordinates.
	ForwardGeocode(ctx context.Context, name, state string) (GeocodingResult, error)
}

// Directory maps state -> county -> representative coordinates.
type Directory struct {
	counties map[string]map[string]Coordinates
}

// NewDirectory wraps a state/county table. The map is not copied; callers
// must not modify it afterwards.
func NewDirectory(counties map[string]map[string]Coordinates) *Directory {
	if counties == nil {
		counties = map[string]map[string]Coordinates{}
	}
	return &Directory{counties: counties}
}

// States returns every state, sorted.
func (d *Directory) States() []string {
	out := make([]string, 0, len(d.counties))
	for s := range d.counties {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Counties returns the counties of a state, sorted.
func (d *Directory) Counties(state string) ([]string, error) {
	byCounty, ok := d.lookupState(state)
	if !ok {
		return nil, &NotFoundError{Resource: "state", ID: state}
	}
	out := make([]string, 0, len(byCounty))
	for c := range byCounty {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// County resolves a county to its coordinates. Names match case-insensitively.
func (d *Directory) County(state, county string) (Coordinates, error) {
	byCounty, ok := d.lookupState(state)
	if !ok {
		return Coordinates{}, &NotFoundError{Resource: "state", ID: state}
	}
	if c, ok := byCounty[county]; ok {
		return c, nil
	}
	for name, c := range byCounty {
		if strings.EqualFold(name, county) {
			return c, nil
		}
	}
	return Coordinates{}, &NotFoundError{Resource: "county", ID: county + ", " + state}
}

func (d *Directory) lookupState(state string) (map[string]Coordinates, bool) {
	if m, ok := d.counties[state]; ok {
		return m, true
	}
	for name, m := range d.counties {
		if strings.EqualFold(name, state) {
			return m, true
		}
	}
	return nil, false
}
