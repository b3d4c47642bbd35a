package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/couchcryptid/firewhere/internal/domain"
)

// Location sources reported in results.
const (
	SourceCoordinates = "coordinates"
	SourceDirectory   = "directory"
	SourceGeocoder    = "geocoder"
)

// Location is a resolved query point.
type Location struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	State  string  `json:"state,omitempty"`
	County string  `json:"county,omitempty"`
	Source string  `json:"source"`
	// Set only when the geocoder answered.
	PlaceName string `json:"place_name,omitempty"`
}

// locate turns explicit coordinates or a state/county pair into a point.
// Counties missing from the directory go to the geocoder when one is set.
func (p *Pipeline) locate(ctx context.Context, dir *domain.Directory, req Request) (Location, error) {
	switch {
	case req.Lat != nil && req.Lon != nil:
		return Location{
			Lat:    *req.Lat,
			Lon:    *req.Lon,
			State:  req.State,
			County: req.County,
			Source: SourceCoordinates,
		}, nil
	case req.Lat != nil:
		return Location{}, &domain.ValidationError{Field: "lon", Value: "", Message: "lat and lon must be given together"}
	case req.Lon != nil:
		return Location{}, &domain.ValidationError{Field: "lat", Value: "", Message: "lat and lon must be given together"}
	}

	state, county := strings.TrimSpace(req.State), strings.TrimSpace(req.County)
	if state == "" || county == "" {
		return Location{}, &domain.ValidationError{
			Field:   "location",
			Value:   strings.Trim(state+"/"+county, "/"),
			Message: "either lat/lon or state and county are required",
		}
	}

	c, err := dir.County(state, county)
	if err == nil {
		return Location{Lat: c.Lat, Lon: c.Lon, State: state, County: county, Source: SourceDirectory}, nil
	}

	var nf *domain.NotFoundError
	if !errors.As(err, &nf) || p.opts.Geocoder == nil {
		return Location{}, err
	}

	result, gerr := p.opts.Geocoder.ForwardGeocode(ctx, county, state)
	if gerr != nil {
		p.logger.Warn("geocoding fallback failed", "state", state, "county", county, "error", gerr)
		return Location{}, err
	}
	if result.FormattedAddress == "" {
		return Location{}, err
	}

	p.logger.Debug("county resolved by geocoder",
		"state", state,
		"county", county,
		"place", result.FormattedAddress,
		"confidence", result.Confidence,
	)
	return Location{
		Lat:       result.Lat,
		Lon:       result.Lon,
		State:     state,
		County:    county,
		Source:    SourceGeocoder,
		PlaceName: result.FormattedAddress,
	}, nil
}
