package domain

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned while the station catalog and model are still loading.
var ErrNotReady = errors.New("prediction service is not ready")

// ValidationError reports a malformed request value. The caller must not
// proceed to weather resolution.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// CoverageError reports that no station lies within the coverage threshold
// of the queried point.
type CoverageError struct {
	Lat            float64
	Lon            float64
	NearestStation string
	Distance       float64
	Threshold      float64
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("no weather station within %.2f degrees of (%.4f, %.4f): nearest is %s at %.2f degrees",
		e.Threshold, e.Lat, e.Lon, e.NearestStation, e.Distance)
}

// LookupError reports a station/day pair missing from the climatology table.
// It means the dataset is incomplete for that station; cmd/validate reports
// such gaps before a dataset is served.
type LookupError struct {
	StationID string
	DayOfYear int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no climatology for station %s on day %d", e.StationID, e.DayOfYear)
}

// NotFoundError reports an unknown directory entry such as a state or county.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}
