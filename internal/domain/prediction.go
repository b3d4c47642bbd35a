package domain

import (
	"context"
	"strconv"
	"strings"
)

// FeatureCount is the width of the model input.
const FeatureCount = 8

// FeatureVector is the model input in training order:
// lat, lon, day_of_year, cause_code, mean_temp, diurnal_range, precipitation, snowfall.
type FeatureVector [FeatureCount]float64

// NewFeatureVector assembles the model input from a query, cause and weather.
func NewFeatureVector(q Query, cause Cause, w Climatology) FeatureVector {
	return FeatureVector{
		q.Lat,
		q.Lon,
		float64(q.DayOfYear),
		float64(cause.Code),
		w.MeanTemp,
		w.DiurnalRange,
		w.Precipitation,
		w.Snowfall,
	}
}

// Cause is a fire ignition cause with the integer code used during training.
type Cause struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// Causes lists every known cause in display order.
var Causes = []Cause{
	{Code: 1, Name: "Equipment Use"},
	{Code: 2, Name: "Smoking"},
	{Code: 3, Name: "Campfire"},
	{Code: 4, Name: "Debris Burning"},
	{Code: 5, Name: "Railroad"},
	{Code: 6, Name: "Arson"},
	{Code: 7, Name: "Children"},
	{Code: 8, Name: "Miscellaneous"},
	{Code: 9, Name: "Fireworks"},
	{Code: 10, Name: "Powerline"},
	{Code: 11, Name: "Structure"},
	{Code: 12, Name: "Missing/Undefined"},
	{Code: 0, Name: "Lightning"},
}

// ParseCause accepts either a numeric code (0-12) or a case-insensitive cause name.
func ParseCause(s string) (Cause, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		return CauseByCode(code)
	}
	for _, c := range Causes {
		if strings.EqualFold(c.Name, s) {
			return c, nil
		}
	}
	// Legacy spelling found in older datasets.
	if strings.EqualFold(s, "Lightening") {
		return CauseByCode(0)
	}
	return Cause{}, &ValidationError{Field: "cause", Value: s, Message: "unknown cause"}
}

// CauseByCode returns the cause with the given code.
func CauseByCode(code int) (Cause, error) {
	for _, c := range Causes {
		if c.Code == code {
			return c, nil
		}
	}
	return Cause{}, &ValidationError{
		Field:   "cause",
		Value:   strconv.Itoa(code),
		Message: "cause code has to be between 0 and 12",
	}
}

// SizeClass is a discrete fire size bucket.
type SizeClass int

const (
	SizeSmall  SizeClass = iota // < 0.22 acres
	SizeMedium                  // 0.22 - 2 acres
	SizeLarge                   // > 2 acres
)

// Bucket thresholds in acres.
const (
	smallUpperAcres  = 0.22
	mediumUpperAcres = 2.0
)

// String returns the human-readable bucket description.
func (c SizeClass) String() string {
	switch c {
	case SizeSmall:
		return "less than 0.22 acres"
	case SizeMedium:
		return "between 0.22 and 2 acres"
	default:
		return "greater than 2 acres"
	}
}

// ClassifyAcres buckets a continuous size estimate.
func ClassifyAcres(acres float64) SizeClass {
	switch {
	case acres < smallUpperAcres:
		return SizeSmall
	case acres <= mediumUpperAcres:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// Prediction is the model output. Acres is set only by regressor models,
// Probabilities only by classifier models.
type Prediction struct {
	Class         SizeClass `json:"size_class"`
	Acres         *float64  `json:"acres,omitempty"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

// Predictor is a pre-trained fire size model.
type Predictor interface {
	Predict(ctx context.Context, features FeatureVector) (Prediction, error)
}
