package domain

import "time"

// PredictionEvent records one served prediction for downstream consumers.
type PredictionEvent struct {
	ID          string     `json:"id"`
	Lat         float64    `json:"lat"`
	Lon         float64    `json:"lon"`
	State       string     `json:"state,omitempty"`
	County      string     `json:"county,omitempty"`
	DayOfYear   int        `json:"day_of_year"`
	Cause       Cause      `json:"cause"`
	Weather     Weather    `json:"weather"`
	Prediction  Prediction `json:"prediction"`
	SizeLabel   string     `json:"size_label"`
	PredictedAt time.Time  `json:"predicted_at"`
}
