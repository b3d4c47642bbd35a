package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/firewhere/internal/domain"
	"github.com/google/uuid"
)

// mapZoom is the OpenStreetMap zoom level for result links.
const mapZoom = 16

// dateLayout is the accepted request date format.
const dateLayout = "2006-01-02"

// CauseValue accepts a cause as either a JSON number or a JSON string.
type CauseValue string

// UnmarshalJSON implements json.Unmarshaler.
func (c *CauseValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = CauseValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("cause must be a string or a number: %w", err)
	}
	*c = CauseValue(n.String())
	return nil
}

// Request is a prediction request. Location comes from Lat/Lon or from
// State/County; the day from DayOfYear, Date, or today.
type Request struct {
	Lat       *float64   `json:"lat,omitempty"`
	Lon       *float64   `json:"lon,omitempty"`
	State     string     `json:"state,omitempty"`
	County    string     `json:"county,omitempty"`
	Date      string     `json:"date,omitempty"`
	DayOfYear *int       `json:"day_of_year,omitempty"`
	Cause     CauseValue `json:"cause"`
}

// Result is a served prediction.
type Result struct {
	ID          string            `json:"id"`
	Location    Location          `json:"location"`
	DayOfYear   int               `json:"day_of_year"`
	Cause       domain.Cause      `json:"cause"`
	Weather     domain.Weather    `json:"weather"`
	Prediction  domain.Prediction `json:"prediction"`
	SizeLabel   string            `json:"size_label"`
	MapURL      string            `json:"map_url"`
	PredictedAt time.Time         `json:"predicted_at"`
}

// PredictorError wraps a failed model invocation.
type PredictorError struct {
	Err error
}

func (e *PredictorError) Error() string {
	return "predictor failed: " + e.Err.Error()
}

func (e *PredictorError) Unwrap() error { return e.Err }

// Predict validates the request, resolves the weather at the location and
// asks the model for a size class. The model is never called after an
// earlier stage fails.
func (p *Pipeline) Predict(ctx context.Context, req Request) (Result, error) {
	res, err := p.predict(ctx, req)
	if err != nil {
		p.metrics.PredictionErrors.WithLabelValues(errorKind(err)).Inc()
		return Result{}, err
	}
	p.metrics.Predictions.WithLabelValues(strconv.Itoa(int(res.Prediction.Class))).Inc()
	p.record(ctx, res)
	return res, nil
}

func (p *Pipeline) predict(ctx context.Context, req Request) (Result, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return Result{}, err
	}

	day, err := dayOfYear(req)
	if err != nil {
		return Result{}, err
	}
	if err := domain.ValidateDayOfYear(day); err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(string(req.Cause)) == "" {
		return Result{}, &domain.ValidationError{Field: "cause", Message: "cause is required"}
	}
	cause, err := domain.ParseCause(string(req.Cause))
	if err != nil {
		return Result{}, err
	}

	loc, err := p.locate(ctx, snap.Directory, req)
	if err != nil {
		return Result{}, err
	}

	q := domain.Query{Lat: loc.Lat, Lon: loc.Lon, DayOfYear: day}
	weather, err := p.resolve(snap, q)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	prediction, err := snap.Predictor.Predict(ctx, domain.NewFeatureVector(q, cause, weather.Values))
	p.metrics.PredictorDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return Result{}, &PredictorError{Err: err}
	}

	return Result{
		ID:          uuid.NewString(),
		Location:    loc,
		DayOfYear:   day,
		Cause:       cause,
		Weather:     weather,
		Prediction:  prediction,
		SizeLabel:   prediction.Class.String(),
		MapURL:      MapURL(loc.Lat, loc.Lon),
		PredictedAt: domain.Now().UTC(),
	}, nil
}

// Weather resolves the climatology for a query without invoking the model.
func (p *Pipeline) Weather(_ context.Context, q domain.Query) (domain.Weather, error) {
	snap, err := p.Snapshot()
	if err != nil {
		p.metrics.PredictionErrors.WithLabelValues(errorKind(err)).Inc()
		return domain.Weather{}, err
	}
	w, err := p.resolve(snap, q)
	if err != nil {
		p.metrics.PredictionErrors.WithLabelValues(errorKind(err)).Inc()
	}
	return w, err
}

func (p *Pipeline) resolve(snap *Snapshot, q domain.Query) (domain.Weather, error) {
	start := time.Now()
	w, err := snap.Resolver.Resolve(q)
	p.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Weather{}, err
	}
	p.metrics.StationDistance.Observe(w.Distance)
	return w, nil
}

// record publishes the event. Failures are logged and counted only.
func (p *Pipeline) record(ctx context.Context, res Result) {
	if p.opts.Recorder == nil {
		return
	}
	event := domain.PredictionEvent{
		ID:          res.ID,
		Lat:         res.Location.Lat,
		Lon:         res.Location.Lon,
		State:       res.Location.State,
		County:      res.Location.County,
		DayOfYear:   res.DayOfYear,
		Cause:       res.Cause,
		Weather:     res.Weather,
		Prediction:  res.Prediction,
		SizeLabel:   res.SizeLabel,
		PredictedAt: res.PredictedAt,
	}
	if err := p.opts.Recorder.Record(ctx, event); err != nil {
		p.metrics.EventPublishFailure.Inc()
		p.logger.Warn("record prediction event failed", "id", res.ID, "error", err)
		return
	}
	p.metrics.EventsPublished.Inc()
}

// Stations lists the loaded catalog in load order.
func (p *Pipeline) Stations() ([]domain.Station, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Catalog.Stations(), nil
}

// Directory returns the loaded county directory.
func (p *Pipeline) Directory() (*domain.Directory, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Directory, nil
}

// dayOfYear picks the explicit day, then the date's year-day, then today.
func dayOfYear(req Request) (int, error) {
	if req.DayOfYear != nil {
		return *req.DayOfYear, nil
	}
	if d := strings.TrimSpace(req.Date); d != "" {
		return ParseDate(d)
	}
	return domain.Today(), nil
}

// ParseDate returns the day-of-year of a YYYY-MM-DD date. 31 December of a
// leap year yields 366, which the resolver rejects.
func ParseDate(s string) (int, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, &domain.ValidationError{Field: "date", Value: s, Message: "date must be formatted as YYYY-MM-DD"}
	}
	return t.YearDay(), nil
}

// MapURL links to the point on OpenStreetMap.
func MapURL(lat, lon float64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.5f&mlon=%.5f#map=%d/%.5f/%.5f", lat, lon, mapZoom, lat, lon)
}

// errorKind labels an error for the prediction_errors_total metric.
func errorKind(err error) string {
	var (
		validation *domain.ValidationError
		coverage   *domain.CoverageError
		lookup     *domain.LookupError
		notFound   *domain.NotFoundError
		predictor  *PredictorError
	)
	switch {
	case errors.Is(err, domain.ErrNotReady):
		return "not_ready"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &coverage):
		return "coverage"
	case errors.As(err, &lookup):
		return "lookup"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &predictor):
		return "model"
	default:
		return "other"
	}
}
