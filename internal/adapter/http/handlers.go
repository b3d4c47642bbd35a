package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/firewhere/internal/domain"
	"github.com/couchcryptid/firewhere/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
)

// maxBodyBytes caps prediction request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Field   string `json:"field,omitempty"`
}

// CountiesResponse lists the counties of one state.
type CountiesResponse struct {
	State    string   `json:"state"`
	Counties []string `json:"counties"`
}

// CountyResponse is a single directory entry.
type CountyResponse struct {
	State  string  `json:"state"`
	County string  `json:"county"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// WeatherResponse answers GET /api/weather.
type WeatherResponse struct {
	Lat       float64        `json:"lat"`
	Lon       float64        `json:"lon"`
	DayOfYear int            `json:"day_of_year"`
	Weather   domain.Weather `json:"weather"`
}

func (s *Server) handleCauses(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]domain.Cause{"causes": domain.Causes})
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	stations, err := s.svc.Stations()
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"count":    len(stations),
		"stations": stations,
	})
}

func (s *Server) handleStates(w http.ResponseWriter, _ *http.Request) {
	dir, err := s.svc.Directory()
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]string{"states": dir.States()})
}

func (s *Server) handleCounties(w http.ResponseWriter, r *http.Request) {
	state := mux.Vars(r)["state"]
	dir, err := s.svc.Directory()
	if err != nil {
		s.writeError(w, err)
		return
	}
	counties, err := dir.Counties(state)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, CountiesResponse{State: state, Counties: counties})
}

func (s *Server) handleCounty(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dir, err := s.svc.Directory()
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, err := dir.County(vars["state"], vars["county"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, CountyResponse{
		State:  vars["state"],
		County: vars["county"],
		Lat:    c.Lat,
		Lon:    c.Lon,
	})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	q, err := parseWeatherQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	weather, err := s.svc.Weather(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, WeatherResponse{
		Lat:       q.Lat,
		Lon:       q.Lon,
		DayOfYear: q.DayOfYear,
		Weather:   weather,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Message: "invalid JSON body: " + err.Error()})
		return
	}

	res, err := s.svc.Predict(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

// parseWeatherQuery reads lat, lon and either day or date. With neither,
// the query is for today.
func parseWeatherQuery(r *http.Request) (domain.Query, error) {
	values := r.URL.Query()

	lat, err := parseFloatParam(values.Get("lat"), "lat")
	if err != nil {
		return domain.Query{}, err
	}
	lon, err := parseFloatParam(values.Get("lon"), "lon")
	if err != nil {
		return domain.Query{}, err
	}

	var day int
	switch {
	case values.Get("day") != "":
		raw := values.Get("day")
		day, err = strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return domain.Query{}, &domain.ValidationError{Field: "day", Value: raw, Message: "day must be an integer"}
		}
	case values.Get("date") != "":
		day, err = pipeline.ParseDate(strings.TrimSpace(values.Get("date")))
		if err != nil {
			return domain.Query{}, err
		}
	default:
		day = domain.Today()
	}

	return domain.Query{Lat: lat, Lon: lon, DayOfYear: day}, nil
}

func parseFloatParam(raw, field string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, &domain.ValidationError{Field: field, Message: field + " is required"}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &domain.ValidationError{Field: field, Value: raw, Message: field + " must be a number"}
	}
	return v, nil
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		coverage   *domain.CoverageError
		lookup     *domain.LookupError
		predictor  *pipeline.PredictorError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &coverage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.As(err, &predictor):
		return http.StatusBadGateway
	case errors.As(err, &lookup):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed", "status", status, "error", err)
	}

	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
	}
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		resp.Field = validation.Field
	}
	sharedobs.WriteJSON(w, status, resp)
}
