package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/firewhere/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroWeights(in, out int) [][]float64 {
	w := make([][]float64, in)
	for i := range w {
		w[i] = make([]float64, out)
	}
	return w
}

func linearClassifier() Artifact {
	w := zeroWeights(domain.FeatureCount, 3)
	w[0] = []float64{1, 0, 0}    // lat
	w[2] = []float64{0, 0, 0.01} // day of year
	return Artifact{
		Kind:   KindClassifier,
		Layers: []Layer{{Weights: w, Bias: []float64{0, 0.5, 0}, Activation: "linear"}},
	}
}

func twoLayerRegressor() Artifact {
	mean := make([]float64, domain.FeatureCount)
	variance := []float64{4, 1, 1, 1, 1, 1, 1, 1}
	mean[0] = 40

	w1 := zeroWeights(domain.FeatureCount, 2)
	w1[0] = []float64{1, -1}
	return Artifact{
		Kind:       KindRegressor,
		Normalizer: &Normalizer{Mean: mean, Variance: variance},
		Layers: []Layer{
			{Weights: w1, Bias: []float64{0, 0}, Activation: "relu"},
			{Weights: [][]float64{{3}, {5}}, Bias: []float64{0.1}, Activation: "linear"},
		},
	}
}

func features(lat, lon float64, day int) domain.FeatureVector {
	return domain.FeatureVector{lat, lon, float64(day), 3, 15.2, 10.1, 0.3, 0}
}

func TestNetwork_Classifier(t *testing.T) {
	n, err := NewNetwork(linearClassifier())
	require.NoError(t, err)
	assert.Equal(t, KindClassifier, n.Kind())

	p, err := n.Predict(context.Background(), features(40, -105, 100))
	require.NoError(t, err)
	assert.Equal(t, domain.SizeSmall, p.Class)
	assert.Nil(t, p.Acres)
	assert.InDeltaSlice(t, []float64{40, 0.5, 1}, p.Probabilities, 1e-9)
}

func TestNetwork_Softmax(t *testing.T) {
	a := Artifact{
		Kind: KindClassifier,
		Layers: []Layer{{
			Weights:    zeroWeights(domain.FeatureCount, 3),
			Bias:       []float64{0, math.Ln2, 0},
			Activation: "softmax",
		}},
	}
	n, err := NewNetwork(a)
	require.NoError(t, err)

	p, err := n.Predict(context.Background(), features(40, -105, 100))
	require.NoError(t, err)
	assert.Equal(t, domain.SizeMedium, p.Class)
	assert.InDeltaSlice(t, []float64{0.25, 0.5, 0.25}, p.Probabilities, 1e-9)
}

func TestNetwork_RegressorWithNormalizer(t *testing.T) {
	n, err := NewNetwork(twoLayerRegressor())
	require.NoError(t, err)

	// (41 - 40) / sqrt(4) = 0.5 -> relu [0.5, 0] -> 3*0.5 + 0.1 = 1.6 acres.
	p, err := n.Predict(context.Background(), features(41, -105, 100))
	require.NoError(t, err)
	require.NotNil(t, p.Acres)
	assert.InDelta(t, 1.6, *p.Acres, 1e-9)
	assert.Equal(t, domain.SizeMedium, p.Class)
	assert.Nil(t, p.Probabilities)
}

func TestNetwork_CanceledContext(t *testing.T) {
	n, err := NewNetwork(linearClassifier())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.Predict(ctx, features(40, -105, 100))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewNetwork_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Artifact)
		wantErr string
	}{
		{"unknown kind", func(a *Artifact) { a.Kind = "ranker" }, "unknown model kind"},
		{"no layers", func(a *Artifact) { a.Layers = nil }, "no layers"},
		{"wrong input rows", func(a *Artifact) { a.Layers[0].Weights = zeroWeights(7, 3) }, "expected 8 weight rows"},
		{"ragged row", func(a *Artifact) { a.Layers[0].Weights[4] = []float64{1} }, "weight row 4"},
		{"unknown activation", func(a *Artifact) { a.Layers[0].Activation = "gelu" }, "unknown activation"},
		{"wrong output width", func(a *Artifact) { a.Kind = KindRegressor }, "must have 1 outputs"},
		{"short normalizer", func(a *Artifact) {
			a.Normalizer = &Normalizer{Mean: []float64{0}, Variance: []float64{1}}
		}, "normalizer must have 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := linearClassifier()
			tt.mutate(&a)
			_, err := NewNetwork(a)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileAndURL(t *testing.T) {
	raw, err := json.Marshal(twoLayerRegressor())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	fromFile, err := Load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, KindRegressor, fromFile.Kind())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	fromURL, err := Load(context.Background(), srv.URL+"/model.json", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, KindRegressor, fromURL.Kind())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err = Load(context.Background(), srv.URL, srv.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestServingClient_Predict(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/models/fw:predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"predictions": [[0.1, 0.2, 0.7]]}`))
	}))
	defer srv.Close()

	c := NewServingClient(srv.URL+"/", "fw", time.Second)
	p, err := c.Predict(context.Background(), features(40, -105, 100))
	require.NoError(t, err)

	require.Len(t, got.Instances, 1)
	fv := features(40, -105, 100)
	assert.Equal(t, fv[:], got.Instances[0])
	assert.Equal(t, domain.SizeLarge, p.Class)
	assert.Equal(t, []float64{0.1, 0.2, 0.7}, p.Probabilities)
}

func TestServingClient_Regressor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"predictions": [[0.05]]}`))
	}))
	defer srv.Close()

	p, err := NewServingClient(srv.URL, "fw", time.Second).Predict(context.Background(), features(40, -105, 100))
	require.NoError(t, err)
	require.NotNil(t, p.Acres)
	assert.InDelta(t, 0.05, *p.Acres, 1e-9)
	assert.Equal(t, domain.SizeSmall, p.Class)
}

func TestServingClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "boom", "status 500: boom"},
		{"error field", http.StatusOK, `{"error": "model not found"}`, "model not found"},
		{"bad json", http.StatusOK, `{`, "decode response"},
		{"no rows", http.StatusOK, `{"predictions": []}`, "expected 1 prediction"},
		{"bad width", http.StatusOK, `{"predictions": [[1, 2]]}`, "output width 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewServingClient(srv.URL, "fw", time.Second).Predict(context.Background(), features(40, -105, 100))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type countingPredictor struct {
	calls int
}

func (c *countingPredictor) Predict(context.Context, domain.FeatureVector) (domain.Prediction, error) {
	c.calls++
	return domain.Prediction{Class: domain.SizeMedium}, nil
}

func TestRateLimitedPredictor(t *testing.T) {
	inner := &countingPredictor{}
	p := NewRateLimitedPredictor(inner, 100, 1)

	got, err := p.Predict(context.Background(), features(40, -105, 100))
	require.NoError(t, err)
	assert.Equal(t, domain.SizeMedium, got.Class)
	assert.Equal(t, 1, inner.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Predict(ctx, features(40, -105, 100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait canceled")
	assert.Equal(t, 1, inner.calls)
}
