// Package model provides the fire size predictors: an in-process dense
// network loaded from a JSON artifact, and a TensorFlow Serving REST client.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"

	"github.com/couchcryptid/firewhere/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// Kind selects how the network output is interpreted.
type Kind string

const (
	// KindClassifier has three outputs, one per size class.
	KindClassifier Kind = "classifier"
	// KindRegressor has one output, the burned area in acres.
	KindRegressor Kind = "regressor"
)

// normalizerEpsilon bounds the variance away from zero.
const normalizerEpsilon = 1e-7

// Artifact is the serialized network.
type Artifact struct {
	Kind       Kind        `json:"kind"`
	Normalizer *Normalizer `json:"normalizer,omitempty"`
	Layers     []Layer     `json:"layers"`
}

// Normalizer standardizes each input feature before the first layer.
type Normalizer struct {
	Mean     []float64 `json:"mean"`
	Variance []float64 `json:"variance"`
}

// Layer is a fully connected layer. Weights are indexed [input][output].
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

type dense struct {
	weights    *mat.Dense
	bias       []float64
	activation string
}

// Network evaluates a loaded artifact. It is immutable and safe for
// concurrent use.
type Network struct {
	kind     Kind
	mean     []float64
	stddev   []float64
	layers   []dense
	outWidth int
}

// Load reads an artifact from a local path or an http(s) URL.
func Load(ctx context.Context, src string, client *http.Client) (*Network, error) {
	var (
		r   io.ReadCloser
		err error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		r, err = fetch(ctx, src, client)
	} else {
		r, err = os.Open(src)
	}
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", src, err)
	}
	defer r.Close()

	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", src, err)
	}
	n, err := NewNetwork(a)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", src, err)
	}
	return n, nil
}

func fetch(ctx context.Context, u string, client *http.Client) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// NewNetwork validates the artifact's shapes and builds the evaluator.
func NewNetwork(a Artifact) (*Network, error) {
	var wantOut int
	switch a.Kind {
	case KindClassifier:
		wantOut = 3
	case KindRegressor:
		wantOut = 1
	default:
		return nil, fmt.Errorf("unknown model kind %q", a.Kind)
	}
	if len(a.Layers) == 0 {
		return nil, errors.New("model has no layers")
	}

	n := &Network{kind: a.Kind, outWidth: wantOut}

	if a.Normalizer != nil {
		if len(a.Normalizer.Mean) != domain.FeatureCount || len(a.Normalizer.Variance) != domain.FeatureCount {
			return nil, fmt.Errorf("normalizer must have %d means and variances", domain.FeatureCount)
		}
		n.mean = append([]float64(nil), a.Normalizer.Mean...)
		n.stddev = make([]float64, domain.FeatureCount)
		for i, v := range a.Normalizer.Variance {
			if v < 0 || math.IsNaN(v) {
				return nil, fmt.Errorf("normalizer variance %d is %g", i, v)
			}
			n.stddev[i] = math.Sqrt(math.Max(v, normalizerEpsilon))
		}
	}

	in := domain.FeatureCount
	for i, l := range a.Layers {
		if len(l.Weights) != in {
			return nil, fmt.Errorf("layer %d: expected %d weight rows, got %d", i, in, len(l.Weights))
		}
		out := len(l.Bias)
		if out == 0 {
			return nil, fmt.Errorf("layer %d: empty bias", i)
		}
		flat := make([]float64, 0, in*out)
		for r, row := range l.Weights {
			if len(row) != out {
				return nil, fmt.Errorf("layer %d: weight row %d has %d columns, want %d", i, r, len(row), out)
			}
			flat = append(flat, row...)
		}
		if _, ok := activations[l.Activation]; !ok {
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		n.layers = append(n.layers, dense{
			weights:    mat.NewDense(in, out, flat),
			bias:       append([]float64(nil), l.Bias...),
			activation: l.Activation,
		})
		in = out
	}
	if in != wantOut {
		return nil, fmt.Errorf("%s must have %d outputs, got %d", a.Kind, wantOut, in)
	}
	return n, nil
}

// Kind reports the output interpretation.
func (n *Network) Kind() Kind { return n.kind }

// Predict runs a forward pass.
func (n *Network) Predict(ctx context.Context, features domain.FeatureVector) (domain.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Prediction{}, err
	}
	out := n.forward(features)
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Prediction{}, fmt.Errorf("model produced non-finite output %v", out)
		}
	}
	return interpret(out)
}

func (n *Network) forward(features domain.FeatureVector) []float64 {
	x := make([]float64, domain.FeatureCount)
	copy(x, features[:])
	if n.mean != nil {
		for i := range x {
			x[i] = (x[i] - n.mean[i]) / n.stddev[i]
		}
	}

	act := mat.NewDense(1, len(x), x)
	for _, l := range n.layers {
		_, out := l.weights.Dims()
		next := mat.NewDense(1, out, nil)
		next.Mul(act, l.weights)
		row := next.RawRowView(0)
		for j := range row {
			row[j] += l.bias[j]
		}
		activations[l.activation](row)
		act = next
	}
	return append([]float64(nil), act.RawRowView(0)...)
}

// interpret maps raw outputs to a prediction: one value is acres, three are
// per-class scores.
func interpret(out []float64) (domain.Prediction, error) {
	switch len(out) {
	case 1:
		acres := out[0]
		return domain.Prediction{Class: domain.ClassifyAcres(acres), Acres: &acres}, nil
	case 3:
		best := 0
		for i, v := range out {
			if v > out[best] {
				best = i
			}
		}
		return domain.Prediction{Class: domain.SizeClass(best), Probabilities: out}, nil
	default:
		return domain.Prediction{}, fmt.Errorf("unexpected model output width %d", len(out))
	}
}

var activations = map[string]func([]float64){
	"":       func([]float64) {},
	"linear": func([]float64) {},
	"relu": func(v []float64) {
		for i := range v {
			v[i] = math.Max(0, v[i])
		}
	},
	"sigmoid": func(v []float64) {
		for i := range v {
			v[i] = 1 / (1 + math.Exp(-v[i]))
		}
	},
	"tanh": func(v []float64) {
		for i := range v {
			v[i] = math.Tanh(v[i])
		}
	},
	"softmax": softmax,
}

func softmax(v []float64) {
	peak := math.Inf(-1)
	for _, x := range v {
		peak = math.Max(peak, x)
	}
	var sum float64
	for i := range v {
		v[i] = math.Exp(v[i] - peak)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}
