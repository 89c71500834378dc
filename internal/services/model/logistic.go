package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	domsvc "CoinPull/internal/domain/service"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

const artifactKind = "logistic/v1"

// Logistic is an L2-regularised logistic regression over standardised
// features. It serialises to a JSON artifact.
type Logistic struct {
	Kind      string    `json:"kind"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
	TrainedAt time.Time `json:"trained_at"`
}

// FitOptions tune Fit.
type FitOptions struct {
	L2            float64
	MaxIterations int
}

func (o FitOptions) withDefaults() FitOptions {
	if o.L2 <= 0 {
		o.L2 = 1e-2
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 200
	}
	return o
}

// Fit trains a classifier on rows X with 0/1 labels y using BFGS.
func Fit(X [][]float64, y []int, opts FitOptions) (*Logistic, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("fit: %d rows, %d labels", len(X), len(y))
	}
	dim := len(X[0])
	for i, row := range X {
		if len(row) != dim {
			return nil, fmt.Errorf("fit: row %d has %d features, want %d", i, len(row), dim)
		}
	}
	opts = opts.withDefaults()

	m := &Logistic{Kind: artifactKind, Mean: make([]float64, dim), Scale: make([]float64, dim)}
	col := make([]float64, len(X))
	for j := 0; j < dim; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		mu, sd := stat.MeanStdDev(col, nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		m.Mean[j], m.Scale[j] = mu, sd
	}

	Z := make([][]float64, len(X))
	for i, row := range X {
		Z[i] = m.standardise(row)
	}
	labels := make([]float64, len(y))
	for i, v := range y {
		if v != 0 {
			labels[i] = 1
		}
	}

	n := float64(len(Z))
	// params: weights[0:dim], bias at dim
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			w, b := p[:dim], p[dim]
			var loss float64
			for i, z := range Z {
				s := floats.Dot(w, z) + b
				loss += softplus(s) - labels[i]*s
			}
			return loss/n + 0.5*opts.L2*floats.Dot(w, w)
		},
		Grad: func(grad, p []float64) {
			w, b := p[:dim], p[dim]
			for k := range grad {
				grad[k] = 0
			}
			for i, z := range Z {
				r := sigmoid(floats.Dot(w, z)+b) - labels[i]
				floats.AddScaled(grad[:dim], r, z)
				grad[dim] += r
			}
			floats.Scale(1/n, grad)
			floats.AddScaled(grad[:dim], opts.L2, w)
		},
	}

	res, err := optimize.Minimize(problem, make([]float64, dim+1), &optimize.Settings{
		MajorIterations:   opts.MaxIterations,
		GradientThreshold: 1e-6,
	}, &optimize.BFGS{})
	if err != nil && res == nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	if !allFinite(res.X) {
		return nil, errors.New("fit: optimiser diverged")
	}

	m.Weights = append([]float64(nil), res.X[:dim]...)
	m.Bias = res.X[dim]
	m.TrainedAt = time.Now().UTC()
	return m, nil
}

// PredictProba returns P(label=1 | x).
func (m *Logistic) PredictProba(_ context.Context, x []float64) (float64, error) {
	if len(x) != len(m.Weights) {
		return 0, fmt.Errorf("predict: got %d features, want %d", len(x), len(m.Weights))
	}
	return sigmoid(floats.Dot(m.Weights, m.standardise(x)) + m.Bias), nil
}

// Accuracy is the share of rows whose thresholded prediction matches y.
func (m *Logistic) Accuracy(X [][]float64, y []int) float64 {
	if len(X) == 0 {
		return 0
	}
	var hit int
	for i, row := range X {
		p, err := m.PredictProba(context.Background(), row)
		if err != nil {
			continue
		}
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		if pred == y[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(X))
}

// Marshal encodes the artifact.
func (m *Logistic) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses an artifact produced by Marshal.
func Decode(artifact []byte) (*Logistic, error) {
	var m Logistic
	if err := json.Unmarshal(artifact, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if m.Kind != artifactKind {
		return nil, fmt.Errorf("decode model: unknown kind %q", m.Kind)
	}
	if len(m.Weights) == 0 || len(m.Mean) != len(m.Weights) || len(m.Scale) != len(m.Weights) {
		return nil, errors.New("decode model: inconsistent dimensions")
	}
	return &m, nil
}

func (m *Logistic) standardise(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - m.Mean[j]) / m.Scale[j]
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

var _ domsvc.Classifier = (*Logistic)(nil)
