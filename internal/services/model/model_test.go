package model

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func separable(n int, seed int64) ([][]float64, []int) {
	r := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		a := r.Float64()*100 + 1
		b := r.Float64() * 10
		X[i] = []float64{a, b, 0}
		if a > 50 {
			y[i] = 1
		}
	}
	return X, y
}

func TestFitLearnsThreshold(t *testing.T) {
	X, y := separable(200, 1)
	m, err := Fit(X, y, FitOptions{})
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if acc := m.Accuracy(X, y); acc < 0.9 {
		t.Fatalf("accuracy too low: %v", acc)
	}
	hi, _ := m.PredictProba(context.Background(), []float64{95, 5, 0})
	lo, _ := m.PredictProba(context.Background(), []float64{5, 5, 0})
	if hi <= 0.5 || lo >= 0.5 {
		t.Fatalf("unexpected probabilities hi=%v lo=%v", hi, lo)
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	if _, err := Fit(nil, nil, FitOptions{}); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := Fit([][]float64{{1, 2}, {1}}, []int{0, 1}, FitOptions{}); err == nil {
		t.Fatalf("expected error for ragged rows")
	}
}

func TestArtifactRoundTripKeepsPredictions(t *testing.T) {
	X, y := separable(80, 7)
	m, err := Fit(X, y, FitOptions{})
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	back, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	p1, _ := m.PredictProba(context.Background(), X[3])
	p2, _ := back.PredictProba(context.Background(), X[3])
	if p1 != p2 {
		t.Fatalf("prediction changed after reload: %v vs %v", p1, p2)
	}
	if _, err := back.PredictProba(context.Background(), []float64{1}); err == nil {
		t.Fatalf("expected dimension error")
	}
	if _, err := Decode([]byte(`{"kind":"other"}`)); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestHTTPClassifier(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req predictReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Features) != 2 {
			t.Errorf("bad payload: %v %v", err, req)
		}
		_ = json.NewEncoder(w).Encode(predictResp{Probability: 0.8})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	p, err := c.PredictProba(context.Background(), []float64{1, 2})
	if err != nil {
		t.Fatalf("PredictProba error: %v", err)
	}
	if p != 0.8 {
		t.Fatalf("probability = %v, want 0.8", p)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}
