package model

import (
	"context"
	"fmt"
	"time"

	domsvc "CoinPull/internal/domain/service"
	svcmetrics "CoinPull/internal/service/metrics"
	xhttp "CoinPull/pkg/http"
)

// httpBase wraps JSON POSTs against a model-serving endpoint.
type httpBase struct {
	baseURL string
	client  *xhttp.Client
}

func newHTTPBase(baseURL string, timeout time.Duration) *httpBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &httpBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (b *httpBase) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("model http client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

func (b *httpBase) postJSONWithRetry(ctx context.Context, path string, payload, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.postJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = b.postJSON(ctx, path, payload, dest); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// HTTPClassifier asks a remote model server for the trade probability.
type HTTPClassifier struct {
	base     *httpBase
	attempts int
}

func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{base: newHTTPBase(baseURL, timeout), attempts: 2}
}

type predictReq struct {
	Features []float64 `json:"features"`
}

type predictResp struct {
	Probability float64 `json:"probability"`
}

func (c *HTTPClassifier) PredictProba(ctx context.Context, features []float64) (float64, error) {
	var resp predictResp
	start := time.Now()
	err := c.base.postJSONWithRetry(ctx, "/predict", predictReq{Features: features}, &resp, c.attempts)
	svcmetrics.Observe("model/predict", start, err)
	if err != nil {
		return 0, fmt.Errorf("remote predict: %w", err)
	}
	if resp.Probability < 0 || resp.Probability > 1 {
		return 0, fmt.Errorf("remote predict: probability %v out of range", resp.Probability)
	}
	return resp.Probability, nil
}

var _ domsvc.Classifier = (*HTTPClassifier)(nil)
