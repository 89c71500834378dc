package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/internal/services/features"
	"CoinPull/internal/services/model"
	applogger "CoinPull/pkg/logger"
)

// Decoder turns a stored artifact into a classifier.
type Decoder func([]byte) (domsvc.Classifier, error)

func decodeLogistic(b []byte) (domsvc.Classifier, error) {
	m, err := model.Decode(b)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Scorer attaches a score and confidence to raw signals. It uses the loaded
// classifier when there is one and the rule score otherwise.
type Scorer struct {
	store   domrepo.ModelStore
	decode  Decoder
	metrics domrepo.Metrics
	log     *applogger.Logger

	defaultScore      float64
	defaultConfidence float64
	jitterMax         float64

	mu  sync.RWMutex
	clf domsvc.Classifier

	rngMu sync.Mutex
	rng   *rand.Rand
}

type ScorerOption func(*Scorer)

// WithRand sets the jitter source. Tests pass a seeded generator.
func WithRand(r *rand.Rand) ScorerOption { return func(s *Scorer) { s.rng = r } }

// WithDefaults sets the fallback score and confidence.
func WithDefaults(score, confidence float64) ScorerOption {
	return func(s *Scorer) { s.defaultScore, s.defaultConfidence = score, confidence }
}

// WithJitter sets the upper bound of the confidence jitter.
func WithJitter(max float64) ScorerOption { return func(s *Scorer) { s.jitterMax = max } }

// WithClassifier installs a classifier up front. Reload replaces it.
func WithClassifier(c domsvc.Classifier) ScorerOption { return func(s *Scorer) { s.clf = c } }

func WithDecoder(d Decoder) ScorerOption { return func(s *Scorer) { s.decode = d } }

// NewScorer builds a scorer. store may be nil when the classifier is remote
// or absent.
func NewScorer(store domrepo.ModelStore, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		store:             store,
		decode:            decodeLogistic,
		defaultScore:      60,
		defaultConfidence: 70,
		jitterMax:         10,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scorer) SetLogger(l *applogger.Logger) { s.log = l }

func (s *Scorer) SetMetrics(m domrepo.Metrics) { s.metrics = m }

// HasModel reports whether a classifier is loaded.
func (s *Scorer) HasModel() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clf != nil
}

// Swap replaces the classifier. nil switches to the fallback.
func (s *Scorer) Swap(c domsvc.Classifier) {
	s.mu.Lock()
	s.clf = c
	s.mu.Unlock()
}

// Reload reads the artifact from the model store. A missing artifact
// leaves the scorer on the fallback and is not an error.
func (s *Scorer) Reload(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	b, err := s.store.Load(ctx)
	if errors.Is(err, models.ErrModelUnavailable) {
		s.info("no trained model, using rule scores")
		s.Swap(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("scorer reload: %w", err)
	}
	clf, err := s.decode(b)
	if err != nil {
		return fmt.Errorf("scorer reload: %w", err)
	}
	s.Swap(clf)
	s.info("model loaded", applogger.Int("bytes", len(b)))
	return nil
}

// ExtractFeatures builds the classifier input vector.
func (s *Scorer) ExtractFeatures(in models.FeatureInput) []float64 {
	return features.Extract(in)
}

// Enhance scores raw. It never fails; classifier errors fall back to the
// rule score.
func (s *Scorer) Enhance(ctx context.Context, raw models.RawSignal) models.EnhancedSignal {
	s.mu.RLock()
	clf := s.clf
	s.mu.RUnlock()

	if clf != nil {
		p, err := clf.PredictProba(ctx, s.ExtractFeatures(models.FeatureInputFor(raw)))
		if err == nil && !math.IsNaN(p) {
			score := round2(p * 100)
			return models.EnhancedSignal{
				RawSignal:  raw,
				Score:      score,
				Confidence: round2(math.Min(score+s.jitter(), 100)),
				ScoredBy:   models.ScoredByModel,
			}
		}
		if err == nil {
			err = fmt.Errorf("probability is NaN")
		}
		if s.metrics != nil {
			s.metrics.RecordError("classifier")
		}
		if s.log != nil {
			s.log.Warn("classifier failed, using rule score", applogger.String("symbol", raw.Symbol), applogger.Error(err))
		}
	}
	return s.fallback(raw)
}

func (s *Scorer) fallback(raw models.RawSignal) models.EnhancedSignal {
	score := raw.RuleScore
	if score == 0 {
		score = s.defaultScore
	}
	return models.EnhancedSignal{
		RawSignal:  raw,
		Score:      score,
		Confidence: s.defaultConfidence,
		ScoredBy:   models.ScoredByFallback,
	}
}

func (s *Scorer) jitter() float64 {
	if s.jitterMax <= 0 {
		return 0
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() * s.jitterMax
}

func (s *Scorer) info(msg string, fields ...applogger.Field) {
	if s.log != nil {
		s.log.Info(msg, fields...)
	}
}
