package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/services/features"
	"CoinPull/internal/services/model"
	applogger "CoinPull/pkg/logger"
)

// pseudoLabelScore is the score above which a stored signal counts as a
// winning pseudo-trade.
const pseudoLabelScore = 70

// Trainer fits the confidence classifier from closed trades and signal
// history and hands it to the scorer.
type Trainer struct {
	signals domrepo.SignalStore
	trades  domrepo.TradeStore
	store   domrepo.ModelStore
	scorer  *Scorer
	log     *applogger.Logger
	now     func() time.Time

	minSamples   int
	historyLimit int
	seed         int64
	testShare    float64
	fit          model.FitOptions
}

type TrainerOption func(*Trainer)

func WithMinSamples(n int) TrainerOption { return func(t *Trainer) { t.minSamples = n } }

func WithHistoryLimit(n int) TrainerOption { return func(t *Trainer) { t.historyLimit = n } }

func WithFitOptions(o model.FitOptions) TrainerOption { return func(t *Trainer) { t.fit = o } }

func NewTrainer(signals domrepo.SignalStore, trades domrepo.TradeStore, store domrepo.ModelStore, scorer *Scorer, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		signals:      signals,
		trades:       trades,
		store:        store,
		scorer:       scorer,
		now:          time.Now,
		minSamples:   30,
		historyLimit: 5000,
		seed:         42,
		testShare:    0.2,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Trainer) SetLogger(l *applogger.Logger) { t.log = l }

// Train runs one training pass. On failure the scorer keeps its current
// classifier.
func (t *Trainer) Train(ctx context.Context) (models.TrainReport, error) {
	report, err := t.train(ctx)
	if err != nil {
		if t.log != nil {
			t.log.Error("training failed", applogger.Error(err), applogger.Int("samples", report.Samples))
		}
		return report, err
	}
	if t.log != nil {
		t.log.Info("model trained",
			applogger.Int("samples", report.Samples),
			applogger.Int("trades", report.Trades),
			applogger.Int("signals", report.Signals),
			applogger.Float64("accuracy", report.Accuracy),
		)
	}
	return report, nil
}

func (t *Trainer) train(ctx context.Context) (models.TrainReport, error) {
	var report models.TrainReport
	samples, err := t.collect(ctx, &report)
	if err != nil {
		return report, err
	}
	report.Samples = len(samples)
	if len(samples) < t.minSamples {
		return report, fmt.Errorf("train: %w: have %d, need %d", models.ErrInsufficientSamples, len(samples), t.minSamples)
	}

	rng := rand.New(rand.NewSource(t.seed))
	rng.Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })
	nTest := int(float64(len(samples)) * t.testShare)
	if nTest < 1 {
		nTest = 1
	}
	trainSet, testSet := samples[:len(samples)-nTest], samples[len(samples)-nTest:]
	report.TrainSize, report.TestSize = len(trainSet), len(testSet)

	Xtr, ytr := t.matrix(trainSet)
	clf, err := model.Fit(Xtr, ytr, t.fit)
	if err != nil {
		return report, fmt.Errorf("train: %w", err)
	}
	clf.TrainedAt = t.now().UTC()
	Xte, yte := t.matrix(testSet)
	report.Accuracy = round2(clf.Accuracy(Xte, yte))
	report.TrainedAt = clf.TrainedAt

	artifact, err := clf.Marshal()
	if err != nil {
		return report, fmt.Errorf("train: %w", err)
	}
	if t.store != nil {
		if err := t.store.Save(ctx, artifact); err != nil {
			return report, fmt.Errorf("train: save model: %w", err)
		}
	}
	if t.scorer != nil {
		t.scorer.Swap(clf)
	}
	return report, nil
}

// collect merges real trade outcomes and signal pseudo-trades. Rows without
// entry, targets or side are skipped.
func (t *Trainer) collect(ctx context.Context, report *models.TrainReport) ([]models.TrainingSample, error) {
	var out []models.TrainingSample
	if t.trades != nil {
		trades, err := t.trades.Closed(ctx, t.historyLimit)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("train: load trades: %w", err)
		}
		for _, tr := range trades {
			in := tradeFeatures(tr)
			if !usable(in) {
				report.Skipped++
				continue
			}
			label := 0
			if tr.PnL > 0 {
				label = 1
			}
			out = append(out, models.TrainingSample{Input: in, Label: label})
			report.Trades++
		}
	}
	if t.signals != nil {
		sigs, err := t.signals.Since(ctx, time.Time{}, t.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("train: load signals: %w", err)
		}
		for _, s := range sigs {
			in := models.FeatureInputFor(s.RawSignal)
			in.Score, in.Confidence = s.Score, s.Confidence
			if !usable(in) {
				report.Skipped++
				continue
			}
			label := 0
			if s.Score > pseudoLabelScore {
				label = 1
			}
			out = append(out, models.TrainingSample{Input: in, Label: label})
			report.Signals++
		}
	}
	return out, nil
}

// tradeFeatures maps a trade to feature input. Trades carry no band
// direction so the side stands in for it.
func tradeFeatures(tr models.Trade) models.FeatureInput {
	trend := string(models.BandUp)
	if tr.Side == models.SideShort {
		trend = string(models.BandDown)
	}
	return models.FeatureInput{
		Entry:      tr.EntryPrice,
		TakeProfit: tr.TakeProfit,
		StopLoss:   tr.StopLoss,
		Trail:      tr.Trail,
		Score:      tr.Score,
		Confidence: tr.Confidence,
		Side:       tr.Side,
		Trend:      trend,
		Regime:     models.RegimeBreakout,
	}
}

func usable(in models.FeatureInput) bool {
	return in.Entry > 0 && in.TakeProfit > 0 && in.StopLoss > 0 && in.Side.Valid()
}

func (t *Trainer) matrix(ss []models.TrainingSample) ([][]float64, []int) {
	X := make([][]float64, len(ss))
	y := make([]int, len(ss))
	for i, s := range ss {
		X[i] = features.Extract(s.Input)
		y[i] = s.Label
	}
	return X, y
}
