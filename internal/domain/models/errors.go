package models

import "errors"

// Rejection reasons. The analyzer records these on its trace and metrics but
// returns an absent signal instead of an error.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrFilterRejected   = errors.New("filter rejected")
	ErrNoConsensus      = errors.New("no timeframe consensus")
)

var (
	ErrInvalidSignal       = errors.New("invalid signal")
	ErrModelUnavailable    = errors.New("model unavailable")
	ErrInsufficientSamples = errors.New("insufficient training samples")
	ErrNoTimeframes        = errors.New("no timeframes configured")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrScanInProgress      = errors.New("scan already in progress")
	ErrAlreadyRunning      = errors.New("scheduler already running")
	ErrNotRunning          = errors.New("scheduler not running")
	ErrNotFound            = errors.New("not found")
)

// ReasonOf returns a short metric label for a rejection error.
func ReasonOf(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrFilterRejected):
		return "filter_rejected"
	case errors.Is(err, ErrNoConsensus):
		return "no_consensus"
	case errors.Is(err, ErrInvalidSignal):
		return "invalid_signal"
	default:
		return "other"
	}
}
