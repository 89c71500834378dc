package usecase

import (
	"sort"

	"CoinPull/internal/domain/models"
)

// RankAndSelect returns the topN signals by score, highest first. Equal
// scores keep their input order. The input slice is not modified.
func RankAndSelect(signals []models.EnhancedSignal, topN int) []models.EnhancedSignal {
	if topN <= 0 || len(signals) == 0 {
		return []models.EnhancedSignal{}
	}
	out := make([]models.EnhancedSignal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
