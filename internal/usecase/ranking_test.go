package usecase

import (
	"testing"

	"CoinPull/internal/domain/models"
)

func scored(sym string, score float64) models.EnhancedSignal {
	return models.EnhancedSignal{RawSignal: models.RawSignal{Symbol: sym}, Score: score}
}

func TestRankAndSelect(t *testing.T) {
	in := []models.EnhancedSignal{scored("A", 40), scored("B", 95), scored("C", 70)}
	got := RankAndSelect(in, 2)
	if len(got) != 2 || got[0].Score != 95 || got[1].Score != 70 {
		t.Fatalf("got %+v", got)
	}
	if in[0].Symbol != "A" || in[1].Symbol != "B" {
		t.Fatalf("input reordered")
	}
}

func TestRankAndSelectEdges(t *testing.T) {
	in := []models.EnhancedSignal{scored("A", 50), scored("B", 50), scored("C", 60)}
	got := RankAndSelect(in, 10)
	if len(got) != 3 || got[0].Symbol != "C" || got[1].Symbol != "A" || got[2].Symbol != "B" {
		t.Fatalf("ties must keep input order: %+v", got)
	}
	if got := RankAndSelect(in, 0); len(got) != 0 || got == nil {
		t.Fatalf("topN 0 should give an empty slice, got %v", got)
	}
	if got := RankAndSelect(nil, 3); len(got) != 0 {
		t.Fatalf("empty input should give empty output")
	}
}
