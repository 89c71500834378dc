package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
)

// loadSettings overlays stored operator settings on defaults. Unparsable or
// non-positive stored values are ignored.
func loadSettings(ctx context.Context, store domrepo.SettingsStore, def models.AutomationSettings) (models.AutomationSettings, error) {
	out := def
	if store == nil {
		return out, nil
	}
	if v, ok, err := store.Get(ctx, models.SettingScanInterval); err != nil {
		return def, fmt.Errorf("settings: %w", err)
	} else if ok {
		if secs, perr := strconv.Atoi(v); perr == nil && secs > 0 {
			out.Interval = time.Duration(secs) * time.Second
		}
	}
	if v, ok, err := store.Get(ctx, models.SettingTopN); err != nil {
		return def, fmt.Errorf("settings: %w", err)
	} else if ok {
		if n, perr := strconv.Atoi(v); perr == nil && n > 0 {
			out.TopN = n
		}
	}
	return out, nil
}

// saveSettings validates the whole update before writing any of it, with or
// without a store.
func saveSettings(ctx context.Context, store domrepo.SettingsStore, u models.SettingsUpdate) error {
	if u.IntervalSeconds != nil && *u.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: interval %d", models.ErrInvalidConfig, *u.IntervalSeconds)
	}
	if u.TopN != nil && *u.TopN <= 0 {
		return fmt.Errorf("%w: top_n %d", models.ErrInvalidConfig, *u.TopN)
	}
	if store == nil {
		return nil
	}
	if u.IntervalSeconds != nil {
		if err := store.Set(ctx, models.SettingScanInterval, strconv.Itoa(*u.IntervalSeconds)); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}
	if u.TopN != nil {
		if err := store.Set(ctx, models.SettingTopN, strconv.Itoa(*u.TopN)); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}
	return nil
}
