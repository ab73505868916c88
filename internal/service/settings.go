package service

import (
	"context"
	"strings"
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/executor"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
)

// SettingEnginePaused is the global kill-switch: when on, decision ticks
// return without evaluating anything.
const SettingEnginePaused = "engine.paused"

func DefaultSwitches() map[string]bool {
	return map[string]bool{
		executor.SettingLiveEnabled: false,
		SettingEnginePaused:         false,
	}
}

// SettingsService reads and writes runtime switches stored as JSON values in
// the system_settings table.
type SettingsService struct {
	Repo repository.Repository
}

// EnsureDefaults seeds missing switches. Existing values are never
// overwritten: operator state survives restarts.
func (s *SettingsService) EnsureDefaults(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		item := &models.SystemSetting{
			Key:         key,
			Value:       models.BoolValue(enabled),
			Description: "runtime switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil {
		return fallback
	}
	enabled, ok := item.Bool()
	if !ok {
		return fallback
	}
	return enabled
}

func (s *SettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	item := &models.SystemSetting{
		Key:         key,
		Value:       models.BoolValue(enabled),
		Description: "runtime switch",
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}
