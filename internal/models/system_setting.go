package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SystemSetting is one row of the runtime switch registry: the engine pause
// flag, the live-trading toggle, and any future operator knobs. Values are
// JSON so a switch can later grow structure without a migration.
type SystemSetting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Key string `gorm:"type:varchar(120);not null;uniqueIndex"`

	Value datatypes.JSON `gorm:"type:jsonb;not null"`

	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// Bool decodes the value as a plain boolean switch. ok is false when the
// value is empty or not a JSON boolean, in which case callers fall back to
// their configured default.
func (s *SystemSetting) Bool() (value, ok bool) {
	if s == nil || len(s.Value) == 0 {
		return false, false
	}
	if err := json.Unmarshal(s.Value, &value); err != nil {
		return false, false
	}
	return value, true
}

// BoolValue encodes a boolean switch value for storage.
func BoolValue(enabled bool) datatypes.JSON {
	raw, _ := json.Marshal(enabled)
	return datatypes.JSON(raw)
}
