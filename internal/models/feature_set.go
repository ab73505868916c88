package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const FeatureSetVersion = 2

// FeatureSet is the versioned feature bag stored on the position row. It
// carries the persisted trend-engine context, the cached risk scores, and a
// pointer to the indicator row the last evaluation consumed.
type FeatureSet struct {
	Version int `json:"version"`

	// Trend holds the engine's serialized context; the engine owns the shape.
	Trend json.RawMessage `json:"trend,omitempty"`

	Risk *RiskResult `json:"risk,omitempty"`

	IndicatorTS *time.Time `json:"indicator_ts,omitempty"`
}

// RiskResult is the cached scoring output mirrored into the feature bag.
type RiskResult struct {
	Aggression   float64   `json:"aggression"`
	ExitPressure float64   `json:"exit_pressure"`
	Phase        string    `json:"phase"`
	ComputedAt   time.Time `json:"computed_at"`
}

// FeatureSet decodes the position's feature bag. An empty or missing bag
// yields a fresh versioned set.
func (p *Position) FeatureSet() (FeatureSet, error) {
	if len(p.Features) == 0 {
		return FeatureSet{Version: FeatureSetVersion}, nil
	}
	var fs FeatureSet
	if err := json.Unmarshal(p.Features, &fs); err != nil {
		return FeatureSet{}, err
	}
	if fs.Version == 0 {
		fs.Version = FeatureSetVersion
	}
	return fs, nil
}

// SetFeatureSet encodes the bag back onto the position row.
func (p *Position) SetFeatureSet(fs FeatureSet) error {
	fs.Version = FeatureSetVersion
	raw, err := json.Marshal(fs)
	if err != nil {
		return err
	}
	p.Features = datatypes.JSON(raw)
	return nil
}
