package trend

import "time"

// State is the discrete trend posture of one position's market.
type State string

const (
	// StateNone: insufficient history, or context was reset after a full
	// structural invalidation.
	StateNone State = "S0"
	// StateEarly: clear upward posture above the fast average.
	StateEarly State = "S1"
	// StatePullback: consolidation back toward the medium average.
	StatePullback State = "S2"
	// StateMature: extended far above baseline, or trading heavy after a
	// deeper break while the long horizon still holds.
	StateMature State = "S3"
)

// Row is one closed-bar indicator snapshot, oldest horizon last. EMA333 is
// only meaningful when HasEMA333 is set.
type Row struct {
	TS        time.Time
	Close     float64
	EMA20     float64
	EMA60     float64
	EMA120    float64
	EMA333    float64
	HasEMA333 bool
	ATR       float64
	RSI       float64
	VolumeZ   float64
	ADX       float64
}

// SubScores are continuous diagnostics in [0,1] emitted alongside the flags.
// They are recorded for observability and feed nothing downstream.
type SubScores struct {
	TrendStrength float64 `json:"trend_strength"`
	Extension     float64 `json:"extension"`
	PullbackDepth float64 `json:"pullback_depth"`
	VolumeSurge   float64 `json:"volume_surge"`
}

// Output is the engine verdict for one bar: the (possibly new) state plus the
// full flag set. Several flags can be raised at once; precedence is the
// decision layer's concern.
type Output struct {
	State           State
	BuySignal       bool
	BuyFlag         bool
	FirstDipBuy     bool
	TrimFlag        bool
	EmergencyExit   bool
	ReclaimedEMA333 bool
	ExitPosition    bool
	SubScores       SubScores
	Reason          string
}

// AnyEntry reports whether any entry-class flag is raised.
func (o Output) AnyEntry() bool {
	return o.BuySignal || o.BuyFlag || o.FirstDipBuy
}

// prevBar is the slice of the previous row the machine needs for cross and
// band-exit detection.
type prevBar struct {
	TS     time.Time `json:"ts"`
	Close  float64   `json:"close"`
	EMA20  float64   `json:"ema20"`
	EMA60  float64   `json:"ema60"`
	EMA120 float64   `json:"ema120"`
}

// Context is the persisted per-position machine state. It round-trips through
// the position feature bag between evaluations.
type Context struct {
	State           State     `json:"state"`
	Prev            prevBar   `json:"prev"`
	LocalHigh       float64   `json:"local_high"`
	FirstDipArmed   bool      `json:"first_dip_armed"`
	EmergencyExited bool      `json:"emergency_exited"`
	Provisional     bool      `json:"provisional"`
	EnteredStateAt  time.Time `json:"entered_state_at"`
	Bars            int       `json:"bars"`
}

// NewContext returns a cold-start context.
func NewContext() Context {
	return Context{State: StateNone}
}

// Reset clears everything trend-related while keeping the bar count. Used
// after a full structural invalidation and after a closed position re-arms.
func (c Context) Reset() Context {
	return Context{State: StateNone, Bars: c.Bars, Prev: c.Prev}
}
