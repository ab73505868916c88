package trend

// Config tunes the band and break geometry. Zero values fall back to the
// documented defaults.
type Config struct {
	// BandATR is the half-width of the retest band around an average, in ATR
	// units.
	BandATR float64
	// ExtensionATR is the distance above the baseline average, in ATR units,
	// that marks a market as extended.
	ExtensionATR float64
	// EmergencyBreakBuffer is the fractional margin under the long-horizon
	// average that makes a break decisive.
	EmergencyBreakBuffer float64
	// RSIHot is the overbought threshold used by renewed-strength trims.
	RSIHot float64
	// ResetFirstDipOnReclaim re-arms the first-dip flag after an
	// emergency-exit / reclaim round trip.
	ResetFirstDipOnReclaim bool
}

func (c Config) withDefaults() Config {
	if c.BandATR <= 0 {
		c.BandATR = 1.0
	}
	if c.ExtensionATR <= 0 {
		c.ExtensionATR = 4.0
	}
	if c.EmergencyBreakBuffer <= 0 {
		c.EmergencyBreakBuffer = 0.02
	}
	if c.RSIHot <= 0 {
		c.RSIHot = 70
	}
	return c
}

// Engine is the pure four-state trend machine. It holds no position or market
// state of its own; everything lives in the Context the caller persists.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Advance folds one closed bar into the context and returns the verdict for
// that bar. It is deterministic and side-effect free.
func (e *Engine) Advance(ctx Context, row Row) (Context, Output) {
	out := Output{State: ctx.State, Reason: "hold"}

	// A tick can fire before a new bar lands; never fold the same bar twice.
	if !ctx.Prev.TS.IsZero() && !row.TS.After(ctx.Prev.TS) {
		out.Reason = "no new bar"
		out.SubScores = e.subScores(row)
		return ctx, out
	}

	ctx.Bars++
	out.SubScores = e.subScores(row)

	// The long horizon and a usable ATR are the engine's own data floor.
	if row.ATR <= 0 || !row.HasEMA333 || row.Close <= 0 {
		out.Reason = "insufficient indicator history"
		ctx = rememberRow(ctx, row)
		return ctx, out
	}

	band := e.cfg.BandATR * row.ATR

	// Structural invalidation: the fast structure has broken down below the
	// medium average. A decisive long-horizon break in the mature state takes
	// the emergency path instead, keeping its reclaim memory; after an
	// emergency exit nothing is held and the context waits for the reclaim.
	awaitingReclaim := ctx.State == StateMature && ctx.EmergencyExited
	decisiveBreak := ctx.State == StateMature && row.Close < row.EMA333*(1-e.cfg.EmergencyBreakBuffer)
	if ctx.State != StateNone && !awaitingReclaim && !decisiveBreak && row.Close < row.EMA60-band && row.EMA20 < row.EMA60 {
		out.ExitPosition = true
		out.Reason = "fast structure broken below medium average"
		ctx = ctx.Reset()
		ctx = rememberRow(ctx, row)
		out.State = ctx.State
		return ctx, out
	}

	next := ctx.State
	switch ctx.State {
	case StateNone:
		next = e.stepNone(&ctx, row, &out)
	case StateEarly:
		next = e.stepEarly(&ctx, row, band, &out)
	case StatePullback:
		next = e.stepPullback(&ctx, row, band, &out)
	case StateMature:
		next = e.stepMature(&ctx, row, band, &out)
	default:
		next = StateNone
	}

	if next != ctx.State {
		ctx.State = next
		ctx.EnteredStateAt = row.TS
		ctx.LocalHigh = row.Close
		ctx.Provisional = false
		if next == StateMature {
			ctx.FirstDipArmed = true
		}
		if next == StateEarly {
			out.BuySignal = true
			if out.Reason == "hold" {
				out.Reason = "entered early uptrend"
			}
		}
	} else if row.Close > ctx.LocalHigh {
		ctx.LocalHigh = row.Close
	}

	// A bootstrap that landed mid-trend is provisional: entry flags stay
	// suppressed until one live transition re-confirms the state.
	if ctx.Provisional && out.AnyEntry() {
		out.BuySignal = false
		out.BuyFlag = false
		out.FirstDipBuy = false
		out.Reason = "provisional state, entry suppressed"
	}

	out.State = ctx.State
	ctx = rememberRow(ctx, row)
	return ctx, out
}

func (e *Engine) stepNone(ctx *Context, row Row, out *Output) State {
	if ctx.Prev.TS.IsZero() {
		return StateNone
	}
	crossedUp := ctx.Prev.Close <= ctx.Prev.EMA20 && row.Close > row.EMA20
	rising := row.EMA20 > ctx.Prev.EMA20
	if crossedUp && rising && row.EMA20 >= row.EMA60 {
		out.Reason = "fast average reclaimed with upward posture"
		return StateEarly
	}
	return StateNone
}

func (e *Engine) stepEarly(ctx *Context, row Row, band float64, out *Output) State {
	if row.Close > row.EMA120+e.cfg.ExtensionATR*row.ATR {
		out.Reason = "extended far above baseline"
		return StateMature
	}
	if row.Close < row.EMA20 && row.Close <= row.EMA60+band {
		out.Reason = "pullback toward medium average"
		return StatePullback
	}
	return StateEarly
}

func (e *Engine) stepPullback(ctx *Context, row Row, band float64, out *Output) State {
	// Deeper break while the fast structure still holds: late-stage posture.
	if row.Close < row.EMA60-band {
		out.Reason = "deeper break below medium average"
		return StateMature
	}
	rising := row.EMA20 > ctx.Prev.EMA20
	if row.Close > row.EMA20 && rising {
		out.Reason = "reclaimed fast average"
		return StateEarly
	}
	if row.Close > row.EMA20 && row.Close > ctx.LocalHigh && row.RSI >= e.cfg.RSIHot {
		out.TrimFlag = true
		out.Reason = "renewed strength into overbought"
		return StatePullback
	}
	prevInBand := ctx.Prev.Close <= ctx.Prev.EMA60+band
	if prevInBand && row.Close > row.EMA60 && row.Close >= ctx.Prev.Close {
		out.BuyFlag = true
		out.Reason = "qualifying retest of medium average"
	}
	return StatePullback
}

func (e *Engine) stepMature(ctx *Context, row Row, band float64, out *Output) State {
	decisiveBreak := row.Close < row.EMA333*(1-e.cfg.EmergencyBreakBuffer)

	if !ctx.EmergencyExited && decisiveBreak {
		out.EmergencyExit = true
		ctx.EmergencyExited = true
		out.Reason = "long-horizon average broken decisively"
		return StateMature
	}

	if ctx.EmergencyExited {
		if row.Close > row.EMA333 {
			out.ReclaimedEMA333 = true
			ctx.EmergencyExited = false
			if e.cfg.ResetFirstDipOnReclaim {
				ctx.FirstDipArmed = true
			}
			out.Reason = "long-horizon average reclaimed"
			return StateMature
		}
		out.Reason = "awaiting long-horizon reclaim"
		return StateMature
	}

	extended := row.Close > row.EMA120+e.cfg.ExtensionATR*row.ATR
	if extended && (row.Close > ctx.LocalHigh || row.RSI >= e.cfg.RSIHot) {
		out.TrimFlag = true
		out.Reason = "extended above baseline"
		return StateMature
	}

	// Disciplined dip: the previous close tagged the baseline band and this
	// bar recovers above the baseline with the long horizon intact.
	prevInDip := ctx.Prev.Close <= ctx.Prev.EMA120+band
	recovered := row.Close > row.EMA120 && row.Close > ctx.Prev.Close && row.Close >= row.EMA333
	if prevInDip && recovered {
		if ctx.FirstDipArmed {
			out.FirstDipBuy = true
			ctx.FirstDipArmed = false
			out.Reason = "first dip to baseline recovered"
		} else {
			out.BuyFlag = true
			out.Reason = "dip to baseline recovered"
		}
		return StateMature
	}

	return StateMature
}

func (e *Engine) subScores(row Row) SubScores {
	s := SubScores{
		TrendStrength: clamp01(row.ADX / 50),
		VolumeSurge:   clamp01(row.VolumeZ / 3),
	}
	if row.ATR > 0 {
		if row.Close > row.EMA120 {
			s.Extension = clamp01((row.Close - row.EMA120) / (e.cfg.ExtensionATR * row.ATR))
		}
		if row.Close < row.EMA20 {
			s.PullbackDepth = clamp01((row.EMA20 - row.Close) / (2 * row.ATR))
		}
	}
	return s
}

// Bootstrap folds the full indicator history from a cold start. Only S0 and
// S3 are trusted landing states; S1/S2 are marked provisional so live
// evaluations hold back entry flags until the state re-confirms. Bootstrap
// verdicts carry no flags.
func (e *Engine) Bootstrap(rows []Row) (Context, Output) {
	ctx := NewContext()
	var out Output
	for _, row := range rows {
		ctx, out = e.Advance(ctx, row)
	}
	if ctx.State == StateEarly || ctx.State == StatePullback {
		ctx.Provisional = true
	}
	out = Output{State: ctx.State, SubScores: out.SubScores, Reason: "bootstrap"}
	return ctx, out
}

func rememberRow(ctx Context, row Row) Context {
	ctx.Prev = prevBar{
		TS:     row.TS,
		Close:  row.Close,
		EMA20:  row.EMA20,
		EMA60:  row.EMA60,
		EMA120: row.EMA120,
	}
	return ctx
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
