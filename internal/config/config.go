package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig         `mapstructure:"app"`
	Server     ServerConfig      `mapstructure:"server"`
	Log        LogConfig         `mapstructure:"log"`
	DB         DBConfig          `mapstructure:"db"`
	Cron       CronConfig        `mapstructure:"cron"`
	Engine     EngineConfig      `mapstructure:"engine"`
	Trend      TrendConfig       `mapstructure:"trend"`
	Scoring    ScoringConfig     `mapstructure:"scoring"`
	Sizing     SizingConfig      `mapstructure:"sizing"`
	Executor   ExecutorConfig    `mapstructure:"executor"`
	Phase      PhaseConfig       `mapstructure:"phase"`
	Timeframes []TimeframeConfig `mapstructure:"timeframes"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Promotion string `mapstructure:"promotion"`
	Bootstrap string `mapstructure:"bootstrap"`
}

// EngineConfig holds the orchestrator-level knobs shared by all timeframes.
type EngineConfig struct {
	MinBars                int           `mapstructure:"min_bars"`
	IdempotencyWindow      time.Duration `mapstructure:"idempotency_window"`
	Workers                int           `mapstructure:"workers"`
	CatchupRows            int           `mapstructure:"catchup_rows"`
	FirstDipResetOnReentry bool          `mapstructure:"first_dip_reset_on_reentry"`
}

type TrendConfig struct {
	BandATR              float64 `mapstructure:"band_atr"`
	ExtensionATR         float64 `mapstructure:"extension_atr"`
	EmergencyBreakBuffer float64 `mapstructure:"emergency_break_buffer"`
	RSIHot               float64 `mapstructure:"rsi_hot"`
}

type ScoringConfig struct {
	TTL            time.Duration      `mapstructure:"ttl"`
	PhaseBias      map[string]float64 `mapstructure:"phase_bias"`
	CutWeight      float64            `mapstructure:"cut_weight"`
	DeployWeight   float64            `mapstructure:"deploy_weight"`
	DrawdownWeight float64            `mapstructure:"drawdown_weight"`
	CushionWeight  float64            `mapstructure:"cushion_weight"`
}

type TierFractions struct {
	Aggressive float64 `mapstructure:"aggressive"`
	Normal     float64 `mapstructure:"normal"`
	Patient    float64 `mapstructure:"patient"`
}

type SizingConfig struct {
	AggressiveCut     float64       `mapstructure:"aggressive_cut"`
	NormalCut         float64       `mapstructure:"normal_cut"`
	EntryS1           TierFractions `mapstructure:"entry_s1"`
	EntryLate         TierFractions `mapstructure:"entry_late"`
	Trim              TierFractions `mapstructure:"trim"`
	FirstDipBoost     float64       `mapstructure:"first_dip_boost"`
	EntryMultMin      float64       `mapstructure:"entry_mult_min"`
	EntryMultMax      float64       `mapstructure:"entry_mult_max"`
	TrimMultMin       float64       `mapstructure:"trim_mult_min"`
	TrimMultMax       float64       `mapstructure:"trim_mult_max"`
	ProfitShrinkStart float64       `mapstructure:"profit_shrink_start"`
	ProfitShrinkEnd   float64       `mapstructure:"profit_shrink_end"`
	DrawdownBoostCap  float64       `mapstructure:"drawdown_boost_cap"`
	TrimRampStart     float64       `mapstructure:"trim_ramp_start"`
}

type ExecutorConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	LiveEnabled bool          `mapstructure:"live_enabled"`
}

type PhaseConfig struct {
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
	Default    string        `mapstructure:"default"`
}

type TimeframeConfig struct {
	Name          string  `mapstructure:"name"`
	Cron          string  `mapstructure:"cron"`
	AllocationPct float64 `mapstructure:"allocation_pct"`
	Enabled       bool    `mapstructure:"enabled"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.promotion", "@every 5m")
	v.SetDefault("cron.bootstrap", "@every 1h")

	v.SetDefault("engine.min_bars", 350)
	v.SetDefault("engine.idempotency_window", "3m")
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.catchup_rows", 500)
	v.SetDefault("engine.first_dip_reset_on_reentry", true)

	v.SetDefault("trend.band_atr", 1.0)
	v.SetDefault("trend.extension_atr", 4.0)
	v.SetDefault("trend.emergency_break_buffer", 0.02)
	v.SetDefault("trend.rsi_hot", 70.0)

	v.SetDefault("scoring.ttl", "5m")
	v.SetDefault("scoring.phase_bias", map[string]float64{
		"expansion":    0.75,
		"neutral":      0.50,
		"contraction":  0.30,
		"capitulation": 0.15,
	})
	v.SetDefault("scoring.cut_weight", 0.5)
	v.SetDefault("scoring.deploy_weight", 0.25)
	v.SetDefault("scoring.drawdown_weight", 0.15)
	v.SetDefault("scoring.cushion_weight", 0.2)

	v.SetDefault("sizing.aggressive_cut", 0.7)
	v.SetDefault("sizing.normal_cut", 0.3)
	v.SetDefault("sizing.entry_s1.aggressive", 0.50)
	v.SetDefault("sizing.entry_s1.normal", 0.30)
	v.SetDefault("sizing.entry_s1.patient", 0.10)
	v.SetDefault("sizing.entry_late.aggressive", 0.25)
	v.SetDefault("sizing.entry_late.normal", 0.15)
	v.SetDefault("sizing.entry_late.patient", 0.05)
	v.SetDefault("sizing.trim.aggressive", 0.50)
	v.SetDefault("sizing.trim.normal", 0.10)
	v.SetDefault("sizing.trim.patient", 0.03)
	v.SetDefault("sizing.first_dip_boost", 2.0)
	v.SetDefault("sizing.entry_mult_min", 0.3)
	v.SetDefault("sizing.entry_mult_max", 1.5)
	v.SetDefault("sizing.trim_mult_min", 0.3)
	v.SetDefault("sizing.trim_mult_max", 3.0)
	v.SetDefault("sizing.profit_shrink_start", 1.0)
	v.SetDefault("sizing.profit_shrink_end", 1.5)
	v.SetDefault("sizing.drawdown_boost_cap", 0.2)
	v.SetDefault("sizing.trim_ramp_start", 0.5)

	v.SetDefault("executor.base_url", "http://localhost:9010")
	v.SetDefault("executor.timeout", "15s")
	v.SetDefault("executor.live_enabled", false)

	v.SetDefault("phase.cache_ttl", "1m")
	v.SetDefault("phase.stale_after", "2h")
	v.SetDefault("phase.default", "neutral")

	v.SetDefault("timeframes", []map[string]any{
		{"name": "15m", "cron": "5 */15 * * * *", "allocation_pct": 0.10, "enabled": true},
		{"name": "1h", "cron": "10 0 * * * *", "allocation_pct": 0.20, "enabled": true},
		{"name": "4h", "cron": "15 0 */4 * * *", "allocation_pct": 0.30, "enabled": true},
		{"name": "1d", "cron": "20 0 0 * * *", "allocation_pct": 0.40, "enabled": true},
	})

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Timeframe returns the configuration for the named timeframe, if present.
func (c Config) Timeframe(name string) (TimeframeConfig, bool) {
	for _, tf := range c.Timeframes {
		if tf.Name == name {
			return tf, true
		}
	}
	return TimeframeConfig{}, false
}
