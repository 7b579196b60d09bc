// Package config loads the decision engine's configuration: a YAML
// base file overridden field-by-field by the environment variables
// spec.md §6 enumerates. The merged, resolved configuration is what
// every other package consumes — no component reads os.Getenv itself.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Root is the fully-resolved configuration for one run.
type Root struct {
	Mode              string  `yaml:"mode"` // paper | real
	ExecutionEnabled  bool    `yaml:"execution_enabled"`
	MaxTradesPerRun   int     `yaml:"max_trades_per_run"`
	NotionalPerTrade  float64 `yaml:"notional_per_trade"`
	EdgeBase          float64 `yaml:"edge_base"`
	EdgeMid           float64 `yaml:"edge_mid"`
	EdgeHigh          float64 `yaml:"edge_high"`
	AskCap            float64 `yaml:"ask_cap"`
	SpreadMax         float64 `yaml:"spread_max"`
	CoreLoSec         float64 `yaml:"core_lo"`
	CoreHiSec         float64 `yaml:"core_hi"`
	PnLFloor          float64 `yaml:"pnl_floor"`
	CooldownSec       int     `yaml:"cooldown_sec"`
	RegimeModEnabled  bool    `yaml:"regime_mod_enabled"`
	ShareGranularity  float64 `yaml:"share_granularity"`
	MinNotional       float64 `yaml:"min_notional"`
	LogDir            string  `yaml:"log_dir"`
	RunID             string  `yaml:"run_id"`

	ControlRedisEnabled bool   `yaml:"control_redis_enabled"`
	ControlRedisAddr    string `yaml:"control_redis_addr"`
	ControlRedisChannel string `yaml:"control_redis_channel"`

	StatusAddr string `yaml:"status_addr"`

	LiveFeedURL      string `yaml:"live_feed_url"`
	LiveExecutionURL string `yaml:"live_execution_url"`
}

// Defaults is the locked configuration from spec.md §4/§6.
func Defaults() Root {
	return Root{
		Mode:                "paper",
		ExecutionEnabled:    false,
		MaxTradesPerRun:     1,
		NotionalPerTrade:    5.00,
		EdgeBase:            0.64,
		EdgeMid:             0.67,
		EdgeHigh:            0.70,
		AskCap:              0.68,
		SpreadMax:           0.02,
		CoreLoSec:           150,
		CoreHiSec:           225,
		PnLFloor:            -50,
		CooldownSec:         30,
		RegimeModEnabled:    false,
		ShareGranularity:    1.0,
		MinNotional:         1.0,
		LogDir:              "data/runs",
		ControlRedisEnabled: false,
		ControlRedisAddr:    "localhost:6379",
		ControlRedisChannel: "option15:control",
		StatusAddr:          ":8090",
	}
}

// Load reads the YAML base file at path (if it exists; a missing file
// is not an error — the locked defaults apply) and then overrides with
// any of the environment variables spec.md §6 enumerates.
func Load(path string) (Root, error) {
	c := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// no base file: defaults stand
		default:
			return c, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func applyEnvOverrides(c *Root) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = b
	}
	integer := func(name string, dst *int) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
	float := func(name string, dst *float64) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = f
	}

	str("MODE", &c.Mode)
	boolean("EXECUTION_ENABLED", &c.ExecutionEnabled)
	integer("MAX_TRADES_PER_RUN", &c.MaxTradesPerRun)
	float("NOTIONAL_PER_TRADE", &c.NotionalPerTrade)
	float("EDGE_BASE", &c.EdgeBase)
	float("EDGE_MID", &c.EdgeMid)
	float("EDGE_HIGH", &c.EdgeHigh)
	float("ASK_CAP", &c.AskCap)
	float("SPREAD_MAX", &c.SpreadMax)
	float("CORE_LO", &c.CoreLoSec)
	float("CORE_HI", &c.CoreHiSec)
	float("PNL_FLOOR", &c.PnLFloor)
	integer("COOLDOWN_SEC", &c.CooldownSec)
	boolean("REGIME_MOD_ENABLED", &c.RegimeModEnabled)
	float("SHARE_GRANULARITY", &c.ShareGranularity)
	float("MIN_NOTIONAL", &c.MinNotional)
	str("LOG_DIR", &c.LogDir)
	str("RUN_ID", &c.RunID)
	boolean("CONTROL_REDIS_ENABLED", &c.ControlRedisEnabled)
	str("CONTROL_REDIS_ADDR", &c.ControlRedisAddr)
	str("CONTROL_REDIS_CHANNEL", &c.ControlRedisChannel)
	str("STATUS_ADDR", &c.StatusAddr)
	str("LIVE_FEED_URL", &c.LiveFeedURL)
	str("LIVE_EXECUTION_URL", &c.LiveExecutionURL)

	if len(errs) > 0 {
		return fmt.Errorf("config: %d invalid environment overrides: %v", len(errs), errs)
	}
	return nil
}

// Validate applies the ConfigError class from spec.md §7: invalid
// configuration must be caught before any network I/O.
func (c Root) Validate() error {
	if c.Mode != "paper" && c.Mode != "real" {
		return fmt.Errorf("config: MODE must be 'paper' or 'real', got %q", c.Mode)
	}
	if c.Mode == "real" && c.LiveFeedURL == "" {
		return fmt.Errorf("config: LIVE_FEED_URL is required when MODE=real")
	}
	if c.Mode == "real" && c.ExecutionEnabled && c.LiveExecutionURL == "" {
		return fmt.Errorf("config: LIVE_EXECUTION_URL is required when MODE=real and EXECUTION_ENABLED=true")
	}
	if c.CoreLoSec >= c.CoreHiSec {
		return fmt.Errorf("config: CORE_LO (%v) must be less than CORE_HI (%v)", c.CoreLoSec, c.CoreHiSec)
	}
	if c.MaxTradesPerRun < 0 {
		return fmt.Errorf("config: MAX_TRADES_PER_RUN must be >= 0")
	}
	if c.ShareGranularity <= 0 {
		return fmt.Errorf("config: SHARE_GRANULARITY must be > 0")
	}
	if c.MinNotional < 0 {
		return fmt.Errorf("config: MIN_NOTIONAL must be >= 0")
	}
	return nil
}
