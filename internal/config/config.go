// Package config defines the configuration of a backtest run and the
// conversion of it into venues, securities, cost models and orders.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

// Config is populated from a TOML file and then overridden by SIMEX_*
// environment variables.
type Config struct {
	Run        RunConfig        `toml:"run"`
	Data       DataConfig       `toml:"data"`
	Broker     BrokerConfig     `toml:"broker"`
	Venues     []VenueConfig    `toml:"venues"`
	Securities []SecurityConfig `toml:"securities"`
	Costs      CostConfig       `toml:"costs"`
	Overrides  []OverrideConfig `toml:"overrides"`
	Orders     []OrderConfig    `toml:"orders"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Monitor    MonitorConfig    `toml:"monitor"`
	LogLevel   string           `toml:"log_level"`
	LogFormat  string           `toml:"log_format"`
}

type RunConfig struct {
	FundId           string      `toml:"fund_id"`
	StartBalance     fixed.Point `toml:"start_balance"`
	AllowShort       bool        `toml:"allow_short"`
	SnapshotInterval duration    `toml:"snapshot_interval"`
	BarPeriod        duration    `toml:"bar_period"`
	Start            time.Time   `toml:"start"`
	End              time.Time   `toml:"end"`
	RouterCapacity   int         `toml:"router_capacity"`
}

// DataConfig selects where ticks come from. Historical reads one binary
// file per symbol from Directory, named <SYMBOL>.bin.
type DataConfig struct {
	Source    string          `toml:"source"`
	Symbols   []string        `toml:"symbols"`
	Directory string          `toml:"directory"`
	DuckDB    string          `toml:"duckdb"`
	Synthetic SyntheticConfig `toml:"synthetic"`
}

type SyntheticConfig struct {
	StartPrice float64  `toml:"start_price"`
	Spread     float64  `toml:"spread"`
	Drift      float64  `toml:"drift"`
	Volatility float64  `toml:"volatility"`
	Interval   duration `toml:"interval"`
	Steps      int      `toml:"steps"`
	AvgVolume  float64  `toml:"avg_volume"`
	Digits     int      `toml:"digits"`
	Seed       uint64   `toml:"seed"`
}

type BrokerConfig struct {
	HighLiquidity bool   `toml:"high_liquidity"`
	FallbackVenue string `toml:"fallback_venue"`
}

// VenueConfig describes a trading session. Open and Close are offsets from
// local midnight, e.g. "9h30m" and "16h".
type VenueConfig struct {
	Name       string   `toml:"name"`
	Timezone   string   `toml:"timezone"`
	Open       duration `toml:"open"`
	Close      duration `toml:"close"`
	Weekdays   []string `toml:"weekdays"`
	AlwaysOpen bool     `toml:"always_open"`
}

type SecurityConfig struct {
	Symbol        string      `toml:"symbol"`
	Venue         string      `toml:"venue"`
	Class         string      `toml:"class"`
	QuoteCurrency string      `toml:"quote_currency"`
	Digits        int         `toml:"digits"`
	PipSize       fixed.Point `toml:"pip_size"`
	ContractSize  fixed.Point `toml:"contract_size"`
	LotSize       fixed.Point `toml:"lot_size"`
}

// CostConfig is the cost model applied to every security without an
// override. A positive volatility factor adds that multiple of the
// average true range over volatility_window quote bars to the slippage.
type CostConfig struct {
	Latency          duration    `toml:"latency"`
	Slippage         fixed.Point `toml:"slippage"`
	VolatilityFactor fixed.Point `toml:"volatility_factor"`
	VolatilityWindow int         `toml:"volatility_window"`
	Spread           fixed.Point `toml:"spread"`
	Fees             []FeeConfig `toml:"fees"`
}

// FeeConfig is one fee component. Kind is free, percentage, per_share,
// binance or taf.
type FeeConfig struct {
	Kind      string      `toml:"kind"`
	Rate      fixed.Point `toml:"rate"`
	Min       fixed.Point `toml:"min"`
	Max       fixed.Point `toml:"max"`
	Scale     int         `toml:"scale"`
	SellsOnly bool        `toml:"sells_only"`
}

type OverrideConfig struct {
	Symbol string     `toml:"symbol"`
	Costs  CostConfig `toml:"costs"`
}

// OrderConfig is an order submitted once simulated time reaches At.
// Quantity is signed: positive buys, negative sells.
type OrderConfig struct {
	At          time.Time   `toml:"at"`
	Symbol      string      `toml:"symbol"`
	Type        string      `toml:"type"`
	Quantity    fixed.Point `toml:"quantity"`
	LimitPrice  fixed.Point `toml:"limit_price"`
	StopPrice   fixed.Point `toml:"stop_price"`
	TimeInForce string      `toml:"time_in_force"`
	ExpireTime  time.Time   `toml:"expire_time"`
	FillPolicy  string      `toml:"fill_policy"`
	Comment     string      `toml:"comment"`
}

type LedgerConfig struct {
	Enabled  bool   `toml:"enabled"`
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	RunId    string `toml:"run_id"`
}

// MonitorConfig names the events logged by the monitor middleware, "all"
// logs every event.
type MonitorConfig struct {
	Events      []string `toml:"events"`
	Telemetry   bool     `toml:"telemetry"`
	Performance bool     `toml:"performance"`
}

// duration decodes TOML strings such as "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var (
	validSources    = map[string]bool{"historical": true, "duckdb": true, "synthetic": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"console": true, "json": true}
)

// Defaults returns a run on synthetic EURUSD data with no costs.
func Defaults() Config {
	return Config{
		Run: RunConfig{
			FundId:           "default",
			StartBalance:     fixed.FromInt(100000, 0),
			SnapshotInterval: duration{time.Minute},
			BarPeriod:        duration{time.Minute},
			Start:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			RouterCapacity:   1024,
		},
		Data: DataConfig{
			Source:  "synthetic",
			Symbols: []string{"EURUSD"},
			Synthetic: SyntheticConfig{
				StartPrice: 1.1,
				Spread:     0.0001,
				Volatility: 0.08,
				Interval:   duration{time.Second},
				Steps:      100000,
				AvgVolume:  100,
				Digits:     5,
				Seed:       1,
			},
		},
		Broker: BrokerConfig{
			FallbackVenue: "sandbox",
		},
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Run.FundId) == "" {
		errs = append(errs, "run: fund_id must not be empty")
	}
	if !c.Run.StartBalance.IsPositive() {
		errs = append(errs, fmt.Sprintf("run: start_balance must be positive, got %s", c.Run.StartBalance))
	}
	if c.Run.SnapshotInterval.Duration < 0 {
		errs = append(errs, "run: snapshot_interval must not be negative")
	}
	if c.Run.BarPeriod.Duration < 0 {
		errs = append(errs, "run: bar_period must not be negative")
	}
	if c.Run.RouterCapacity < 1 {
		errs = append(errs, "run: router_capacity must be >= 1")
	}
	if !c.Run.End.IsZero() && c.Run.End.Before(c.Run.Start) {
		errs = append(errs, "run: end must not be before start")
	}

	if !validSources[strings.ToLower(c.Data.Source)] {
		errs = append(errs, fmt.Sprintf("data: unknown source %q (valid: historical, duckdb, synthetic)", c.Data.Source))
	}
	if len(c.Data.Symbols) == 0 {
		errs = append(errs, "data: at least one symbol is required")
	}
	if c.Run.Start.IsZero() {
		errs = append(errs, "run: start must be set")
	}
	if c.Run.End.IsZero() && strings.ToLower(c.Data.Source) != "synthetic" {
		errs = append(errs, fmt.Sprintf("run: end is required for the %s source", c.Data.Source))
	}

	switch strings.ToLower(c.Data.Source) {
	case "historical":
		if c.Data.Directory == "" {
			errs = append(errs, "data: directory is required for the historical source")
		}
	case "duckdb":
		if c.Data.DuckDB == "" {
			errs = append(errs, "data: duckdb is required for the duckdb source")
		}
	case "synthetic":
		if c.Data.Synthetic.StartPrice <= 0 {
			errs = append(errs, "data.synthetic: start_price must be positive")
		}
		if c.Data.Synthetic.Steps < 1 {
			errs = append(errs, "data.synthetic: steps must be >= 1")
		}
	}

	venues := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
		}
		if venues[v.Name] {
			errs = append(errs, fmt.Sprintf("venues[%d]: duplicate venue %q", i, v.Name))
		}
		venues[v.Name] = true
		for _, day := range v.Weekdays {
			if _, ok := parseWeekday(day); !ok {
				errs = append(errs, fmt.Sprintf("venues[%d]: unknown weekday %q", i, day))
			}
		}
	}
	for i, s := range c.Securities {
		if s.Symbol == "" {
			errs = append(errs, fmt.Sprintf("securities[%d]: symbol must not be empty", i))
		}
		if s.Venue != "" && !venues[s.Venue] {
			errs = append(errs, fmt.Sprintf("securities[%d]: unknown venue %q", i, s.Venue))
		}
	}

	errs = append(errs, c.Costs.validate("costs")...)
	for i, o := range c.Overrides {
		if o.Symbol == "" {
			errs = append(errs, fmt.Sprintf("overrides[%d]: symbol must not be empty", i))
		}
		errs = append(errs, o.Costs.validate(fmt.Sprintf("overrides[%d].costs", i))...)
	}

	for i, o := range c.Orders {
		if _, err := o.order(); err != nil {
			errs = append(errs, fmt.Sprintf("orders[%d]: %v", i, err))
		}
	}

	if c.Ledger.Enabled && c.Ledger.DSN == "" && c.Ledger.Host == "" {
		errs = append(errs, "ledger: dsn or host is required when enabled")
	}
	if _, err := c.Monitor.flags(); err != nil {
		errs = append(errs, fmt.Sprintf("monitor: %v", err))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: console, json)", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c CostConfig) validate(section string) []string {
	var errs []string
	if c.Latency.Duration < 0 {
		errs = append(errs, section+": latency must not be negative")
	}
	if c.Slippage.IsNegative() {
		errs = append(errs, section+": slippage must not be negative")
	}
	if c.VolatilityFactor.IsNegative() {
		errs = append(errs, section+": volatility_factor must not be negative")
	}
	if c.VolatilityFactor.IsPositive() && c.VolatilityWindow < 1 {
		errs = append(errs, section+": volatility_window must be >= 1 when volatility_factor is set")
	}
	if c.Spread.IsNegative() {
		errs = append(errs, section+": spread must not be negative")
	}
	for i, f := range c.Fees {
		if _, err := f.model(); err != nil {
			errs = append(errs, fmt.Sprintf("%s.fees[%d]: %v", section, i, err))
		}
	}
	return errs
}
