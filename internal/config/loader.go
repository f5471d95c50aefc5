package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

const envPrefix = "SIMEX_"

// Load merges the TOML file at path over the defaults, loads a .env file
// when present and applies SIMEX_* overrides. An empty path skips the
// file. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("unable to decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	setStr(&cfg.Run.FundId, "RUN_FUND_ID")
	setBool(&cfg.Run.AllowShort, "RUN_ALLOW_SHORT")
	setDuration(&cfg.Run.SnapshotInterval, "RUN_SNAPSHOT_INTERVAL")
	setDuration(&cfg.Run.BarPeriod, "RUN_BAR_PERIOD")
	setInt(&cfg.Run.RouterCapacity, "RUN_ROUTER_CAPACITY")
	if err := setPoint(&cfg.Run.StartBalance, "RUN_START_BALANCE"); err != nil {
		return err
	}
	if err := setTime(&cfg.Run.Start, "RUN_START"); err != nil {
		return err
	}
	if err := setTime(&cfg.Run.End, "RUN_END"); err != nil {
		return err
	}

	setStr(&cfg.Data.Source, "DATA_SOURCE")
	setStringSlice(&cfg.Data.Symbols, "DATA_SYMBOLS")
	setStr(&cfg.Data.Directory, "DATA_DIRECTORY")
	setStr(&cfg.Data.DuckDB, "DATA_DUCKDB")
	setInt(&cfg.Data.Synthetic.Steps, "DATA_SYNTHETIC_STEPS")
	setUint64(&cfg.Data.Synthetic.Seed, "DATA_SYNTHETIC_SEED")

	setBool(&cfg.Broker.HighLiquidity, "BROKER_HIGH_LIQUIDITY")
	setStr(&cfg.Broker.FallbackVenue, "BROKER_FALLBACK_VENUE")

	setBool(&cfg.Ledger.Enabled, "LEDGER_ENABLED")
	setStr(&cfg.Ledger.DSN, "LEDGER_DSN")
	setStr(&cfg.Ledger.Host, "LEDGER_HOST")
	setStr(&cfg.Ledger.Port, "LEDGER_PORT")
	setStr(&cfg.Ledger.User, "LEDGER_USER")
	setStr(&cfg.Ledger.Password, "LEDGER_PASSWORD")
	setStr(&cfg.Ledger.Database, "LEDGER_DATABASE")
	setStr(&cfg.Ledger.RunId, "LEDGER_RUN_ID")

	setStringSlice(&cfg.Monitor.Events, "MONITOR_EVENTS")
	setBool(&cfg.Monitor.Telemetry, "MONITOR_TELEMETRY")
	setBool(&cfg.Monitor.Performance, "MONITOR_PERFORMANCE")

	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.LogFormat, "LOG_FORMAT")
	return nil
}

// Each setter only mutates the target when the variable is set and not
// empty. Malformed numbers and flags are ignored.

func env(key string) string {
	return os.Getenv(envPrefix + key)
}

func setStr(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := env(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := env(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := env(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := env(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setPoint(dst *fixed.Point, key string) error {
	if v := env(key); v != "" {
		p, err := fixed.Parse(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = p
	}
	return nil
}

func setTime(dst *time.Time, key string) error {
	if v := env(key); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = t
	}
	return nil
}

func setStringSlice(dst *[]string, key string) {
	if v := env(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
