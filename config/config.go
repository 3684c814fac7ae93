// Package config loads and validates the kernel's closed configuration
// set from the environment, using the same joho/godotenv-based boot
// idiom the corpus uses for its own .env-driven credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// TradingMode selects paper vs live execution.
type TradingMode string

const (
	ModePaper TradingMode = "paper"
	ModeLive  TradingMode = "live"
)

// Config is the closed configuration set, plus the ambient knobs (log
// level, HTTP port, DB path) every deployable service needs.
type Config struct {
	StartingCapital      float64
	MaxDailyLossPct      float64
	PerTradeRiskPct      float64
	MaxPositions         int
	MaxTradesPerDay      int
	AggressiveMode       bool
	MinMLScore           float64
	MinStrategyStrength  float64
	RefreshIntervalOpenS int
	RefreshIntervalIdleS int
	MonitorIntervalS     int
	VIXHaltThreshold     float64
	EmergencyCredential  string
	TradingMode          TradingMode

	// EODExitOverride is keyed by underlying symbol. Load always leaves
	// it empty and nothing reads it, so clock.ShouldForceEODExit's
	// 15:29 IST cutoff applies to every underlying.
	EODExitOverride map[string]time.Time

	// PerTradeCapitalCap is an absolute rupee ceiling on one trade's
	// premium*quantity, independent of the risk-pct sizing formula.
	PerTradeCapitalCap float64

	// PostExitCooldownS is the supplemented per-asset cooldown: seconds
	// to wait before re-entering the same underlying after an exit.
	// Zero disables it.
	PostExitCooldownS int

	// Ambient / deployment settings, outside the trading configuration
	// but required to boot a real service.
	HTTPAddr            string
	DBPath              string
	JWTSecret           string
	TOTPIssuer          string
	TOTPSecret          string
	OperatorPasswordHash string
}

// Load reads a .env file (if present) then environment variables,
// applying defaults, and validates the closed-set ranges.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile) // missing .env is not fatal in prod
	}

	c := Config{
		StartingCapital:      envFloat("STARTING_CAPITAL", 100000),
		MaxDailyLossPct:      envFloat("MAX_DAILY_LOSS_PCT", 3),
		PerTradeRiskPct:      envFloat("PER_TRADE_RISK_PCT", 2),
		MaxPositions:         envInt("MAX_POSITIONS", 10),
		MaxTradesPerDay:      envInt("MAX_TRADES_PER_DAY", 20),
		AggressiveMode:       envBool("AGGRESSIVE_MODE", false),
		MinMLScore:           envFloat("MIN_ML_SCORE", 0.6),
		MinStrategyStrength:  envFloat("MIN_STRATEGY_STRENGTH", 50),
		RefreshIntervalOpenS: envInt("REFRESH_INTERVAL_OPEN_S", 30),
		RefreshIntervalIdleS: envInt("REFRESH_INTERVAL_IDLE_S", 60),
		MonitorIntervalS:     envInt("MONITOR_INTERVAL_S", 2),
		VIXHaltThreshold:     envFloat("VIX_HALT_THRESHOLD", 30),
		EmergencyCredential:  os.Getenv("EMERGENCY_CREDENTIAL"),
		TradingMode:          TradingMode(envString("TRADING_MODE", string(ModePaper))),
		EODExitOverride:      map[string]time.Time{},
		PerTradeCapitalCap:   envFloat("PER_TRADE_CAPITAL_CAP", 50_000),
		PostExitCooldownS:    envInt("POST_EXIT_COOLDOWN_S", 0),
		HTTPAddr:             envString("HTTP_ADDR", ":8080"),
		DBPath:               envString("DB_PATH", "kernel.db"),
		JWTSecret:            envString("JWT_SECRET", "dev-secret-change-me"),
		TOTPIssuer:           envString("TOTP_ISSUER", "indexoptions-kernel"),
		TOTPSecret:           envString("TOTP_SECRET", ""),
		OperatorPasswordHash: envString("OPERATOR_PASSWORD_HASH", ""),
	}
	return c, c.Validate()
}

// Validate enforces the closed-set ranges every field must stay within.
func (c Config) Validate() error {
	switch {
	case c.StartingCapital < 10_000:
		return fmt.Errorf("config: starting_capital must be >= 10000, got %v", c.StartingCapital)
	case c.MaxDailyLossPct <= 0 || c.MaxDailyLossPct > 20:
		return fmt.Errorf("config: max_daily_loss_pct must be in (0,20], got %v", c.MaxDailyLossPct)
	case c.PerTradeRiskPct <= 0 || c.PerTradeRiskPct > 10:
		return fmt.Errorf("config: per_trade_risk_pct must be in (0,10], got %v", c.PerTradeRiskPct)
	case c.MaxPositions < 1 || c.MaxPositions > 200:
		return fmt.Errorf("config: max_positions must be in [1,200], got %v", c.MaxPositions)
	case c.MaxTradesPerDay < 1 || c.MaxTradesPerDay > 999:
		return fmt.Errorf("config: max_trades_per_day must be in [1,999], got %v", c.MaxTradesPerDay)
	case c.MinMLScore < 0 || c.MinMLScore > 1:
		return fmt.Errorf("config: min_ml_score must be in [0,1], got %v", c.MinMLScore)
	case c.MinStrategyStrength < 0 || c.MinStrategyStrength > 100:
		return fmt.Errorf("config: min_strategy_strength must be in [0,100], got %v", c.MinStrategyStrength)
	case c.TradingMode != ModePaper && c.TradingMode != ModeLive:
		return fmt.Errorf("config: trading_mode must be paper or live, got %v", c.TradingMode)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
