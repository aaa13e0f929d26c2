package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/loadboard/loadboard/internal/application/pricing"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL string
	ServerAddr  string
	// RedisAddr enables the cross-instance event bridge when set.
	RedisAddr string
	Pricing   pricing.Config
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "loadboard")
		pass := getenv("POSTGRES_PASSWORD", "loadboard_pass")
		db := getenv("POSTGRES_DB", "loadboard")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}
	addr := getenv("SERVER_ADDR", "0.0.0.0:8080")
	redisAddr := os.Getenv("REDIS_ADDR")

	p := pricing.DefaultConfig()
	p.RatePerKm = parseFloat(os.Getenv("PRICING_RATE_PER_KM"), p.RatePerKm)
	p.RatePerTon = parseFloat(os.Getenv("PRICING_RATE_PER_TON"), p.RatePerTon)
	p.FuelSurchargePct = parseFloat(os.Getenv("PRICING_FUEL_SURCHARGE_PCT"), p.FuelSurchargePct)
	p.HandlingFee = parseFloat(os.Getenv("PRICING_HANDLING_FEE"), p.HandlingFee)

	seasonal, err := parseRules(os.Getenv("PRICING_SEASONAL_RULES"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_SEASONAL_RULES: %w", err)
	}
	p.SeasonalRules = seasonal
	region, err := parseRules(os.Getenv("PRICING_REGION_RULES"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_REGION_RULES: %w", err)
	}
	p.RegionRules = region

	return &Config{
		DatabaseURL: dsn,
		ServerAddr:  addr,
		RedisAddr:   redisAddr,
		Pricing:     p,
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseFloat(val string, def float64) float64 {
	if val == "" {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return f
}

// parseRules decodes a JSON array of rate rules, e.g.
// [{"name":"monsoon","expr":"month >= 6 && month <= 9","multiplier":1.15}].
func parseRules(val string) ([]pricing.RateRule, error) {
	if val == "" {
		return nil, nil
	}
	var rules []pricing.RateRule
	if err := json.Unmarshal([]byte(val), &rules); err != nil {
		return nil, err
	}
	return rules, nil
}
