/*
Package config loads engine configuration from the environment.

A .env file in the working directory is loaded first (missing is fine);
explicit environment variables win. Every knob has a default so the
server runs with zero configuration against a local SQLite file.
*/
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port string
	// DBPath is the SQLite database file; ":memory:" for ephemeral runs.
	DBPath string
	// RecurringCron schedules the recurring-transaction sweep.
	RecurringCron string
	// BudgetAlertCron schedules the budget threshold check.
	BudgetAlertCron string
	// CORSOrigins is the allowed origin list for browsers,
	// comma-separated in the environment.
	CORSOrigins []string
	// SchedulerEnabled turns the cron jobs off entirely (admin endpoints
	// still allow manual runs).
	SchedulerEnabled bool
	// Debug switches the log level to debug.
	Debug bool
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "./data/finance.db"),
		RecurringCron:    getEnv("RECURRING_CRON", "0 2 * * *"),
		BudgetAlertCron:  getEnv("BUDGET_ALERT_CRON", "0 8 * * *"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		SchedulerEnabled: getBool("SCHEDULER_ENABLED", true),
		Debug:            getBool("DEBUG", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
