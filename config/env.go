package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnv loads KEY=value pairs from the given .env files into the process
// environment. Variables already set win. A missing file is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays PORTFOLIO_* variables onto cfg. Postgres settings can
// be given as one DSN or as separate host, port, user, password and name.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("PORTFOLIO_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("PORTFOLIO_JOURNAL_DB"); v != "" {
		cfg.Journal.DBPath = v
	}
	if v := os.Getenv("PORTFOLIO_POLICY"); v != "" {
		cfg.Backtest.Policy = v
	}
	if v := os.Getenv("PORTFOLIO_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.Capital = f
		}
	}
	if v := os.Getenv("PORTFOLIO_STORE"); v != "" {
		cfg.Live.Store = v
	}
	if v := os.Getenv("PORTFOLIO_STORE_PATH"); v != "" {
		cfg.Live.StorePath = v
	}
	if v := os.Getenv("PORTFOLIO_POSTGRES_DSN"); v != "" {
		cfg.Live.PostgresDSN = v
	} else if host := os.Getenv("PORTFOLIO_DB_HOST"); host != "" {
		port, ok := envInt(os.Getenv("PORTFOLIO_DB_PORT"))
		if !ok {
			port = 5432
		}
		cfg.Live.PostgresDSN = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			host, port, os.Getenv("PORTFOLIO_DB_USER"), os.Getenv("PORTFOLIO_DB_PASSWORD"), os.Getenv("PORTFOLIO_DB_NAME"))
	}
}
