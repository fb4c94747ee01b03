// Package config loads service settings from the environment and an
// optional planning file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/planpulse/compass-api/pkg/models"
)

// ErrInvalidPlanning is returned when the planning file cannot be used
var ErrInvalidPlanning = errors.New("invalid planning config")

// Config holds everything the server and CLI read from the environment
type Config struct {
	Port            string
	GinMode         string
	DatabaseURL     string
	DataPath        string
	JWTSecret       string
	APIMasterSecret string
	AdminUsername   string
	AdminPassword   string
	LogLevel        string
	Planning        models.FinancialConfig
}

// LoadEnv loads the first .env found in the working directory or its two
// parents. A missing file is not an error.
func LoadEnv() {
	for _, p := range []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads the environment. LoadEnv should be called first when a .env
// file is wanted.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getenv("PORT", "8000"),
		GinMode:         os.Getenv("GIN_MODE"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DataPath:        getenv("DATA_PATH", "compass.db"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		APIMasterSecret: os.Getenv("API_MASTER_SECRET"),
		AdminUsername:   getenv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getenv("ADMIN_PASSWORD", "admin123"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}

	if path := os.Getenv("PLANNING_CONFIG"); path != "" {
		planning, err := LoadPlanningFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Planning = planning
		return cfg, nil
	}

	startMonth := 1
	if v := os.Getenv("FINANCIAL_YEAR_START_MONTH"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return nil, fmt.Errorf("FINANCIAL_YEAR_START_MONTH must be 1-12, got %q", v)
		}
		startMonth = m
	}
	cfg.Planning = DefaultFinancialYear(time.Now().Year(), time.Month(startMonth))
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// DefaultFinancialYear returns four consecutive three-month quarters starting
// on the first of startMonth in year.
func DefaultFinancialYear(year int, startMonth time.Month) models.FinancialConfig {
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	name := strconv.Itoa(year)
	if startMonth != time.January {
		name = fmt.Sprintf("FY%d/%02d", year, (year+1)%100)
	}

	cfg := models.FinancialConfig{FinancialYear: name}
	for i := 0; i < 4; i++ {
		qStart := start.AddDate(0, 3*i, 0)
		qEnd := qStart.AddDate(0, 3, -1)
		cfg.Quarters = append(cfg.Quarters, models.Quarter{
			Name:      fmt.Sprintf("Q%d", i+1),
			StartDate: models.NewDate(qStart.Year(), qStart.Month(), qStart.Day()),
			EndDate:   models.NewDate(qEnd.Year(), qEnd.Month(), qEnd.Day()),
		})
	}
	return cfg
}

type planningFile struct {
	FinancialYear string `toml:"financial_year"`
	Quarters      []struct {
		Name      string `toml:"name"`
		StartDate string `toml:"start_date"`
		EndDate   string `toml:"end_date"`
	} `toml:"quarters"`
}

// LoadPlanningFile reads a TOML planning file
func LoadPlanningFile(path string) (models.FinancialConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.FinancialConfig{}, fmt.Errorf("read planning config: %w", err)
	}
	return ParsePlanning(data)
}

// ParsePlanning decodes a TOML planning document:
//
//	financial_year = "FY2024"
//	[[quarters]]
//	name = "Q1"
//	start_date = "2024-01-01"
//	end_date = "2024-03-31"
func ParsePlanning(data []byte) (models.FinancialConfig, error) {
	var raw planningFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return models.FinancialConfig{}, fmt.Errorf("%w: %v", ErrInvalidPlanning, err)
	}
	if len(raw.Quarters) == 0 {
		return models.FinancialConfig{}, fmt.Errorf("%w: no quarters", ErrInvalidPlanning)
	}

	cfg := models.FinancialConfig{FinancialYear: raw.FinancialYear}
	for i, q := range raw.Quarters {
		start, err := models.ParseDate(q.StartDate)
		if err != nil {
			return models.FinancialConfig{}, fmt.Errorf("%w: quarter %d start_date %q", ErrInvalidPlanning, i+1, q.StartDate)
		}
		end, err := models.ParseDate(q.EndDate)
		if err != nil {
			return models.FinancialConfig{}, fmt.Errorf("%w: quarter %d end_date %q", ErrInvalidPlanning, i+1, q.EndDate)
		}
		if end.Before(start.Time) {
			return models.FinancialConfig{}, fmt.Errorf("%w: quarter %d ends before it starts", ErrInvalidPlanning, i+1)
		}
		name := q.Name
		if name == "" {
			name = fmt.Sprintf("Q%d", i+1)
		}
		cfg.Quarters = append(cfg.Quarters, models.Quarter{Name: name, StartDate: start, EndDate: end})
	}
	return cfg, nil
}
