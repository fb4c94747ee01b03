package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/planpulse/compass-api/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "GIN_MODE", "DATABASE_URL", "DATA_PATH", "JWT_SECRET",
		"API_MASTER_SECRET", "ADMIN_USERNAME", "ADMIN_PASSWORD", "LOG_LEVEL",
		"PLANNING_CONFIG", "FINANCIAL_YEAR_START_MONTH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "compass.db", cfg.DataPath)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, "info", cfg.LogLevel)
	require.Len(t, cfg.Planning.Quarters, 4)
	assert.Equal(t, time.January, cfg.Planning.Quarters[0].StartDate.Month())
	assert.Equal(t, 1, cfg.Planning.Quarters[0].StartDate.Day())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/compass")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("API_MASTER_SECRET", "master")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://localhost/compass", cfg.DatabaseURL)
	assert.Equal(t, "jwt", cfg.JWTSecret)
	assert.Equal(t, "master", cfg.APIMasterSecret)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_FinancialYearStartMonth(t *testing.T) {
	clearEnv(t)
	t.Setenv("FINANCIAL_YEAR_START_MONTH", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.April, cfg.Planning.Quarters[0].StartDate.Month())

	t.Setenv("FINANCIAL_YEAR_START_MONTH", "13")
	_, err = Load()
	assert.Error(t, err)
}

func TestDefaultFinancialYear(t *testing.T) {
	cfg := DefaultFinancialYear(2024, time.July)

	assert.Equal(t, "FY2024/25", cfg.FinancialYear)
	require.Len(t, cfg.Quarters, 4)
	assert.Equal(t, models.NewDate(2024, time.July, 1), cfg.Quarters[0].StartDate)
	assert.Equal(t, models.NewDate(2024, time.September, 30), cfg.Quarters[0].EndDate)
	assert.Equal(t, models.NewDate(2025, time.April, 1), cfg.Quarters[3].StartDate)
	assert.Equal(t, models.NewDate(2025, time.June, 30), cfg.Quarters[3].EndDate)

	cal := DefaultFinancialYear(2024, time.January)
	assert.Equal(t, "2024", cal.FinancialYear)
	assert.Equal(t, models.NewDate(2024, time.March, 31), cal.Quarters[0].EndDate)
	assert.Equal(t, models.NewDate(2024, time.December, 31), cal.Quarters[3].EndDate)
}

func TestParsePlanning(t *testing.T) {
	doc := []byte(`
financial_year = "FY2024"

[[quarters]]
name = "Q1"
start_date = "2024-01-01"
end_date = "2024-03-31"

[[quarters]]
start_date = "2024-04-01"
end_date = "2024-06-30"
`)
	cfg, err := ParsePlanning(doc)
	require.NoError(t, err)
	assert.Equal(t, models.FinancialConfig{
		FinancialYear: "FY2024",
		Quarters: []models.Quarter{
			{Name: "Q1", StartDate: models.NewDate(2024, time.January, 1), EndDate: models.NewDate(2024, time.March, 31)},
			{Name: "Q2", StartDate: models.NewDate(2024, time.April, 1), EndDate: models.NewDate(2024, time.June, 30)},
		},
	}, cfg)
}

func TestParsePlanning_Invalid(t *testing.T) {
	cases := map[string]string{
		"syntax":      `financial_year = `,
		"no quarters": `financial_year = "FY"`,
		"bad date":    "[[quarters]]\nstart_date = \"soon\"\nend_date = \"2024-03-31\"",
		"reversed":    "[[quarters]]\nstart_date = \"2024-03-31\"\nend_date = \"2024-01-01\"",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlanning([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidPlanning)
		})
	}
}

func TestLoad_PlanningFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planning.toml")
	require.NoError(t, os.WriteFile(path, []byte("financial_year = \"FY25\"\n[[quarters]]\nname = \"H1\"\nstart_date = \"2025-01-01\"\nend_date = \"2025-06-30\"\n"), 0o600))
	t.Setenv("PLANNING_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "FY25", cfg.Planning.FinancialYear)
	require.Len(t, cfg.Planning.Quarters, 1)
	assert.Equal(t, "H1", cfg.Planning.Quarters[0].Name)

	t.Setenv("PLANNING_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	_, err = Load()
	assert.Error(t, err)
}
