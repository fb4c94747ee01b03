package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/planpulse/compass-api/pkg/auth"
	"github.com/planpulse/compass-api/pkg/config"
	"github.com/planpulse/compass-api/pkg/database"
	"github.com/planpulse/compass-api/pkg/handlers"
	"github.com/planpulse/compass-api/pkg/logging"
	"github.com/planpulse/compass-api/pkg/mapping"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}
	if cfg.APIMasterSecret == "" || cfg.JWTSecret == "" {
		logger.Warn("API_MASTER_SECRET or JWT_SECRET is empty; API keys and admin logins will be rejected")
	}

	db, err := database.InitDB(database.Options{DatabaseURL: cfg.DatabaseURL, DataPath: cfg.DataPath})
	if err != nil {
		logger.Fatal("could not open database", zap.Error(err))
	}

	a := auth.New(cfg.JWTSecret, cfg.APIMasterSecret)
	if err := a.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
		logger.Warn("could not seed admin user", zap.Error(err))
	}

	h := &handlers.Handler{
		DB:            db,
		Auth:          a,
		Mappings:      mapping.NewStore(database.NewKVStore(db), logger),
		Logger:        logger,
		Planning:      cfg.Planning,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	}
	r := handlers.NewRouter(h)

	logger.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("financial_year", cfg.Planning.FinancialYear),
		zap.Int("value_mappings", h.Mappings.Len()),
	)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("could not run server", zap.Error(err))
	}
}
