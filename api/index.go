package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/planpulse/compass-api/pkg/auth"
	"github.com/planpulse/compass-api/pkg/config"
	"github.com/planpulse/compass-api/pkg/database"
	"github.com/planpulse/compass-api/pkg/handlers"
	"github.com/planpulse/compass-api/pkg/logging"
	"github.com/planpulse/compass-api/pkg/mapping"
	"go.uber.org/zap"
)

var r http.Handler

func init() {
	// .env is only present for local testing with vercel dev
	config.LoadEnv()
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		r = unavailable(err)
		return
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		logger = zap.NewNop()
	}

	db, err := database.InitDB(database.Options{DatabaseURL: cfg.DatabaseURL, DataPath: cfg.DataPath})
	if err != nil {
		logger.Error("could not open database", zap.Error(err))
		r = unavailable(err)
		return
	}

	a := auth.New(cfg.JWTSecret, cfg.APIMasterSecret)
	if err := a.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
		logger.Warn("could not seed admin user", zap.Error(err))
	}

	r = handlers.NewRouter(&handlers.Handler{
		DB:            db,
		Auth:          a,
		Mappings:      mapping.NewStore(database.NewKVStore(db), logger),
		Logger:        logger,
		Planning:      cfg.Planning,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	})
}

func unavailable(err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "service unavailable: "+err.Error(), http.StatusServiceUnavailable)
	})
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
