package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/planpulse/compass-api/pkg/logging"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

// NewRouter wires every route onto a fresh engine
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(logging.Middleware(h.logger()), gin.Recovery())
	r.MaxMultipartMemory = maxUploadBytes

	// admin interface served from embedded FS
	r.StaticFS("/static", h.GetStaticFS())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Plan Pulse Compass API",
			"version": Version,
		})
	})

	r.GET("/admin", h.AdminInterface)
	r.POST("/admin/login", h.Login)

	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.POST("/finance/team-cost", h.TeamCost)
		api.POST("/finance/team-capacity", h.TeamCapacity)
		api.POST("/finance/project-cost", h.ProjectCost)
		api.POST("/finance/project-cost/year", h.ProjectCostForYear)

		api.POST("/import/:type", h.Import)
		api.POST("/validate", h.ValidateInput)

		api.GET("/mappings", h.ListMappings)
		api.POST("/mappings", h.SaveMapping)
		api.DELETE("/mappings", h.ClearMappings)
		api.POST("/mappings/suggest", h.SuggestMappings)
		api.GET("/mappings/:importType/:fieldId", h.GetFieldMappings)
		api.PUT("/mappings/:importType/:fieldId", h.ReplaceFieldMappings)

		api.GET("/usage", h.GetMyUsage)
	}

	return r
}
