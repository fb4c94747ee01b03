package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/planpulse/compass-api/pkg/mapping"
	"github.com/planpulse/compass-api/pkg/models"
)

// ListMappings returns every stored value mapping
func (h *Handler) ListMappings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mappings": h.Mappings.All()})
}

// GetFieldMappings returns the lookup table of one import field
func (h *Handler) GetFieldMappings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"importType": c.Param("importType"),
		"fieldId":    c.Param("fieldId"),
		"mappings":   h.Mappings.GetValueMappingsForField(c.Param("importType"), c.Param("fieldId")),
	})
}

// ReplaceFieldMappings replaces the whole lookup table of one import field
func (h *Handler) ReplaceFieldMappings(c *gin.Context) {
	var req struct {
		Mappings map[string]string `json:"mappings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	importType, fieldID := c.Param("importType"), c.Param("fieldId")
	h.Mappings.SaveValueMappings(importType, fieldID, req.Mappings)
	c.JSON(http.StatusOK, gin.H{
		"importType": importType,
		"fieldId":    fieldID,
		"mappings":   h.Mappings.GetValueMappingsForField(importType, fieldID),
	})
}

// SaveMapping upserts a single value mapping
func (h *Handler) SaveMapping(c *gin.Context) {
	var req models.ValueMapping
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ImportType == "" || req.FieldID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "importType and fieldId are required"})
		return
	}

	h.Mappings.SaveValueMapping(req.ImportType, req.FieldID, req.CSVValue, req.SystemValue)
	c.JSON(http.StatusOK, req)
}

// ClearMappings removes mappings for a field, an import type, or everything
// when neither query parameter is given
func (h *Handler) ClearMappings(c *gin.Context) {
	importType, fieldID := c.Query("importType"), c.Query("fieldId")
	if importType == "" && fieldID != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fieldId requires importType"})
		return
	}

	removed := h.Mappings.ClearValueMappings(importType, fieldID)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// SuggestMappings proposes a system value for each raw value. Stored
// mappings win over heuristic suggestions when importType and fieldId are
// given.
func (h *Handler) SuggestMappings(c *gin.Context) {
	var req struct {
		ImportType string   `json:"importType"`
		FieldID    string   `json:"fieldId"`
		Values     []string `json:"values"`
		Options    []string `json:"options" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	type suggestion struct {
		CSVValue    string `json:"csvValue"`
		SystemValue string `json:"systemValue,omitempty"`
		Matched     bool   `json:"matched"`
	}
	out := make([]suggestion, 0, len(req.Values))
	for _, v := range req.Values {
		var got string
		var ok bool
		if req.ImportType != "" && req.FieldID != "" {
			got, ok = h.Mappings.Translate(req.ImportType, req.FieldID, v, req.Options)
		} else {
			got, ok = mapping.SuggestMapping(v, req.Options)
		}
		out = append(out, suggestion{CSVValue: v, SystemValue: got, Matched: ok})
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": out})
}
