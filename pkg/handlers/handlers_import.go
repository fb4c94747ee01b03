package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/planpulse/compass-api/pkg/csvimport"
	"go.uber.org/zap"
)

// maxUploadBytes caps a single import file
const maxUploadBytes = 10 << 20

func readUpload(fh *multipart.FileHeader) ([]csvimport.Record, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvimport.ReadFile(fh.Filename, f)
}

// Import parses an uploaded people, projects, roles or allocations file.
// Allocations additionally take a "refs" form field holding the teams, epics
// and cycles rows are resolved against.
func (h *Handler) Import(c *gin.Context) {
	importType := c.Param("type")

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	records, err := readUpload(fh)
	if err != nil {
		h.importError(c, importType, err)
		return
	}

	var result csvimport.Result
	allocations := 0
	if importType == csvimport.AllocationsImportType {
		var refs csvimport.AllocationRefs
		if raw := c.PostForm("refs"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &refs); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid refs: " + err.Error()})
				return
			}
		}
		var translator csvimport.Translator
		if h.Mappings != nil {
			translator = h.Mappings
		}
		res, err := csvimport.ParseAllocations(records, refs, translator)
		if err != nil {
			h.importError(c, importType, err)
			return
		}
		result = res
		allocations = res.Imported()
	} else {
		result, err = csvimport.Import(importType, records)
		if err != nil {
			h.importError(c, importType, err)
			return
		}
	}

	h.logger().Info("import parsed",
		zap.String("type", importType),
		zap.String("file", fh.Filename),
		zap.Int("imported", result.Imported()),
		zap.Int("failed", result.Failed()),
	)
	h.RecordUsage(c, result.Imported(), allocations)

	c.JSON(http.StatusOK, gin.H{
		"type":     importType,
		"imported": result.Imported(),
		"failed":   result.Failed(),
		"errors":   result.RowErrors(),
		"result":   result,
	})
}

func (h *Handler) importError(c *gin.Context, importType string, err error) {
	switch {
	case errors.Is(err, csvimport.ErrUnsupportedType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, csvimport.ErrEmptyFile), errors.Is(err, csvimport.ErrMissingHeader):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger().Warn("import failed", zap.String("type", importType), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
