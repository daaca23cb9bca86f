package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/service"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

type exportService interface {
	Spreadsheet(ctx context.Context) (*models.Artifact, error)
	CSV(ctx context.Context) (*models.Artifact, error)
	Publish(ctx context.Context, format models.ExportFormat) (*models.PublishedExport, error)
	OpenDownload(ctx context.Context, token string) (*service.Download, error)
}

// PublishExportRequest selects the format of a published export.
type PublishExportRequest struct {
	Format models.ExportFormat `json:"format" binding:"required"`
}

// ExportHandler serves roster exports.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Spreadsheet godoc
// @Summary Download roster spreadsheet
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 500 {object} response.Envelope
// @Router /students/export/xlsx [get]
func (h *ExportHandler) Spreadsheet(c *gin.Context) {
	artifact, err := h.exports.Spreadsheet(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, artifact.Filename, artifact.ContentType, artifact.Data)
}

// CSV godoc
// @Summary Download roster CSV
// @Tags Exports
// @Produce text/csv
// @Success 200 {file} file
// @Failure 500 {object} response.Envelope
// @Router /students/export/csv [get]
func (h *ExportHandler) CSV(c *gin.Context) {
	artifact, err := h.exports.CSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, artifact.Filename, artifact.ContentType, artifact.Data)
}

// Publish godoc
// @Summary Publish roster export
// @Description Stores an export and returns a signed, expiring download link.
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body PublishExportRequest true "Export format"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Publish(c *gin.Context) {
	var req PublishExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid payload"))
		return
	}
	if !req.Format.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be xlsx or csv"))
		return
	}
	published, err := h.exports.Publish(c.Request.Context(), req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, published)
}

// Download godoc
// @Summary Download published export
// @Tags Exports
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.exports.OpenDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Body.Close() //nolint:errcheck
	response.AttachmentStream(c, download.Filename, download.ContentType, download.Size, download.Body)
}

