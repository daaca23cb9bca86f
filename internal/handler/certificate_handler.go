package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

type certificateService interface {
	Generate(ctx context.Context, id string) (*models.Artifact, error)
}

// CertificateHandler serves per-student certificates.
type CertificateHandler struct {
	certificates certificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates certificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Generate godoc
// @Summary Download completion certificate
// @Tags Students
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /students/{id}/certificate [get]
func (h *CertificateHandler) Generate(c *gin.Context) {
	artifact, err := h.certificates.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, artifact.Filename, artifact.ContentType, artifact.Data)
}
