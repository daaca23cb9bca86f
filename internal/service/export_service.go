package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/export"
	"github.com/noah-isme/sma-roster-api/pkg/storage"
)

// Canonical export files.
const (
	SpreadsheetFilename = "student_list.xlsx"
	CSVFilename         = "students.csv"

	SpreadsheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	CSVContentType         = "text/csv; charset=utf-8"

	spreadsheetSheet = "data"
)

// StudentColumns is the fixed export column order.
var StudentColumns = []string{"Student ID", "Name", "Course", "Batch", "Status"}

type studentLister interface {
	List(ctx context.Context) ([]models.Student, error)
}

type tabularRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService serializes the whole roster and publishes exports behind signed links.
type ExportService struct {
	students studentLister
	storage  storage.Store
	signer   *storage.SignedURLSigner
	xlsx     tabularRenderer
	csv      tabularRenderer
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ExportConfig
	newID    func() string
}

// NewExportService constructs an ExportService. store and signer may be nil
// when only direct downloads are served.
func NewExportService(students studentLister, store storage.Store, signer *storage.SignedURLSigner, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		students: students,
		storage:  store,
		signer:   signer,
		xlsx:     export.NewXLSXExporter(spreadsheetSheet),
		csv:      export.NewCSVExporter(),
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		newID:    uuid.NewString,
	}
}

// BuildDataset lays the records out in the fixed column order.
func BuildDataset(students []models.Student) export.Dataset {
	rows := make([]map[string]string, 0, len(students))
	for _, s := range students {
		rows = append(rows, map[string]string{
			"Student ID": s.StudentID,
			"Name":       s.Name,
			"Course":     s.Course,
			"Batch":      s.Batch,
			"Status":     s.Status,
		})
	}
	return export.Dataset{Headers: StudentColumns, Rows: rows}
}

// Spreadsheet renders every student into student_list.xlsx.
func (s *ExportService) Spreadsheet(ctx context.Context) (*models.Artifact, error) {
	artifact, _, err := s.Render(ctx, models.ExportFormatXLSX)
	return artifact, err
}

// CSV renders every student into students.csv.
func (s *ExportService) CSV(ctx context.Context) (*models.Artifact, error) {
	artifact, _, err := s.Render(ctx, models.ExportFormatCSV)
	return artifact, err
}

// Render serializes the full roster in format and reports the row count.
func (s *ExportService) Render(ctx context.Context, format models.ExportFormat) (*models.Artifact, int, error) {
	var (
		renderer    tabularRenderer
		filename    string
		contentType string
	)
	switch format {
	case models.ExportFormatXLSX:
		renderer, filename, contentType = s.xlsx, SpreadsheetFilename, SpreadsheetContentType
	case models.ExportFormatCSV:
		renderer, filename, contentType = s.csv, CSVFilename, CSVContentType
	default:
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	students, err := s.students.List(ctx)
	if err != nil {
		s.metrics.RecordExport(string(format), OutcomeFailure)
		return nil, 0, storeError(err, "failed to list students")
	}
	data, err := renderer.Render(BuildDataset(students))
	if err != nil {
		s.metrics.RecordExport(string(format), OutcomeFailure)
		s.logger.Sugar().Errorw("export serialization failed", "format", format, "error", err)
		return nil, 0, appErrors.WrapAs(appErrors.ErrExport, err, "")
	}
	s.metrics.RecordExport(string(format), OutcomeSuccess)
	return &models.Artifact{Filename: filename, ContentType: contentType, Data: data}, len(students), nil
}

// Publish renders format, stores the file and returns a signed download link.
func (s *ExportService) Publish(ctx context.Context, format models.ExportFormat) (*models.PublishedExport, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrExport, "export publishing is not configured")
	}
	artifact, rows, err := s.Render(ctx, format)
	if err != nil {
		return nil, err
	}
	id := s.newID()
	key := path.Join(id, artifact.Filename)
	if err := s.storage.Save(ctx, key, artifact.Data, artifact.ContentType); err != nil {
		s.logger.Sugar().Errorw("failed to store export", "key", key, "error", err)
		return nil, appErrors.WrapAs(appErrors.ErrExport, err, "")
	}
	token, expiresAt, err := s.signer.Generate(id, key)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrExport, err, "")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	s.logger.Sugar().Infow("export published", "export_id", id, "format", format, "rows", rows)
	return &models.PublishedExport{
		Format:    format,
		Filename:  artifact.Filename,
		Rows:      rows,
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Download is an open published export.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// OpenDownload validates token and opens the export it references.
func (s *ExportService) OpenDownload(ctx context.Context, token string) (*Download, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download not found")
	}
	_, key, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.WrapAs(appErrors.ErrExpired, err, "")
		}
		return nil, appErrors.WrapAs(appErrors.ErrNotFound, err, "download not found")
	}
	body, size, err := s.storage.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.WrapAs(appErrors.ErrExpired, err, "")
		}
		return nil, appErrors.WrapAs(appErrors.ErrExport, err, "failed to open export")
	}
	filename := path.Base(key)
	contentType := CSVContentType
	if strings.HasSuffix(filename, ".xlsx") {
		contentType = SpreadsheetContentType
	}
	return &Download{Filename: filename, ContentType: contentType, Size: size, Body: body}, nil
}

// Cleanup purges stored exports older than the result TTL.
func (s *ExportService) Cleanup(ctx context.Context) (int, error) {
	if s.storage == nil {
		return 0, nil
	}
	deleted, err := s.storage.CleanupOlderThan(ctx, s.cfg.ResultTTL)
	if err != nil {
		s.logger.Sugar().Warnw("export cleanup failed", "deleted", len(deleted), "error", err)
		return len(deleted), err
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("expired exports removed", "count", len(deleted))
	}
	return len(deleted), nil
}

// StartCleanup runs Cleanup on the given cron schedule until the returned stop
// function is called.
func (s *ExportService) StartCleanup(ctx context.Context, schedule string) (func(), error) {
	if schedule == "" {
		return func() {}, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		_, _ = s.Cleanup(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule export cleanup: %w", err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
