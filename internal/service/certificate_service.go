package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/repository"
	"github.com/noah-isme/sma-roster-api/pkg/certificate"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/jobs"
)

// CertificateContentType is served for rendered certificates.
const CertificateContentType = "application/pdf"

type studentGetter interface {
	Get(ctx context.Context, id string) (*models.Student, error)
}

type certificateRenderer interface {
	Render(ctx context.Context, subject certificate.Subject) (*certificate.Certificate, error)
}

// CertificateConfig tunes the render queue.
type CertificateConfig struct {
	QueueBuffer int
}

// CertificateService looks up a student and renders their certificate through
// a single-worker queue, so one certificate is staged at a time.
type CertificateService struct {
	students studentGetter
	renderer certificateRenderer
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewCertificateService builds the service; call Start before Generate.
func NewCertificateService(students studentGetter, renderer certificateRenderer, cfg CertificateConfig, metrics *MetricsService, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CertificateService{students: students, renderer: renderer, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("certificates", svc.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.QueueBuffer,
		Logger:     logger,
	})
	return svc
}

// Start launches the render worker.
func (s *CertificateService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the render worker.
func (s *CertificateService) Stop() {
	s.queue.Stop()
}

// Generate renders the certificate for the student with id.
func (s *CertificateService) Generate(ctx context.Context, id string) (*models.Artifact, error) {
	student, err := s.students.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.WrapAs(appErrors.ErrLookup, err, "")
		}
		return nil, storeError(err, "failed to load student")
	}

	subject := certificate.Subject{Name: student.Name, Course: student.Course, Batch: student.Batch, Status: student.Status}
	s.metrics.AddPendingRenders(1)
	defer s.metrics.AddPendingRenders(-1)
	future, err := s.queue.Submit(ctx, jobs.Job{ID: uuid.NewString(), Type: "certificate", Payload: subject})
	if err != nil {
		return nil, s.renderFailure(id, err)
	}

	value, err := future.Await(ctx)
	if err != nil {
		return nil, s.renderFailure(id, err)
	}
	cert, ok := value.(*certificate.Certificate)
	if !ok || cert == nil || cert.Document == nil {
		return nil, s.renderFailure(id, fmt.Errorf("renderer returned %T", value))
	}
	s.logger.Sugar().Infow("certificate generated", "student_id", id, "filename", cert.Filename, "bytes", len(cert.Document.Data))
	return &models.Artifact{Filename: cert.Filename, ContentType: CertificateContentType, Data: cert.Document.Data}, nil
}

func (s *CertificateService) handle(ctx context.Context, job jobs.Job) (interface{}, error) {
	subject, ok := job.Payload.(certificate.Subject)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", job.Payload)
	}
	start := time.Now()
	cert, err := s.renderer.Render(ctx, subject)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	s.metrics.ObserveRender(outcome, time.Since(start))
	if err != nil {
		return nil, err
	}
	return cert, nil
}

func (s *CertificateService) renderFailure(id string, err error) error {
	s.logger.Sugar().Errorw("certificate generation failed", "student_id", id, "error", err)
	return appErrors.WrapAs(appErrors.ErrRender, err, "")
}
