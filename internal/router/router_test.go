package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/handler"
	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/repository"
	"github.com/noah-isme/sma-roster-api/internal/service"
	"github.com/noah-isme/sma-roster-api/pkg/certificate"
	"github.com/noah-isme/sma-roster-api/pkg/config"
	"github.com/noah-isme/sma-roster-api/pkg/lock"
	"github.com/noah-isme/sma-roster-api/pkg/storage"
)

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func buildRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logr := zap.NewNop()
	metrics := service.NewMetricsService()
	store := repository.NewMemoryStudentStore()

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("router-secret", time.Hour)

	renderer, err := certificate.NewRenderer(certificate.Options{
		Now: func() time.Time { return time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	students := service.NewStudentService(store, lock.NewMemoryLocker(), nil, metrics, logr, service.StudentServiceConfig{})
	exports := service.NewExportService(store, files, signer, service.ExportConfig{APIPrefix: "/api/v1"}, metrics, logr)
	certificates := service.NewCertificateService(store, renderer, service.CertificateConfig{QueueBuffer: 4}, metrics, logr)
	ctx, cancel := context.WithCancel(context.Background())
	certificates.Start(ctx)
	t.Cleanup(func() {
		certificates.Stop()
		cancel()
	})

	return New(Options{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		Logger:    logr,
		Metrics:   metrics,
	}, Handlers{
		Students:     handler.NewStudentHandler(students),
		Exports:      handler.NewExportHandler(exports),
		Certificates: handler.NewCertificateHandler(certificates),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"store": func(ctx context.Context) error { _, err := store.List(ctx); return err },
		}),
	})
}

func perform(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func TestRosterLifecycle(t *testing.T) {
	r := buildRouter(t)

	rec := perform(r, http.MethodPost, "/api/v1/students", `{"name":"Alice","course":"Go","batch":"2024","status":"active"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var alice models.Student
	decode(t, rec, &alice)
	require.NotEmpty(t, alice.StudentID)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = perform(r, http.MethodPost, "/api/v1/students", `{"name":"Bob","course":"Go","batch":"2024","status":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(r, http.MethodPatch, "/api/v1/students/"+alice.StudentID, `{"status":"graduated"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited models.Student
	decode(t, rec, &edited)
	assert.Equal(t, "graduated", edited.Status)
	assert.Equal(t, "Alice", edited.Name)

	rec = perform(r, http.MethodGet, "/api/v1/students?search=ALI", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Student
	env := decode(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.EqualValues(t, 1, env.Meta["total"])

	rec = perform(r, http.MethodGet, "/api/v1/students/export/csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Student ID,Name,Course,Batch,Status\r\n"))
	assert.Contains(t, rec.Body.String(), alice.StudentID+",Alice,Go,2024,graduated")

	rec = perform(r, http.MethodGet, "/api/v1/students/"+alice.StudentID+"/certificate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.CertificateContentType, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = perform(r, http.MethodDelete, "/api/v1/students/"+alice.StudentID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = perform(r, http.MethodGet, "/api/v1/students/"+alice.StudentID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = perform(r, http.MethodGet, "/api/v1/students/"+alice.StudentID+"/certificate", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "STUDENT_NOT_FOUND", decode(t, rec, nil).Error.Code)
}

func TestPublishedExportRoundTrip(t *testing.T) {
	r := buildRouter(t)
	rec := perform(r, http.MethodPost, "/api/v1/students", `{"name":"Alice","course":"Go","batch":"2024","status":"active"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = perform(r, http.MethodPost, "/api/v1/exports", `{"format":"csv"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var published models.PublishedExport
	decode(t, rec, &published)
	assert.Equal(t, 1, published.Rows)
	require.True(t, strings.HasPrefix(published.URL, "/api/v1/exports/"))

	rec = perform(r, http.MethodGet, published.URL, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alice")

	rec = perform(r, http.MethodGet, "/api/v1/exports/not-a-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	r := buildRouter(t)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ready", "").Code)

	perform(r, http.MethodGet, "/api/v1/students", "")
	rec := perform(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/api/v1/students"`)
}
