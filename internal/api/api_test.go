package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/academy-api/internal/bootstrap"
	"github.com/edustack/academy-api/internal/config"
	"github.com/edustack/academy-api/internal/email"
	"github.com/edustack/academy-api/internal/health"
	"github.com/edustack/academy-api/internal/metrics"
	"github.com/edustack/academy-api/internal/storage"
)

type stubEmailProvider struct {
	fail bool
	sent []email.Message
}

func (p *stubEmailProvider) Name() string                         { return "stub" }
func (p *stubEmailProvider) Initialize(ctx context.Context) error { return nil }
func (p *stubEmailProvider) Probe(ctx context.Context) error      { return nil }

func (p *stubEmailProvider) Send(ctx context.Context, msg email.Message) (*email.Receipt, error) {
	if p.fail {
		return nil, fmt.Errorf("provider rejected message")
	}
	p.sent = append(p.sent, msg)
	return &email.Receipt{MessageID: "m-1", Provider: "stub"}, nil
}

type testEnv struct {
	server  *Server
	storage *storage.Service
	email   *email.Service
	emailP  *stubEmailProvider
	checker *health.Checker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	local := storage.NewLocal(t.TempDir(), "")
	require.NoError(t, local.Initialize(context.Background()))
	storageSvc := storage.NewService(local, 5)
	storageSvc.SetAvailable(true)

	emailP := &stubEmailProvider{}
	emailSvc := email.NewService(emailP, "no-reply@academy.test", "Academy", 2)
	emailSvc.SetAvailable(true)

	checker := health.NewChecker(time.Second)
	checker.RegisterCheck("storage", local.Probe)

	srv := NewServer(config.ServerConfig{Port: 0}, storageSvc, emailSvc, checker, metrics.NewCollector(), bootstrap.InitReport{})
	return &testEnv{server: srv, storage: storageSvc, email: emailSvc, emailP: emailP, checker: checker}
}

func multipartUpload(t *testing.T, kind, folder, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	require.NoError(t, w.WriteField("kind", kind))
	if folder != "" {
		require.NoError(t, w.WriteField("folder", folder))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadListDelete(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "attachment", "courses", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest("POST", "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result storage.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "local", result.Provider)
	assert.True(t, strings.HasPrefix(result.Key, "courses/"))
	assert.NotEmpty(t, result.URL)

	// The object shows up in the folder listing.
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/uploads?folder=courses", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Count   int             `json:"count"`
		Entries []storage.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)

	// Delete it by escaped key.
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/uploads/"+url.PathEscape(result.Key), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/uploads?folder=courses", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 0, listing.Count)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "image", "", "malware.exe", "application/octet-stream", []byte("x"))
	req := httptest.NewRequest("POST", "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestUploadUnavailableStorage(t *testing.T) {
	env := newTestEnv(t)
	env.storage.SetAvailable(false)

	body, contentType := multipartUpload(t, "attachment", "", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest("POST", "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRequiresFolder(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/uploads", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestEmailEndpoint(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"to":"user@example.com","template":"otp","data":{"code":"482913","minutes":10}}`
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/emails/test", strings.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, env.emailP.sent, 1)
	assert.Equal(t, "user@example.com", env.emailP.sent[0].To)
	assert.Contains(t, env.emailP.sent[0].HTML, "482913")
}

func TestTestEmailUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.email.SetAvailable(false)

	payload := `{"to":"user@example.com","template":"otp","data":{"code":"1","minutes":5}}`
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/emails/test", strings.NewReader(payload)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTestEmailUnknownTemplate(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"to":"user@example.com","template":"bogus"}`
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/emails/test", strings.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	// Readiness is false before the first sweep completes.
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.checker.PerformChecks(context.Background())

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string                        `json:"status"`
		Checks map[string]health.CheckResult `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Contains(t, body.Checks, "storage")

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health/live", nil))
	}

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.GreaterOrEqual(t, snap.Requests.Total, int64(3))
	assert.GreaterOrEqual(t, snap.Requests.ByMethod["GET"], int64(3))
}
