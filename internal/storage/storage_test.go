package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/academy-api/internal/provider"
)

// mockProvider records calls so tests can assert the provider is never
// touched on validation failure.
type mockProvider struct {
	uploads  int
	deletes  int
	lists    int
	failWith error
}

func (m *mockProvider) Name() string                         { return "mock" }
func (m *mockProvider) Initialize(ctx context.Context) error { return nil }
func (m *mockProvider) Probe(ctx context.Context) error      { return nil }
func (m *mockProvider) ResolveURL(key string) string         { return "https://cdn.test/" + key }
func (m *mockProvider) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	m.uploads++
	return m.failWith
}
func (m *mockProvider) Delete(ctx context.Context, key string) error {
	m.deletes++
	return m.failWith
}
func (m *mockProvider) List(ctx context.Context, folder string) ([]Entry, error) {
	m.lists++
	return []Entry{}, m.failWith
}

func newTestService(t *testing.T, p Provider) *Service {
	t.Helper()
	svc := NewService(p, 50)
	svc.SetAvailable(true)
	return svc
}

func TestValidateRejectsBeforeProviderCall(t *testing.T) {
	tests := []struct {
		name string
		desc UploadDescriptor
	}{
		{
			name: "disallowed extension",
			desc: UploadDescriptor{Filename: "malware.exe", Size: 100, ContentType: "application/octet-stream", Kind: KindDocument},
		},
		{
			name: "oversized image",
			desc: UploadDescriptor{Filename: "big.png", Size: 11 * mb, ContentType: "image/png", Kind: KindImage},
		},
		{
			name: "wrong content type for video",
			desc: UploadDescriptor{Filename: "clip.mp4", Size: 100, ContentType: "text/html", Kind: KindVideo},
		},
		{
			name: "unknown kind",
			desc: UploadDescriptor{Filename: "a.png", Size: 100, ContentType: "image/png", Kind: Kind("bogus")},
		},
		{
			name: "zero size",
			desc: UploadDescriptor{Filename: "a.png", Size: 0, ContentType: "image/png", Kind: KindImage},
		},
		{
			name: "missing filename",
			desc: UploadDescriptor{Size: 100, ContentType: "image/png", Kind: KindImage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockProvider{}
			svc := newTestService(t, mock)

			_, err := svc.Upload(context.Background(), tt.desc, strings.NewReader("data"))
			require.Error(t, err)

			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr), "expected ValidationError, got %T", err)
			assert.Equal(t, 0, mock.uploads, "provider must not be invoked for invalid input")
		})
	}
}

func TestUploadSizeScenario(t *testing.T) {
	// Policy capped at 5 MB: a 6 MB file is rejected with no provider call,
	// a 2 MB file goes through.
	mock := &mockProvider{}
	svc := NewService(mock, 5)
	svc.SetAvailable(true)

	_, err := svc.Upload(context.Background(), UploadDescriptor{
		Filename:    "lecture.pdf",
		Size:        6 * mb,
		ContentType: "application/pdf",
		Kind:        KindDocument,
	}, bytes.NewReader(make([]byte, 6*mb)))
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 0, mock.uploads)

	payload := make([]byte, 2*mb)
	result, err := svc.Upload(context.Background(), UploadDescriptor{
		Filename:    "lecture.pdf",
		Size:        2 * mb,
		ContentType: "application/pdf",
		Kind:        KindDocument,
	}, bytes.NewReader(payload))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "mock", result.Provider)
	assert.NotEmpty(t, result.Key)
	assert.Equal(t, "https://cdn.test/"+result.Key, result.URL)
	assert.Equal(t, 1, mock.uploads)
}

func TestUploadUnavailableProvider(t *testing.T) {
	mock := &mockProvider{}
	svc := NewService(mock, 50)
	// Bootstrap never marked the provider available.

	_, err := svc.Upload(context.Background(), UploadDescriptor{
		Filename:    "a.png",
		Size:        100,
		ContentType: "image/png",
		Kind:        KindImage,
	}, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, mock.uploads)
}

func TestUploadProviderFailureIsCallError(t *testing.T) {
	mock := &mockProvider{failWith: errors.New("connection reset")}
	svc := newTestService(t, mock)

	_, err := svc.Upload(context.Background(), UploadDescriptor{
		Filename:    "notes.txt",
		Size:        4,
		ContentType: "text/plain",
		Kind:        KindDocument,
	}, strings.NewReader("data"))
	require.Error(t, err)

	var callErr *provider.CallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, "mock", callErr.Provider)
	assert.Equal(t, "upload", callErr.Op)
}

func TestUploadPayloadLargerThanDeclared(t *testing.T) {
	mock := &mockProvider{}
	svc := newTestService(t, mock)

	_, err := svc.Upload(context.Background(), UploadDescriptor{
		Filename:    "a.txt",
		Size:        4,
		ContentType: "text/plain",
		Kind:        KindDocument,
	}, strings.NewReader("much longer than four bytes"))
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 0, mock.uploads)
}

func TestDeleteValidatesKey(t *testing.T) {
	mock := &mockProvider{}
	svc := newTestService(t, mock)

	err := svc.Delete(context.Background(), "../etc/passwd")
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 0, mock.deletes)

	require.NoError(t, svc.Delete(context.Background(), "documents/2026/08/abc.pdf"))
	assert.Equal(t, 1, mock.deletes)
}

func TestBuildKey(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	key := buildKey(UploadDescriptor{Filename: "photo.PNG", Kind: KindImage, Folder: "courses"}, now)
	assert.True(t, strings.HasPrefix(key, "courses/2026/08/"), "key %q", key)
	assert.True(t, strings.HasSuffix(key, ".png"), "key %q", key)

	// Folder defaults to kind
	key = buildKey(UploadDescriptor{Filename: "a.pdf", Kind: KindDocument}, now)
	assert.True(t, strings.HasPrefix(key, "document/2026/08/"), "key %q", key)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "file.png", sanitizeFilename("../../file.png"))
	assert.Equal(t, "file.png", sanitizeFilename("/abs/path/file.png"))
	long := strings.Repeat("a", 300) + ".png"
	assert.LessOrEqual(t, len(sanitizeFilename(long)), 200)
}

func TestLocalProviderRoundTrip(t *testing.T) {
	root := t.TempDir()
	p := NewLocal(root, "http://localhost:8080/uploads")
	require.NoError(t, p.Initialize(context.Background()))

	ctx := context.Background()
	key := "documents/2026/08/test.txt"
	require.NoError(t, p.Upload(ctx, key, "text/plain", strings.NewReader("hello")))

	entries, err := p.List(ctx, "documents")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key, entries[0].Key)
	assert.Equal(t, int64(5), entries[0].Size)

	assert.Equal(t, "http://localhost:8080/uploads/"+key, p.ResolveURL(key))
	require.NoError(t, p.Probe(ctx))

	require.NoError(t, p.Delete(ctx, key))
	entries, err = p.List(ctx, "documents")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalProviderRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	p := NewLocal(root, "")
	require.NoError(t, p.Initialize(context.Background()))

	err := p.Upload(context.Background(), "../escape.txt", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestLocalProviderListMissingFolder(t *testing.T) {
	p := NewLocal(t.TempDir(), "")
	require.NoError(t, p.Initialize(context.Background()))

	entries, err := p.List(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
