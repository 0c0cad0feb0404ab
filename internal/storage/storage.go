// Package storage provides the pluggable file storage layer: one provider
// contract backed by S3, S3-compatible object stores, or the local
// filesystem, with upload validation enforced before any provider call.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies an upload for policy purposes.
type Kind string

const (
	KindImage      Kind = "image"
	KindVideo      Kind = "video"
	KindDocument   Kind = "document"
	KindAvatar     Kind = "avatar"
	KindAttachment Kind = "attachment"
)

// Policy is the per-kind validation policy: allowed extensions, allowed
// content-type prefixes, and maximum size in bytes.
type Policy struct {
	Extensions   []string
	MIMEPrefixes []string
	MaxBytes     int64
}

const mb = int64(1024 * 1024)

// DefaultPolicies is the policy table applied identically regardless of the
// concrete provider.
func DefaultPolicies() map[Kind]Policy {
	return map[Kind]Policy{
		KindImage: {
			Extensions:   []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
			MIMEPrefixes: []string{"image/"},
			MaxBytes:     10 * mb,
		},
		KindAvatar: {
			Extensions:   []string{".jpg", ".jpeg", ".png", ".webp"},
			MIMEPrefixes: []string{"image/"},
			MaxBytes:     2 * mb,
		},
		KindVideo: {
			Extensions:   []string{".mp4", ".webm", ".mov"},
			MIMEPrefixes: []string{"video/"},
			MaxBytes:     500 * mb,
		},
		KindDocument: {
			Extensions:   []string{".pdf", ".doc", ".docx", ".ppt", ".pptx", ".txt", ".md"},
			MIMEPrefixes: []string{"application/", "text/"},
			MaxBytes:     25 * mb,
		},
		KindAttachment: {
			Extensions:   []string{".pdf", ".zip", ".png", ".jpg", ".jpeg", ".txt", ".csv"},
			MIMEPrefixes: []string{"application/", "image/", "text/"},
			MaxBytes:     25 * mb,
		},
	}
}

// UploadDescriptor describes a pending upload. It is validated against the
// policy table before any network or disk I/O.
type UploadDescriptor struct {
	Filename    string
	Size        int64
	ContentType string
	Kind        Kind
	Folder      string
}

// UploadResult is returned to the caller after a successful upload.
type UploadResult struct {
	URL          string `json:"url"`
	Key          string `json:"key"`
	Provider     string `json:"provider"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Entry is a single stored object as returned by List.
type Entry struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ValidationError reports input rejected before any provider call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrUnavailable is returned when the storage provider failed bootstrap and
// uploads are disabled.
var ErrUnavailable = errors.New("storage provider unavailable")

// Provider is the capability contract every concrete storage backend
// implements. Selection happens once at construction, never per call. The
// service derives object keys; providers store at exactly the given key.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
	Upload(ctx context.Context, key, contentType string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	ResolveURL(key string) string
	List(ctx context.Context, folder string) ([]Entry, error)
	Probe(ctx context.Context) error
}

// Validate checks a descriptor against the policy for its kind. It never
// touches the provider: rejection happens before any I/O.
func Validate(desc UploadDescriptor, policies map[Kind]Policy) error {
	policy, ok := policies[desc.Kind]
	if !ok {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown content kind %q", desc.Kind)}
	}

	if desc.Filename == "" {
		return &ValidationError{Field: "filename", Reason: "filename is required"}
	}

	ext := strings.ToLower(filepath.Ext(desc.Filename))
	if !contains(policy.Extensions, ext) {
		return &ValidationError{
			Field:  "filename",
			Reason: fmt.Sprintf("extension %q not allowed for %s uploads (allowed: %s)", ext, desc.Kind, strings.Join(policy.Extensions, ", ")),
		}
	}

	if desc.ContentType != "" && !hasAllowedPrefix(policy.MIMEPrefixes, desc.ContentType) {
		return &ValidationError{
			Field:  "content_type",
			Reason: fmt.Sprintf("content type %q not allowed for %s uploads", desc.ContentType, desc.Kind),
		}
	}

	if desc.Size <= 0 {
		return &ValidationError{Field: "size", Reason: "size must be positive"}
	}
	if desc.Size > policy.MaxBytes {
		return &ValidationError{
			Field:  "size",
			Reason: fmt.Sprintf("%d bytes exceeds the %d MB limit for %s uploads", desc.Size, policy.MaxBytes/mb, desc.Kind),
		}
	}

	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func hasAllowedPrefix(prefixes []string, contentType string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(contentType, p) {
			return true
		}
	}
	return false
}

// sanitizeFilename strips path components and dangerous characters.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.ReplaceAll(filename, "/", "")
	filename = strings.ReplaceAll(filename, "\\", "")
	if len(filename) > 200 {
		ext := filepath.Ext(filename)
		filename = filename[:200-len(ext)] + ext
	}
	return filename
}
