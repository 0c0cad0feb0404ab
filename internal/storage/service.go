package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/edustack/academy-api/internal/pkg/logger"
	"github.com/edustack/academy-api/internal/provider"
	"github.com/google/uuid"
)

// Service wraps a Provider with the validation policy, availability gating,
// and per-call logging. The rest of the application talks to the Service,
// never to a concrete provider.
type Service struct {
	provider  Provider
	policies  map[Kind]Policy
	maxUpload int64
	available atomic.Bool
}

// NewService creates a storage service over the given provider.
// maxUploadMB caps every upload regardless of kind policy.
func NewService(p Provider, maxUploadMB int) *Service {
	policies := DefaultPolicies()
	cap := int64(maxUploadMB) * mb
	if cap > 0 {
		for kind, policy := range policies {
			if policy.MaxBytes > cap {
				policy.MaxBytes = cap
				policies[kind] = policy
			}
		}
	}
	return &Service{
		provider:  p,
		policies:  policies,
		maxUpload: cap,
	}
}

// SetAvailable marks the provider usable. Called by the bootstrapper after a
// successful Initialize; left false on init failure so calls fail loud.
func (s *Service) SetAvailable(ok bool) { s.available.Store(ok) }

// Available reports whether the underlying provider initialized.
func (s *Service) Available() bool { return s.available.Load() }

// ProviderName returns the active provider's identity.
func (s *Service) ProviderName() string { return s.provider.Name() }

// Validate checks the descriptor against the policy table without touching
// the provider.
func (s *Service) Validate(desc UploadDescriptor) error {
	return Validate(desc, s.policies)
}

// Upload validates the descriptor, then streams the payload to the provider.
// Image uploads get a best-effort thumbnail variant.
func (s *Service) Upload(ctx context.Context, desc UploadDescriptor, r io.Reader) (*UploadResult, error) {
	if err := s.Validate(desc); err != nil {
		return nil, err
	}
	if !s.available.Load() {
		return nil, ErrUnavailable
	}

	// Read with a hard cap so an understated descriptor can't balloon memory.
	data, err := io.ReadAll(io.LimitReader(r, desc.Size+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload payload: %w", err)
	}
	if int64(len(data)) > desc.Size {
		return nil, &ValidationError{Field: "size", Reason: "payload larger than declared size"}
	}
	desc.Filename = sanitizeFilename(desc.Filename)
	key := buildKey(desc, time.Now())

	start := time.Now()
	err = s.provider.Upload(ctx, key, desc.ContentType, bytes.NewReader(data))
	elapsed := time.Since(start)
	if err != nil {
		callErr := &provider.CallError{Provider: s.provider.Name(), Op: "upload", Elapsed: elapsed, Err: err}
		logger.Error("storage upload failed",
			"provider", s.provider.Name(),
			"folder", desc.Folder,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err.Error())
		return nil, callErr
	}

	result := &UploadResult{
		URL:      s.provider.ResolveURL(key),
		Key:      key,
		Provider: s.provider.Name(),
	}

	if desc.Kind == KindImage || desc.Kind == KindAvatar {
		s.uploadThumbnail(ctx, result, data)
	}

	logger.Info("storage upload complete",
		"provider", s.provider.Name(),
		"key", result.Key,
		"bytes", len(data),
		"elapsed_ms", elapsed.Milliseconds())
	return result, nil
}

// uploadThumbnail generates and stores a thumbnail variant. A failure here
// never fails the original upload.
func (s *Service) uploadThumbnail(ctx context.Context, result *UploadResult, data []byte) {
	thumbData, err := makeThumbnail(data, thumbnailWidth)
	if err != nil {
		logger.Debug("thumbnail skipped", "key", result.Key, "reason", err.Error())
		return
	}

	// Thumbnails are always re-encoded as JPEG.
	ext := strings.ToLower(filepath.Ext(result.Key))
	thumbKey := strings.TrimSuffix(result.Key, ext) + "_thumb.jpg"

	if err := s.provider.Upload(ctx, thumbKey, "image/jpeg", bytes.NewReader(thumbData)); err != nil {
		logger.Warn("thumbnail upload failed", "key", thumbKey, "error", err.Error())
		return
	}
	result.ThumbnailURL = s.provider.ResolveURL(thumbKey)
}

// Delete removes an object by key.
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.available.Load() {
		return ErrUnavailable
	}
	if err := validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	err := s.provider.Delete(ctx, key)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("storage delete failed",
			"provider", s.provider.Name(),
			"key", key,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err.Error())
		return &provider.CallError{Provider: s.provider.Name(), Op: "delete", Elapsed: elapsed, Err: err}
	}
	return nil
}

// List returns the entries stored under a folder.
func (s *Service) List(ctx context.Context, folder string) ([]Entry, error) {
	if !s.available.Load() {
		return nil, ErrUnavailable
	}

	start := time.Now()
	entries, err := s.provider.List(ctx, folder)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("storage list failed",
			"provider", s.provider.Name(),
			"folder", folder,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err.Error())
		return nil, &provider.CallError{Provider: s.provider.Name(), Op: "list", Elapsed: elapsed, Err: err}
	}
	return entries, nil
}

// ResolveURL returns the public URL for a stored key.
func (s *Service) ResolveURL(key string) string {
	return s.provider.ResolveURL(key)
}

func validateKey(key string) error {
	if key == "" {
		return &ValidationError{Field: "key", Reason: "key is required"}
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return &ValidationError{Field: "key", Reason: "key must be a relative object path"}
	}
	return nil
}

// buildKey derives the storage key for an upload:
// <folder>/<yyyy>/<mm>/<uuid><ext>.
func buildKey(desc UploadDescriptor, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(desc.Filename))
	folder := strings.Trim(desc.Folder, "/")
	if folder == "" {
		folder = string(desc.Kind)
	}
	return fmt.Sprintf("%s/%s/%s/%s%s", folder, now.Format("2006"), now.Format("01"), uuid.New().String(), ext)
}
