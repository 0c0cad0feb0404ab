package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider stores objects on the local filesystem under a root
// directory. Used in demo mode and development.
type LocalProvider struct {
	root    string
	baseURL string
}

// NewLocal creates a filesystem storage provider rooted at root. baseURL is
// the public URL prefix objects are served from.
func NewLocal(root, baseURL string) *LocalProvider {
	return &LocalProvider{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name returns the provider identity for logs and results.
func (p *LocalProvider) Name() string { return "local" }

// Initialize ensures the root directory exists and is writable.
func (p *LocalProvider) Initialize(ctx context.Context) error {
	if p.root == "" {
		return fmt.Errorf("no local path configured")
	}
	if err := os.MkdirAll(p.root, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	probe := filepath.Join(p.root, ".writetest")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	return os.Remove(probe)
}

func (p *LocalProvider) pathFor(key string) (string, error) {
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(p.root, clean), nil
}

// Upload writes the payload to <root>/<key>.
func (p *LocalProvider) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	path, err := p.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		os.Remove(path)
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// Delete removes the object at key.
func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	path, err := p.pathFor(key)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// ResolveURL returns the public URL for a stored key.
func (p *LocalProvider) ResolveURL(key string) string {
	if p.baseURL == "" {
		return "/uploads/" + key
	}
	return p.baseURL + "/" + key
}

// List walks the folder under root and returns every file found.
func (p *LocalProvider) List(ctx context.Context, folder string) ([]Entry, error) {
	dir, err := p.pathFor(strings.Trim(folder, "/"))
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return nil
		}
		entries = append(entries, Entry{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", folder, err)
	}
	return entries, nil
}

// Probe verifies the root directory is still writable.
func (p *LocalProvider) Probe(ctx context.Context) error {
	probe := filepath.Join(p.root, ".writetest")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return err
	}
	return os.Remove(probe)
}
