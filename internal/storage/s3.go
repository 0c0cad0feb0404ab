package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/edustack/academy-api/internal/config"
)

// S3Provider stores objects in an S3 bucket. It also backs the "spaces"
// provider for S3-compatible object stores reached through a custom endpoint.
type S3Provider struct {
	cfg    appconfig.StorageConfig
	client *s3.Client
	name   string
}

// NewS3 creates an AWS S3 storage provider. The client is not built until
// Initialize so a misconfigured provider fails soft at bootstrap.
func NewS3(cfg appconfig.StorageConfig) *S3Provider {
	return &S3Provider{cfg: cfg, name: "s3"}
}

// NewSpaces creates a provider for an S3-compatible object store (Spaces,
// Wasabi, R2) reached through cfg.Endpoint with path-style addressing.
func NewSpaces(cfg appconfig.StorageConfig) *S3Provider {
	return &S3Provider{cfg: cfg, name: "spaces"}
}

// Name returns the provider identity for logs and results.
func (p *S3Provider) Name() string { return p.name }

// Initialize builds the S3 client and verifies the bucket is reachable.
func (p *S3Provider) Initialize(ctx context.Context) error {
	if p.cfg.Bucket == "" {
		return fmt.Errorf("no bucket configured")
	}
	if p.name == "spaces" && p.cfg.Endpoint == "" {
		return fmt.Errorf("no endpoint configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(p.cfg.Region),
	}
	if p.cfg.AccessKey != "" && p.cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(p.cfg.AccessKey, p.cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	p.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if p.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	headCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := p.client.HeadBucket(headCtx, &s3.HeadBucketInput{Bucket: aws.String(p.cfg.Bucket)}); err != nil {
		return fmt.Errorf("bucket %q not reachable: %w", p.cfg.Bucket, err)
	}
	return nil
}

// Upload stores the payload at exactly the given key.
func (p *S3Provider) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.cfg.Bucket),
		Key:          aws.String(key),
		Body:         r,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	return err
}

// Delete removes the object at key.
func (p *S3Provider) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	return err
}

// ResolveURL builds the public URL for a key: CDN domain if configured,
// otherwise the direct bucket URL.
func (p *S3Provider) ResolveURL(key string) string {
	if p.cfg.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", p.cfg.CDNDomain, key)
	}
	if p.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(p.cfg.Endpoint, "/"), p.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
}

// List returns the objects stored under a folder prefix.
func (p *S3Provider) List(ctx context.Context, folder string) ([]Entry, error) {
	prefix := strings.Trim(folder, "/")
	if prefix != "" {
		prefix += "/"
	}

	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			entry := Entry{Key: aws.ToString(obj.Key)}
			if obj.Size != nil {
				entry.Size = *obj.Size
			}
			if obj.LastModified != nil {
				entry.LastModified = *obj.LastModified
			}
			entries = append(entries, entry)
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Probe verifies the bucket is still reachable.
func (p *S3Provider) Probe(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("not initialized")
	}
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.cfg.Bucket)})
	return err
}
