// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid/v2"

	"github.com/mlbe/mlbe-runner/internal/orchestrator"
)

const (
	defaultRegion = "us-east-1"
	contentType   = "application/json"
)

type (
	// Config locates the bucket records are written to. Prefix, when set, is
	// prepended to every object key.
	Config struct {
		Endpoint  string
		Region    string
		Bucket    string
		AccessKey string
		SecretKey string
		UseSSL    bool
		Prefix    string
	}

	// objectClient is the subset of *minio.Client the store uses.
	objectClient interface {
		BucketExists(ctx context.Context, bucket string) (bool, error)
		MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
		PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	}

	// Store implements orchestrator.Archiver on top of an S3-compatible bucket.
	Store struct {
		client objectClient
		bucket string
		region string
		prefix string
		logger *log.Logger

		mu    sync.Mutex
		ready bool

		newID func() string
	}
)

var _ orchestrator.Archiver = (*Store)(nil)

// Enabled reports whether cfg names a bucket to archive into.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// New creates a store from cfg. The bucket is created on first use if missing.
func New(cfg Config, logger *log.Logger) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("archive endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("archive access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init archive client: %w", err)
	}
	return newStore(client, cfg.Bucket, region, cfg.Prefix, logger)
}

func newStore(client objectClient, bucket, region, prefix string, logger *log.Logger) (*Store, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
		newID:  func() string { return strings.ToLower(ulid.Make().String()) },
	}, nil
}

// Archive writes rec as <prefix>/<kind>/<yyyy>/<mm>/<dd>/<ulid>.json.
func (s *Store) Archive(ctx context.Context, rec orchestrator.Record) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
	}

	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s record: %w", rec.Kind, err)
	}

	key := s.key(rec)
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Debug("archived run", "bucket", s.bucket, "key", key)
	return nil
}

func (s *Store) key(rec orchestrator.Record) string {
	at := rec.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	key := fmt.Sprintf("%s/%04d/%02d/%02d/%s.json", rec.Kind, at.Year(), at.Month(), at.Day(), s.newID())
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}

// ensureBucket creates the bucket once. A failed attempt is retried on the next call.
func (s *Store) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			// Lost a creation race with another writer.
			if resp := minio.ToErrorResponse(err); resp.Code != "BucketAlreadyOwnedByYou" {
				return err
			}
		}
	}
	s.ready = true
	return nil
}
