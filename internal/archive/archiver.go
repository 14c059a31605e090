package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"powerbi-glean-connector/internal/config"
	"powerbi-glean-connector/internal/logger"
)

// ScanArchiver persists raw scan payloads to object storage so a run's
// input can be inspected after the fact. Archival is best effort: a
// failed upload is logged and never affects the run outcome.
type ScanArchiver struct {
	client *minio.Client
	bucket string
	log    logger.Logger
}

// NewScanArchiver creates an archiver and ensures the bucket exists
func NewScanArchiver(ctx context.Context, cfg *config.ArchiveConfig, log logger.Logger) (*ScanArchiver, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	a := &ScanArchiver{
		client: client,
		bucket: cfg.Bucket,
		log:    log,
	}

	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *ScanArchiver) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// ArchiveScan stores one raw scan payload keyed by run id
func (a *ScanArchiver) ArchiveScan(ctx context.Context, runID string, payload []byte) {
	key := fmt.Sprintf("scans/%s.json", runID)

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		a.log.Warn("scan archive upload failed for run %s: %v", runID, err)
		return
	}

	a.log.Debug("archived scan payload for run %s to %s/%s", runID, a.bucket, key)
}
