// Package archive stores acknowledged location batches in S3-compatible
// object storage.
package archive

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/pkg/log"
	"github.com/autopeer-io/cartrack/pkg/options"
)

const contentType = "application/json"

// record is the archived object body.
type record struct {
	ArchivedAt int64               `json:"archivedAt"`
	Message    string              `json:"message,omitempty"`
	Update     *api.LocationUpdate `json:"update"`
}

type MinIO struct {
	client     *minio.Client
	bucketName string
	region     string
	clock      clock.PassiveClock
	seq        atomic.Uint64
}

// NewMinIO creates an archive over the S3 endpoint described by opts.
func NewMinIO(opts *options.S3Options, clk clock.PassiveClock) (*MinIO, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.UseSSL {
		transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIO{
		client:     client,
		bucketName: opts.BucketName,
		region:     opts.Region,
		clock:      clk,
	}, nil
}

// CheckBucket creates the bucket when it does not exist yet.
func (p *MinIO) CheckBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	log.Info("Bucket does not exist, creating", "bucket", p.bucketName)
	if err := p.client.MakeBucket(ctx, p.bucketName, minio.MakeBucketOptions{Region: p.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Archive writes update as one JSON object.
func (p *MinIO) Archive(ctx context.Context, update *api.LocationUpdate, ack *api.Ack) error {
	now := p.clock.Now().UTC()
	rec := record{ArchivedAt: now.UnixMilli(), Update: update}
	if ack != nil {
		rec.Message = ack.Message
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode archive record: %w", err)
	}

	key := ObjectKey(update.CarID, now, p.seq.Add(1))
	_, err = p.client.PutObject(ctx, p.bucketName, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}

	log.Debug("Batch archived", "bucket", p.bucketName, "key", key, "fixes", len(update.Updates))
	return nil
}

// ObjectKey lays batches out per car and day:
// locations/<carId>/<yyyy>/<mm>/<dd>/<unixMillis>-<n>.json
// The car id is path-escaped so it always occupies exactly one segment.
func ObjectKey(carID string, at time.Time, n uint64) string {
	at = at.UTC()
	return fmt.Sprintf("locations/%s/%04d/%02d/%02d/%d-%d.json",
		url.PathEscape(carID), at.Year(), int(at.Month()), at.Day(), at.UnixMilli(), n)
}
