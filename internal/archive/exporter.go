// Package archive exports cleared play history to object storage so a
// destructive clear still leaves an operator-recoverable snapshot.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/onnwee/replay/internal/play"
)

// Validation errors.
var (
	ErrInvalidUserID = errors.New("invalid user ID")
	ErrNoEvents      = errors.New("no events to export")
)

// Exporter writes cleared history snapshots to an S3-compatible bucket as
// JSON lines, one event per line.
type Exporter struct {
	s3Client   *s3.Client
	bucketName string
	timeNow    func() time.Time // For testability
}

// ExporterConfig holds configuration for the archive exporter.
type ExporterConfig struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// NewExporter creates an archive exporter with the given configuration.
func NewExporter(cfg ExporterConfig) (*Exporter, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	// S3 client with R2-compatible configuration.
	s3Client := s3.New(s3.Options{
		Region: "auto", // R2 uses auto region
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // No session token for R2
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true, // R2 requires path-style addressing
	})

	return &Exporter{
		s3Client:   s3Client,
		bucketName: cfg.BucketName,
		timeNow:    time.Now,
	}, nil
}

// ObjectKey builds the archive key for a user's snapshot.
// Pattern: history/{userID}/{RFC3339 timestamp}.jsonl
func ObjectKey(userID string, at time.Time) (string, error) {
	sanitized := sanitizePathComponent(userID)
	if sanitized == "" {
		return "", ErrInvalidUserID
	}
	return fmt.Sprintf("history/%s/%s.jsonl", sanitized, at.UTC().Format("2006-01-02T15-04-05Z")), nil
}

// sanitizePathComponent removes potentially dangerous characters from path components.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Encode renders events as JSON lines in their given order.
func Encode(events []*play.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return nil, fmt.Errorf("encode event %s: %w", event.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// Export implements play.Archiver: it uploads the user's cleared events and
// returns the object key of the snapshot.
func (e *Exporter) Export(ctx context.Context, userID string, events []*play.Event) (string, error) {
	if len(events) == 0 {
		return "", ErrNoEvents
	}

	key, err := ObjectKey(userID, e.timeNow())
	if err != nil {
		return "", err
	}

	body, err := Encode(events)
	if err != nil {
		return "", err
	}

	_, err = e.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/x-ndjson"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	return key, nil
}

// BucketName returns the bucket the exporter writes to.
func (e *Exporter) BucketName() string {
	return e.bucketName
}
