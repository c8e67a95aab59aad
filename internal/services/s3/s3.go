// Package s3service provides S3 operations for the NIL match engine
package s3service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nil-match-engine/internal/models"
	"nil-match-engine/internal/utils"
)

// S3 errors
var (
	ErrInvalidURL = errors.New("invalid s3 url")
	ErrNotCSV     = errors.New("only CSV files are allowed")
)

// ObjectAPI is the subset of the S3 client the service uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Presigner signs upload requests.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest is a signed upload request.
type PresignedRequest struct {
	URL string
}

type sdkPresigner struct {
	client *s3.PresignClient
}

func (p sdkPresigner) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignPutObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{URL: req.URL}, nil
}

// Service handles S3 operations
type Service struct {
	client     ObjectAPI
	presigner  Presigner
	bucketName string
	logger     *zap.Logger
}

// PresignedURLResult contains the presigned URL details
type PresignedURLResult struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewService creates a new S3 service for bucket.
func NewService(ctx context.Context, region, bucket string) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &Service{
		client:     client,
		presigner:  sdkPresigner{client: s3.NewPresignClient(client)},
		bucketName: bucket,
		logger:     utils.GetLogger(),
	}, nil
}

// NewWithClient creates a service around an existing client.
func NewWithClient(client ObjectAPI, presigner Presigner, bucket string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, presigner: presigner, bucketName: bucket, logger: logger}
}

// Bucket returns the service's default bucket.
func (s *Service) Bucket() string {
	return s.bucketName
}

// ParseURL splits an s3://bucket/key location.
func ParseURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q has no object key", ErrInvalidURL, raw)
	}
	return u.Host, key, nil
}

// IsURL reports whether location looks like an s3:// URL.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// DownloadFile downloads a file from the default bucket
func (s *Service) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	return s.DownloadObject(ctx, s.bucketName, key)
}

// DownloadObject downloads a file from any bucket
func (s *Service) DownloadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	result, err := s.client.GetObject(ctx, input)
	if err != nil {
		s.logger.Error("Failed to download file from S3",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}

	s.logger.Info("Downloaded file from S3",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)

	return data, nil
}

// UploadFile uploads a file to the default bucket
func (s *Service) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.logger.Error("Failed to upload file to S3",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to upload file: %w", err)
	}

	s.logger.Info("Uploaded file to S3",
		zap.String("bucket", s.bucketName),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)

	return nil
}

// PutJSON encodes v and uploads it as a JSON object.
func (s *Service) PutJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.UploadFile(ctx, key, data, "application/json")
}

// ReportKey is the object key of a refresh report.
func ReportKey(report *models.RefreshReport) string {
	return path.Join("reports", "refresh", report.AgencyID, report.RunID+".json")
}

// ArchiveRefreshReport uploads a refresh report and returns its key.
func (s *Service) ArchiveRefreshReport(ctx context.Context, report *models.RefreshReport) (string, error) {
	key := ReportKey(report)
	if err := s.PutJSON(ctx, key, report); err != nil {
		return "", err
	}
	return key, nil
}

// GenerateRosterUploadURL creates a presigned PUT URL for a roster CSV. The
// object lands under rosters/, where the import trigger picks it up.
func (s *Service) GenerateRosterUploadURL(ctx context.Context, filename string, expiry time.Duration) (*PresignedURLResult, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return nil, fmt.Errorf("%w: %q", ErrNotCSV, filename)
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	key := "rosters/" + time.Now().UTC().Format("2006/01/02") + "/" + uuid.New().String() + "_" + SanitizeFilename(filename)

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ContentType: aws.String("text/csv"),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		s.logger.Error("Failed to generate presigned URL",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	s.logger.Info("Generated roster upload URL",
		zap.String("bucket", s.bucketName),
		zap.String("key", key),
		zap.Duration("expiry", expiry),
	)

	return &PresignedURLResult{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

// SanitizeFilename keeps letters, digits, dots, dashes and underscores.
func SanitizeFilename(filename string) string {
	var sb strings.Builder
	for _, r := range filename {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	safe := sb.String()
	if len(safe) > 100 {
		safe = safe[len(safe)-100:]
	}
	return safe
}
