package handlers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"nil-match-engine/internal/models"
	"nil-match-engine/internal/services/database"
	"nil-match-engine/internal/utils"
)

// maxReportedErrors caps the row errors returned in an import result.
const maxReportedErrors = 10

// ObjectDownloader fetches an uploaded object.
type ObjectDownloader interface {
	DownloadObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// RosterWriter stores imported athletes.
type RosterWriter interface {
	UpsertCandidates(ctx context.Context, athletes []*models.CandidateProfile) (*database.ImportResult, error)
}

// RosterImportHandler imports roster CSVs uploaded under rosters/.
type RosterImportHandler struct {
	objects ObjectDownloader
	writer  RosterWriter
	logger  *zap.Logger
}

// NewRosterImportHandler creates a roster import handler.
func NewRosterImportHandler(objects ObjectDownloader, writer RosterWriter, logger *zap.Logger) *RosterImportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterImportHandler{objects: objects, writer: writer, logger: logger}
}

// RosterImportResult is the result of importing one roster file.
type RosterImportResult struct {
	Message  string   `json:"message"`
	Key      string   `json:"key,omitempty"`
	Inserted int      `json:"inserted"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Handle processes S3 events for uploaded roster files. Each record is
// imported independently.
func (h *RosterImportHandler) Handle(ctx context.Context, s3Event events.S3Event) ([]RosterImportResult, error) {
	if len(s3Event.Records) == 0 {
		return []RosterImportResult{{Message: "No records to process"}}, nil
	}

	results := make([]RosterImportResult, 0, len(s3Event.Records))
	for _, record := range s3Event.Records {
		bucket := record.S3.Bucket.Name
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return results, fmt.Errorf("failed to decode S3 key: %w", err)
		}

		result, err := h.importRoster(ctx, bucket, key)
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

func (h *RosterImportHandler) importRoster(ctx context.Context, bucket, key string) (*RosterImportResult, error) {
	log := h.logger.With(zap.String("bucket", bucket), zap.String("key", key))
	if !strings.HasSuffix(strings.ToLower(key), ".csv") {
		log.Info("Ignoring non-CSV object")
		return &RosterImportResult{Message: "Ignored non-CSV object", Key: key}, nil
	}

	log.Info("Processing roster file")

	content, err := h.objects.DownloadObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download roster: %w", err)
	}

	athletes, parseErrors := utils.NewRosterParser().ParseAthletes(string(content))
	if len(athletes) == 0 {
		return &RosterImportResult{
			Message: "No valid athletes found in roster",
			Key:     key,
			Failed:  len(parseErrors),
			Errors:  capErrors(errorStrings(parseErrors)),
		}, nil
	}

	log.Info("Parsed roster",
		zap.Int("valid_athletes", len(athletes)),
		zap.Int("parse_errors", len(parseErrors)),
	)

	imported, err := h.writer.UpsertCandidates(ctx, athletes)
	if err != nil {
		log.Error("Failed to import athletes", zap.Error(err))
		return nil, fmt.Errorf("failed to import athletes: %w", err)
	}

	log.Info("Imported roster",
		zap.Int("inserted", imported.InsertedCount),
		zap.Int("failed", imported.FailedCount),
	)

	return &RosterImportResult{
		Message:  "Roster imported",
		Key:      key,
		Inserted: imported.InsertedCount,
		Failed:   imported.FailedCount + len(parseErrors),
		Errors:   capErrors(append(errorStrings(parseErrors), imported.Errors...)),
	}, nil
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func capErrors(errs []string) []string {
	if len(errs) > maxReportedErrors {
		return errs[:maxReportedErrors]
	}
	return errs
}
