package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	s3service "nil-match-engine/internal/services/s3"
)

// lambdaHeaders returns the CORS and content headers of an API Gateway response.
func lambdaHeaders(methods string) map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,Authorization",
		"Access-Control-Allow-Methods": methods,
		"Content-Type":                 "application/json",
	}
}

// lambdaJSON encodes resp as an API Gateway response in the API envelope.
func lambdaJSON(headers map[string]string, statusCode int, resp Response) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(resp)

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// errorResponse creates an error response.
func errorResponse(headers map[string]string, statusCode int, message string) (events.APIGatewayProxyResponse, error) {
	return lambdaJSON(headers, statusCode, Response{Success: false, Error: message})
}

// RefreshTriggerHandler runs a score refresh from an API Gateway request to
// POST /agencies/{id}/refresh-scores.
type RefreshTriggerHandler struct {
	refresher Refresher
	logger    *zap.Logger
}

// NewRefreshTriggerHandler creates a refresh trigger handler.
func NewRefreshTriggerHandler(refresher Refresher, logger *zap.Logger) *RefreshTriggerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshTriggerHandler{refresher: refresher, logger: logger}
}

// Handle processes API Gateway requests to refresh an agency's scores.
func (h *RefreshTriggerHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := lambdaHeaders("POST,OPTIONS")

	// Handle CORS preflight
	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	}

	agencyID := strings.TrimSpace(request.PathParameters["id"])
	if agencyID == "" {
		var body struct {
			AgencyID string `json:"agency_id"`
		}
		if request.Body != "" {
			if err := json.Unmarshal([]byte(request.Body), &body); err != nil {
				return errorResponse(headers, http.StatusBadRequest, "Invalid JSON in request body")
			}
		}
		agencyID = strings.TrimSpace(body.AgencyID)
	}
	if agencyID == "" {
		return errorResponse(headers, http.StatusBadRequest, "Missing required field: agency_id")
	}

	report, err := h.refresher.RefreshScores(ctx, agencyID)
	if err != nil {
		status := StatusFor(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			h.logger.Error("Score refresh failed", zap.String("agency_id", agencyID), zap.Error(err))
			message = "Failed to refresh scores"
		}
		return errorResponse(headers, status, message)
	}

	return lambdaJSON(headers, http.StatusOK, Response{
		Success: true,
		Message: "Refreshed " + agencyID + " interaction scores",
		Data:    report,
	})
}

// RosterUploadHandler issues presigned roster upload URLs from API Gateway
// requests.
type RosterUploadHandler struct {
	uploads UploadURLGenerator
	expiry  time.Duration
	logger  *zap.Logger
}

// NewRosterUploadHandler creates a roster upload URL handler.
func NewRosterUploadHandler(uploads UploadURLGenerator, expiry time.Duration, logger *zap.Logger) *RosterUploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterUploadHandler{uploads: uploads, expiry: expiry, logger: logger}
}

// Handle processes API Gateway requests for roster upload URLs.
func (h *RosterUploadHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := lambdaHeaders("GET,OPTIONS")

	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	}

	filename := request.QueryStringParameters["filename"]
	if filename == "" {
		return errorResponse(headers, http.StatusBadRequest, "Missing required query parameter: filename")
	}

	result, err := h.uploads.GenerateRosterUploadURL(ctx, filename, h.expiry)
	if err != nil {
		if errors.Is(err, s3service.ErrNotCSV) {
			return errorResponse(headers, http.StatusBadRequest, "Only CSV files are allowed")
		}
		h.logger.Error("Failed to generate roster upload URL", zap.Error(err))
		return errorResponse(headers, http.StatusInternalServerError, "Failed to generate upload URL")
	}

	return lambdaJSON(headers, http.StatusOK, Response{Success: true, Data: result})
}
