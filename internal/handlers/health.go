package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
)

// Health states.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Pinger is a dependency that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker pings the store the engine reads from.
type HealthChecker struct {
	store   Pinger
	timeout time.Duration
}

// NewHealthChecker creates a health checker. A nil store reports
// "not configured".
func NewHealthChecker(store Pinger) *HealthChecker {
	return &HealthChecker{store: store, timeout: 3 * time.Second}
}

// HealthResponse is the response structure for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Stage     string `json:"stage"`
	Store     string `json:"store"`
}

// Check reports overall health and store connectivity.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	response := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "nil-match-engine",
		Version:   getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		Stage:     getEnvOrDefault("STAGE", "unknown"),
		Store:     "not configured",
	}
	if h == nil || h.store == nil {
		return response
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		response.Store = "disconnected"
		response.Status = StatusDegraded
	} else {
		response.Store = "connected"
	}
	return response
}

// Handle processes Lambda health check requests.
func (h *HealthChecker) Handle(ctx context.Context, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	response := h.Check(ctx)

	statusCode := http.StatusOK
	if response.Status != StatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}

	body, _ := json.Marshal(response)

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    lambdaHeaders("GET,OPTIONS"),
		Body:       string(body),
	}, nil
}

// getEnvOrDefault returns environment variable or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
