package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nil-match-engine/internal/models"
	"nil-match-engine/internal/services/database"
	"nil-match-engine/internal/services/ranking"
	"nil-match-engine/internal/services/refresh"
	s3service "nil-match-engine/internal/services/s3"
	"nil-match-engine/internal/services/scoring"
	"nil-match-engine/internal/services/store"
)

func seededStore(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for i, sport := range []string{"soccer", "golf", "soccer"} {
		require.NoError(t, m.PutCandidate(&models.CandidateProfile{
			ID:                fmt.Sprintf("ath-%d", i+1),
			Name:              "Athlete",
			PrimarySport:      sport,
			Followers:         map[models.Platform]int64{models.PlatformInstagram: int64(1000 * (i + 1))},
			AvgEngagementRate: 3,
			FMVLow:            1000,
			FMVHigh:           2000,
		}))
	}
	require.NoError(t, m.PutCampaign(&models.TargetCriteria{CampaignID: "camp-1", TargetSports: []string{"soccer"}, BudgetPerCandidate: 1500}))
	require.NoError(t, m.PutAgency(&models.AgencyTarget{
		AgencyID:    "ag-1",
		BrandValues: []models.BrandValue{{TraitID: "grit", Priority: 2, ImportanceWeight: 1}},
	}))
	m.PutInteraction(models.Interaction{ID: "int-1", AgencyID: "ag-1", AthleteID: "ath-1", Status: models.InteractionSaved})
	return m
}

func newTestAPI(t *testing.T, s store.Store, opts ...APIOption) http.Handler {
	t.Helper()
	scorer := scoring.NewScorer(scoring.DefaultWeights())
	api := NewAPI(
		ranking.NewService(s, scorer, ranking.Config{}, zap.NewNop()),
		refresh.NewJob(s, scorer, 2, zap.NewNop()),
		NewHealthChecker(s),
		zap.NewNop(),
		opts...,
	)
	return api.Routes()
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID string          `json:"request_id"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestAPI_Search(t *testing.T) {
	h := newTestAPI(t, seededStore(t))

	w, env := do(t, h, http.MethodPost, "/api/search", `{"target_id":"camp-1","page":{"page":1,"limit":2}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, w.Header().Get("X-Request-ID"))

	var resp struct {
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
		Results []struct {
			CandidateID string `json:"candidate_id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 3, resp.Total)
	assert.True(t, resp.HasMore)
	require.Len(t, resp.Results, 2)
	assert.Contains(t, string(env.Data), `"factors":{"brand_values"`)
}

func TestAPI_SearchErrors(t *testing.T) {
	h := newTestAPI(t, seededStore(t))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"target_id":`, http.StatusBadRequest},
		{"bad sort key", `{"target_id":"camp-1","sort":{"key":"height"}}`, http.StatusBadRequest},
		{"unknown campaign", `{"target_id":"nope"}`, http.StatusNotFound},
		{"unknown agency", `{"mode":"agency","target_id":"nope"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, h, http.MethodPost, "/api/search", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestAPI_Score(t *testing.T) {
	h := newTestAPI(t, seededStore(t))

	w, env := do(t, h, http.MethodGet, "/api/campaigns/camp-1/athletes/ath-1/score", "")
	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.GreaterOrEqual(t, result.Total, 0)
	assert.LessOrEqual(t, result.Total, 100)

	w, env = do(t, h, http.MethodGet, "/api/agencies/ag-1/athletes/ath-2/score", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"trait_alignment"`)

	w, _ = do(t, h, http.MethodGet, "/api/campaigns/camp-1/athletes/ghost/score", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_Refresh(t *testing.T) {
	m := seededStore(t)
	h := newTestAPI(t, m)

	w, env := do(t, h, http.MethodPost, "/api/agencies/ag-1/refresh-scores", "")
	require.Equal(t, http.StatusOK, w.Code)

	var report models.RefreshReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 1, report.UpdatedCount)

	in, ok := m.Interaction("int-1")
	require.True(t, ok)
	assert.NotNil(t, in.MatchScore)
	assert.Equal(t, models.InteractionSaved, in.Status)

	w, _ = do(t, h, http.MethodPost, "/api/agencies/nope/refresh-scores", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type downStore struct{ store.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func (downStore) FetchCampaignTarget(context.Context, string) (*models.TargetCriteria, error) {
	return nil, fmt.Errorf("store breaker: %w", store.ErrStoreUnavailable)
}

func TestAPI_Health(t *testing.T) {
	w, env := do(t, newTestAPI(t, seededStore(t)), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"store":"connected"`)

	down := newTestAPI(t, downStore{Store: seededStore(t)})
	w, env = do(t, down, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, string(env.Data), `"status":"degraded"`)

	w, _ = do(t, down, http.MethodGet, "/api/campaigns/camp-1/athletes/ath-1/score", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPI_Metrics(t *testing.T) {
	h := newTestAPI(t, seededStore(t))
	do(t, h, http.MethodPost, "/api/search", `{"target_id":"camp-1"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nilmatch_search_requests_total")
}

func TestAPI_KeepsCallerRequestID(t *testing.T) {
	h := newTestAPI(t, seededStore(t))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

type fakeUploads struct {
	filename string
}

func (f *fakeUploads) GenerateRosterUploadURL(_ context.Context, filename string, _ time.Duration) (*s3service.PresignedURLResult, error) {
	f.filename = filename
	if !strings.HasSuffix(filename, ".csv") {
		return nil, s3service.ErrNotCSV
	}
	return &s3service.PresignedURLResult{URL: "https://signed.example/" + filename, Key: "rosters/" + filename}, nil
}

func TestAPI_UploadURL(t *testing.T) {
	uploads := &fakeUploads{}
	h := newTestAPI(t, seededStore(t), WithUploads(uploads))

	w, env := do(t, h, http.MethodPost, "/api/rosters/upload-url", `{"filename":"spring.csv"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "rosters/spring.csv")

	w, env = do(t, h, http.MethodPost, "/api/rosters/upload-url?filename=fall.csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "rosters/fall.csv")
	assert.Equal(t, "fall.csv", uploads.filename)

	w, _ = do(t, h, http.MethodPost, "/api/rosters/upload-url?filename=fall.xlsx", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, h, http.MethodPost, "/api/rosters/upload-url", `{"filename":"spring.xlsx"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, h, http.MethodPost, "/api/rosters/upload-url", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, h, http.MethodPost, "/api/rosters/upload-url", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, newTestAPI(t, seededStore(t)), http.MethodPost, "/api/rosters/upload-url", `{"filename":"a.csv"}`)
	assert.Equal(t, http.StatusNotFound, w.Code, "route is absent without an upload bucket")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("campaign: %w", models.ErrNotFound), http.StatusNotFound},
		{models.ErrInvalidPage, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", store.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestHealthChecker_Lambda(t *testing.T) {
	resp, err := NewHealthChecker(seededStore(t)).Handle(context.Background(), events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, `"service":"nil-match-engine"`)

	resp, err = NewHealthChecker(nil).Handle(context.Background(), events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, "not configured")
}

func TestRefreshTriggerHandler(t *testing.T) {
	m := seededStore(t)
	h := NewRefreshTriggerHandler(refresh.NewJob(m, scoring.NewScorer(scoring.DefaultWeights()), 1, nil), nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		req    events.APIGatewayProxyRequest
		status int
	}{
		{"path parameter", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, PathParameters: map[string]string{"id": "ag-1"}}, http.StatusOK},
		{"body", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: `{"agency_id":"ag-1"}`}, http.StatusOK},
		{"preflight", events.APIGatewayProxyRequest{HTTPMethod: http.MethodOptions}, http.StatusOK},
		{"missing agency", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost}, http.StatusBadRequest},
		{"bad json", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: "{"}, http.StatusBadRequest},
		{"unknown agency", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, PathParameters: map[string]string{"id": "nope"}}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.Handle(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
		})
	}
}

func TestRosterUploadHandler(t *testing.T) {
	h := NewRosterUploadHandler(&fakeUploads{}, time.Minute, nil)
	ctx := context.Background()

	resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{QueryStringParameters: map[string]string{"filename": "team.csv"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, "rosters/team.csv")

	resp, err = h.Handle(ctx, events.APIGatewayProxyRequest{QueryStringParameters: map[string]string{"filename": "team.txt"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = h.Handle(ctx, events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type fakeObjects map[string][]byte

func (f fakeObjects) DownloadObject(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := f[bucket+"/"+key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return data, nil
}

type recordingWriter struct {
	athletes []*models.CandidateProfile
}

func (w *recordingWriter) UpsertCandidates(_ context.Context, athletes []*models.CandidateProfile) (*database.ImportResult, error) {
	w.athletes = append(w.athletes, athletes...)
	return &database.ImportResult{InsertedCount: len(athletes), Errors: []string{}}, nil
}

func s3Event(bucket string, keys ...string) events.S3Event {
	var ev events.S3Event
	for _, key := range keys {
		var rec events.S3EventRecord
		rec.S3.Bucket.Name = bucket
		rec.S3.Object.Key = key
		ev.Records = append(ev.Records, rec)
	}
	return ev
}

func TestRosterImportHandler(t *testing.T) {
	objects := fakeObjects{
		"uploads/rosters/spring+team.csv": []byte("athlete_id,name,primary_sport\nA1,Jo,soccer\nA2,Bo,golf\n,Nobody,golf\n"),
		"uploads/rosters/notes.txt":       []byte("hello"),
	}
	writer := &recordingWriter{}
	h := NewRosterImportHandler(objects, writer, nil)

	results, err := h.Handle(context.Background(), s3Event("uploads", "rosters/spring%2Bteam.csv", "rosters/notes.txt"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 2, results[0].Inserted)
	assert.Equal(t, 1, results[0].Failed)
	assert.Len(t, results[0].Errors, 1)
	assert.Len(t, writer.athletes, 2)

	assert.Equal(t, "Ignored non-CSV object", results[1].Message)
}

func TestRosterImportHandler_Failures(t *testing.T) {
	h := NewRosterImportHandler(fakeObjects{"b/bad.csv": []byte("athlete_id,school\nA1,X\n")}, &recordingWriter{}, nil)
	ctx := context.Background()

	results, err := h.Handle(ctx, s3Event("b", "bad.csv"))
	require.NoError(t, err)
	assert.Equal(t, "No valid athletes found in roster", results[0].Message)
	assert.NotEmpty(t, results[0].Errors)

	_, err = h.Handle(ctx, s3Event("b", "missing.csv"))
	assert.Error(t, err)

	results, err = h.Handle(ctx, events.S3Event{})
	require.NoError(t, err)
	assert.Equal(t, "No records to process", results[0].Message)
}
