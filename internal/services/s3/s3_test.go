package s3service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nil-match-engine/internal/models"
)

type fakeObjects struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	name := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[name] = data
	f.types[name] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type fakePresigner struct {
	key     string
	expires time.Duration
}

func (p *fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	p.key = aws.ToString(in.Key)
	p.expires = opts.Expires
	return &PresignedRequest{URL: "https://signed.example/" + p.key}, nil
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"s3://rosters/2026/team.csv", "rosters", "2026/team.csv", false},
		{"s3://bucket/key", "bucket", "key", false},
		{"https://bucket/key", "", "", true},
		{"s3://bucket", "", "", true},
		{"s3://bucket/folder/", "", "", true},
		{"s3:///key", "", "", true},
		{"roster.csv", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			bucket, key, err := ParseURL(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("s3://b/k"))
	assert.False(t, IsURL("./roster.csv"))
}

func TestArchiveRefreshReport(t *testing.T) {
	objects := newFakeObjects()
	svc := NewWithClient(objects, nil, "reports-bucket", zap.NewNop())
	report := &models.RefreshReport{RunID: "run-1", AgencyID: "ag-7", UpdatedCount: 3, FailedCount: 1}

	key, err := svc.ArchiveRefreshReport(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "reports/refresh/ag-7/run-1.json", key)

	stored := objects.objects["reports-bucket/"+key]
	var decoded models.RefreshReport
	require.NoError(t, json.Unmarshal(stored, &decoded))
	assert.Equal(t, 3, decoded.UpdatedCount)
	assert.Equal(t, "application/json", objects.types["reports-bucket/"+key])
}

func TestDownloadObject(t *testing.T) {
	objects := newFakeObjects()
	objects.objects["other/roster.csv"] = []byte("athlete_id,name,primary_sport\n")
	svc := NewWithClient(objects, nil, "default", zap.NewNop())

	data, err := svc.DownloadObject(context.Background(), "other", "roster.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "athlete_id"))

	_, err = svc.DownloadFile(context.Background(), "roster.csv")
	assert.Error(t, err)
}

func TestGenerateRosterUploadURL(t *testing.T) {
	presigner := &fakePresigner{}
	svc := NewWithClient(newFakeObjects(), presigner, "uploads", zap.NewNop())

	result, err := svc.GenerateRosterUploadURL(context.Background(), "Spring Roster (final).csv", 0)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Key, "rosters/"))
	assert.True(t, strings.HasSuffix(result.Key, "_SpringRosterfinal.csv"))
	assert.Equal(t, presigner.key, result.Key)
	assert.Equal(t, 15*time.Minute, presigner.expires)
	assert.Equal(t, "https://signed.example/"+result.Key, result.URL)

	_, err = svc.GenerateRosterUploadURL(context.Background(), "roster.xlsx", time.Minute)
	assert.ErrorIs(t, err, ErrNotCSV)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b_c.csv", SanitizeFilename("a-b_c.csv"))
	assert.Equal(t, "..etcpasswd.csv", SanitizeFilename("../etc/passwd.csv"))
	long := strings.Repeat("x", 120) + ".csv"
	assert.Len(t, SanitizeFilename(long), 100)
	assert.True(t, strings.HasSuffix(SanitizeFilename(long), ".csv"))
}
