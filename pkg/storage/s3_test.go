package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/pkg/config"
)

type fakeObject struct {
	body         []byte
	contentType  string
	lastModified time.Time
}

// fakeS3 answers the handful of path-style S3 calls S3Storage makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	now     time.Time
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		keys := make([]string, 0, len(f.objects))
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			obj := f.objects[k]
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>%s</LastModified></Contents>",
				k, len(obj.body), obj.lastModified.UTC().Format(time.RFC3339))
		}
		b.WriteString("</ListBucketResult>")
		return respond(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}}), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), lastModified: f.now}
		return respond(http.StatusOK, "", http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`,
				http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return respond(http.StatusOK, string(obj.body), http.Header{
			"Content-Length": {fmt.Sprintf("%d", len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Last-Modified":  {obj.lastModified.UTC().Format(http.TimeFormat)},
		}), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, "", http.Header{}), nil
	}
	return respond(http.StatusNotImplemented, "", http.Header{}), nil
}

func respond(status int, body string, header http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader([]byte(body))), Header: header, ContentLength: int64(len(body))}
}

func newFakeS3Storage(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string]fakeObject), now: time.Now().UTC()}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://fake.s3.local")
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return newS3Storage(client, "roster", "exports/"), fake
}

func TestS3StorageSaveOpenDelete(t *testing.T) {
	store, fake := newFakeS3Storage(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc/students.csv", []byte("a,b"), "text/csv"))
	require.Contains(t, fake.objects, "exports/abc/students.csv")
	assert.Equal(t, "text/csv", fake.objects["exports/abc/students.csv"].contentType)

	rc, size, err := store.Open(ctx, "abc/students.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, int64(3), size)
	assert.Equal(t, "a,b", string(body))

	require.NoError(t, store.Delete(ctx, "abc/students.csv"))
	_, _, err = store.Open(ctx, "abc/students.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StorageCleanupOlderThan(t *testing.T) {
	store, fake := newFakeS3Storage(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "old/students.csv", []byte("old"), "text/csv"))
	require.NoError(t, store.Save(ctx, "new/students.csv", []byte("new"), "text/csv"))
	fake.mu.Lock()
	old := fake.objects["exports/old/students.csv"]
	old.lastModified = fake.now.Add(-3 * time.Hour)
	fake.objects["exports/old/students.csv"] = old
	fake.mu.Unlock()

	deleted, err := store.CleanupOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old/students.csv"}, deleted)
	assert.NotContains(t, fake.objects, "exports/old/students.csv")
	assert.Contains(t, fake.objects, "exports/new/students.csv")
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), configWithoutBucket())
	assert.Error(t, err)
}

func configWithoutBucket() config.S3Config {
	return config.S3Config{Region: "eu-west-1"}
}
