// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlbe/mlbe-runner/internal/container"
	"github.com/mlbe/mlbe-runner/internal/orchestrator"
)

type fakeClient struct {
	mu          sync.Mutex
	exists      bool
	existsErr   error
	makeErr     error
	putErr      error
	makeCalls   int
	existsCalls int
	objects     map[string][]byte
	contentType string
}

func (c *fakeClient) BucketExists(context.Context, string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.existsCalls++
	return c.exists, c.existsErr
}

func (c *fakeClient) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.makeCalls++
	if c.makeErr != nil {
		return c.makeErr
	}
	c.exists = true
	return nil
}

func (c *fakeClient) PutObject(_ context.Context, _, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return minio.UploadInfo{}, c.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if c.objects == nil {
		c.objects = map[string][]byte{}
	}
	c.objects[key] = data
	c.contentType = opts.ContentType
	return minio.UploadInfo{Key: key, Size: int64(len(data))}, nil
}

func newTestStore(t *testing.T, client *fakeClient, prefix string) *Store {
	t.Helper()
	s, err := newStore(client, "mlbe-runs", defaultRegion, prefix, nil)
	require.NoError(t, err)
	s.newID = func() string { return "01jabc" }
	return s
}

func TestStore_Archive(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	s := newTestStore(t, client, "/runs/")

	rec := orchestrator.Record{
		Kind:            orchestrator.KindSingleTest,
		Implementations: []int64{42},
		Language:        "python",
		Result:          &container.Result{ExitCode: 7, Stdout: "1 failed", Image: "python:3.12-slim"},
		FinishedAt:      time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Archive(context.Background(), rec))
	require.NoError(t, s.Archive(context.Background(), rec))

	assert.Equal(t, 1, client.makeCalls, "bucket is created once")
	assert.Equal(t, 1, client.existsCalls)
	assert.Equal(t, contentType, client.contentType)

	data, ok := client.objects["runs/test/2026/03/09/01jabc.json"]
	require.True(t, ok, "objects: %v", client.objects)

	var got orchestrator.Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 7, got.Result.ExitCode)
	assert.Equal(t, []int64{42}, got.Implementations)
}

func TestStore_ArchiveErrors(t *testing.T) {
	t.Parallel()

	t.Run("bucket check fails then recovers", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{existsErr: errors.New("dial tcp: connection refused")}
		s := newTestStore(t, client, "")

		err := s.Archive(context.Background(), orchestrator.Record{Kind: orchestrator.KindDeploy})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ensure bucket mlbe-runs")

		client.mu.Lock()
		client.existsErr = nil
		client.exists = true
		client.mu.Unlock()
		require.NoError(t, s.Archive(context.Background(), orchestrator.Record{Kind: orchestrator.KindDeploy}))
		assert.Equal(t, 0, client.makeCalls)
	})

	t.Run("bucket created concurrently", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{makeErr: minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou"}}
		s := newTestStore(t, client, "")

		require.NoError(t, s.Archive(context.Background(), orchestrator.Record{Kind: orchestrator.KindContractTest}))
	})

	t.Run("upload fails", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("access denied")
		s := newTestStore(t, &fakeClient{exists: true, putErr: cause}, "")

		err := s.Archive(context.Background(), orchestrator.Record{Kind: orchestrator.KindSingleTest})
		require.ErrorIs(t, err, cause)
	})
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}, nil)
	assert.Error(t, err, "endpoint required")

	_, err = New(Config{Endpoint: "localhost:9000", Bucket: "b"}, nil)
	assert.Error(t, err, "credentials required")

	_, err = New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, nil)
	assert.Error(t, err, "bucket required")

	s, err := New(Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "a", SecretKey: "s"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultRegion, s.region)

	assert.True(t, Config{Endpoint: "localhost:9000", Bucket: "b"}.Enabled())
	assert.False(t, Config{Endpoint: "localhost:9000"}.Enabled())
}
