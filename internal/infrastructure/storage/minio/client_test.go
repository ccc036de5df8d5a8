package minio

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

type fakeObjectAPI struct {
	getObjectFunc    func(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	bucketExistsFunc func(ctx context.Context, bucket string) (bool, error)
}

func (f *fakeObjectAPI) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return f.getObjectFunc(ctx, bucket, key)
}

func (f *fakeObjectAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.bucketExistsFunc(ctx, bucket)
}

func testClient(t *testing.T, api objectAPI) *Client {
	t.Helper()

	orig := newSDKClient
	newSDKClient = func(Config) (objectAPI, error) { return api, nil }
	t.Cleanup(func() { newSDKClient = orig })

	c, err := NewClient(Config{
		Endpoint:  "minio.local:9000",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "fda-docs",
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewClient(Config{Bucket: "b"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = NewClient(Config{Endpoint: "minio.local:9000"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestFetchSupportingText_ReturnsTrimmedDocument(t *testing.T) {
	var gotBucket, gotKey string
	api := &fakeObjectAPI{
		getObjectFunc: func(_ context.Context, bucket, key string) (io.ReadCloser, error) {
			gotBucket, gotKey = bucket, key
			return io.NopCloser(strings.NewReader("  Port dues invoice 2024/117\nTotal THB 95,000.  \n")), nil
		},
	}

	text, err := testClient(t, api).FetchSupportingText(context.Background(), "docs/rec-117.txt")
	require.NoError(t, err)
	assert.Equal(t, "fda-docs", gotBucket)
	assert.Equal(t, "docs/rec-117.txt", gotKey)
	assert.Equal(t, "Port dues invoice 2024/117\nTotal THB 95,000.", text)
}

func TestFetchSupportingText_EmptyKeyIsNoop(t *testing.T) {
	api := &fakeObjectAPI{
		getObjectFunc: func(context.Context, string, string) (io.ReadCloser, error) {
			t.Fatal("no fetch expected for empty key")
			return nil, nil
		},
	}

	text, err := testClient(t, api).FetchSupportingText(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFetchSupportingText_TruncatesOversizedDocuments(t *testing.T) {
	api := &fakeObjectAPI{
		getObjectFunc: func(context.Context, string, string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(strings.Repeat("x", maxDocBytes+500))), nil
		},
	}

	text, err := testClient(t, api).FetchSupportingText(context.Background(), "docs/huge.txt")
	require.NoError(t, err)
	assert.Len(t, text, maxDocBytes)
}

func TestFetchSupportingText_FetchFailureIsTyped(t *testing.T) {
	api := &fakeObjectAPI{
		getObjectFunc: func(context.Context, string, string) (io.ReadCloser, error) {
			return nil, errors.New(errors.ErrCodeInternal, "connection refused")
		},
	}

	text, err := testClient(t, api).FetchSupportingText(context.Background(), "docs/rec-117.txt")
	assert.Empty(t, text)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestPing(t *testing.T) {
	api := &fakeObjectAPI{
		bucketExistsFunc: func(context.Context, string) (bool, error) { return true, nil },
	}
	assert.NoError(t, testClient(t, api).Ping(context.Background()))

	api.bucketExistsFunc = func(context.Context, string) (bool, error) { return false, nil }
	err := testClient(t, api).Ping(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}
