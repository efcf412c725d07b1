package remote

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBucket is an in-memory objectAPI.
type memBucket struct {
	objects map[string][]byte
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string][]byte)}
}

func (m *memBucket) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memBucket) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestPushPullRoundTrip(t *testing.T) {
	bucket := newMemBucket()
	syncer := newSyncerWithClient(bucket, "test-bucket", "agents/a1")
	ctx := context.Background()

	artifact := []byte("sqlite file contents")
	manifest, err := syncer.Push(ctx, artifact)
	require.NoError(t, err)
	assert.NotEmpty(t, manifest.Generation)
	assert.Equal(t, int64(len(artifact)), manifest.Size)

	pulled, pulledManifest, err := syncer.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, artifact, pulled)
	assert.Equal(t, manifest.Generation, pulledManifest.Generation)
}

func TestPushUsesPrefix(t *testing.T) {
	bucket := newMemBucket()
	syncer := newSyncerWithClient(bucket, "test-bucket", "agents/a1")

	_, err := syncer.Push(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Contains(t, bucket.objects, "agents/a1/metadata.db")
	assert.Contains(t, bucket.objects, "agents/a1/manifest.json")
}

func TestPullWithoutPush(t *testing.T) {
	syncer := newSyncerWithClient(newMemBucket(), "test-bucket", "")

	_, _, err := syncer.Pull(context.Background())
	assert.ErrorIs(t, err, ErrNoManifest)
}

func TestPullDetectsCorruption(t *testing.T) {
	bucket := newMemBucket()
	syncer := newSyncerWithClient(bucket, "test-bucket", "")
	ctx := context.Background()

	_, err := syncer.Push(ctx, []byte("original"))
	require.NoError(t, err)

	bucket.objects["metadata.db"] = []byte("tampered")
	_, _, err = syncer.Pull(ctx)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestNewGenerationPerPush(t *testing.T) {
	syncer := newSyncerWithClient(newMemBucket(), "test-bucket", "")
	ctx := context.Background()

	first, err := syncer.Push(ctx, []byte("a"))
	require.NoError(t, err)
	second, err := syncer.Push(ctx, []byte("a"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Generation, second.Generation)
}

func TestWriteArtifactAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metadata.db")
	require.NoError(t, WriteArtifact(path, []byte("data")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	// Leftover temp file must not exist.
	_, err = os.Stat(path + ".pull")
	assert.True(t, os.IsNotExist(err))
}
