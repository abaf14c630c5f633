package objectstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	require.False(t, store.BucketExists())
	require.NoError(t, store.EnsureBucket(ctx))
	require.True(t, store.BucketExists())

	require.NoError(t, store.Put(ctx, "diffusion/temp_data/b.ndjson", []byte("b"), ""))
	require.NoError(t, store.Put(ctx, "diffusion/temp_data/a.ndjson", []byte("a"), ""))
	require.NoError(t, store.Put(ctx, "diffusion/TMDB_movies.parquet", []byte("pq"), ""))

	listed, err := store.List(ctx, "diffusion/temp_data/")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "diffusion/temp_data/a.ndjson", listed[0].Key)
	require.Equal(t, "diffusion/temp_data/b.ndjson", listed[1].Key)

	info, err := store.Stat(ctx, "diffusion/TMDB_movies.parquet")
	require.NoError(t, err)
	require.EqualValues(t, 2, info.Size)
	require.NotEmpty(t, info.ETag)

	require.NoError(t, store.Remove(ctx, "diffusion/temp_data/a.ndjson"))
	_, err = store.Get(ctx, "diffusion/temp_data/a.ndjson")
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = store.Stat(ctx, "nope")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Put(ctx, "k", []byte("value"), ""))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "value", string(again))
}

func TestNewMinIO_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewMinIO(Config{Bucket: "alimane"})
	require.ErrorContains(t, err, "endpoint")

	_, err = NewMinIO(Config{Endpoint: "minio.lab.sspcloud.fr"})
	require.ErrorContains(t, err, "bucket")

	store, err := NewMinIO(Config{Endpoint: "minio.lab.sspcloud.fr", Bucket: "alimane", Secure: true})
	require.NoError(t, err)
	require.Equal(t, "alimane", store.Bucket())
}

func TestConfig_WithEnvCredentials(t *testing.T) {
	t.Parallel()

	base := Config{Endpoint: "localhost:9000", Bucket: "b"}

	cfg, err := base.WithEnvCredentials(map[string]string{
		EnvAccessKeyID:     "id",
		EnvSecretAccessKey: "secret",
		EnvSessionToken:    "token",
	})
	require.NoError(t, err)
	require.Equal(t, "id", cfg.AccessKeyID)
	require.Equal(t, "secret", cfg.SecretAccessKey)
	require.Equal(t, "token", cfg.SessionToken)
	require.Equal(t, "localhost:9000", cfg.Endpoint)

	_, err = base.WithEnvCredentials(map[string]string{EnvAccessKeyID: "id"})
	require.EqualError(t, err, "missing object store credentials: MINIO_SECRET_ACCESS_KEY")
}

func TestMemory_ConditionalPut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.PutIfAbsent(ctx, "k", []byte("a"), ""))
	err := store.PutIfAbsent(ctx, "k", []byte("b"), "")
	require.True(t, errors.Is(err, ErrPreconditionFailed), "got %v", err)

	info, err := store.Stat(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, store.PutIfMatch(ctx, "k", []byte("c"), "", info.ETag))

	err = store.PutIfMatch(ctx, "k", []byte("d"), "", info.ETag)
	require.True(t, errors.Is(err, ErrPreconditionFailed), "stale etag must lose, got %v", err)

	err = store.PutIfMatch(ctx, "missing", []byte("x"), "", info.ETag)
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "c", string(data))
}
