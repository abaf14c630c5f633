package tmdb_sync

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dispatchgrid/internal/dataset"
	"github.com/vk/dispatchgrid/internal/job"
	"github.com/vk/dispatchgrid/internal/objectstore"
	"github.com/vk/dispatchgrid/internal/tmdb"
	"github.com/vk/dispatchgrid/internal/tmdbsync"
)

func TestInput_StoreConfig(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		objectstore.EnvAccessKeyID:     "id",
		objectstore.EnvSecretAccessKey: "secret",
		objectstore.EnvSessionToken:    "token",
	}

	cfg, err := (&Input{}).storeConfig(env)
	require.NoError(t, err)
	assert.Equal(t, objectstore.Config{
		Endpoint:        DefaultEndpoint,
		Bucket:          DefaultBucket,
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		SessionToken:    "token",
		Secure:          true,
	}, cfg)

	insecure := false
	cfg, err = (&Input{Endpoint: "localhost:9000", Bucket: "b", Secure: &insecure}).storeConfig(env)
	require.NoError(t, err)
	assert.False(t, cfg.Secure)
	assert.Equal(t, "localhost:9000", cfg.Endpoint)

	_, err = (&Input{}).storeConfig(map[string]string{})
	require.Error(t, err)
}

func TestOnRunTMDBSync_RequiresKey(t *testing.T) {
	t.Parallel()

	step := &job.Step{Job: job.New("run", "w", "workflow_dispatch", t.TempDir()), Name: "sync", Env: map[string]string{}}

	err := OnRunTMDBSync(context.Background(), step, &Input{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TMDB_KEY")
}

func TestRun_AgainstFakeAPI(t *testing.T) {
	t.Parallel()

	// Arrange
	mux := http.NewServeMux()
	mux.HandleFunc("/3/movie/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 3}`)
	})
	mux.HandleFunc("/3/movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "2" {
			http.Error(w, `{"status_code": 34}`, http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"id": %s, "title": "Movie %s", "genres": [{"id": 1, "name": "Drama"}]}`, r.PathValue("id"), r.PathValue("id"))
	})
	mux.HandleFunc("/3/movie/{id}/keywords", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id": %s, "keywords": [{"id": 9, "name": "heist"}]}`, r.PathValue("id"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := tmdb.New("token", tmdb.Options{BaseURL: srv.URL, RetryCount: -1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := objectstore.NewMemory()
	var out bytes.Buffer
	step := &job.Step{Job: job.New("run", "w", "workflow_dispatch", t.TempDir()), Name: "sync", Stdout: &out, Stderr: &bytes.Buffer{}}

	// Act
	err = run(context.Background(), step, store, client, tmdbsync.Options{StartID: 1})

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Fetched 2 movies (1 skipped, 0 failed) between ids 1 and 3; dataset has 2 rows")

	data, err := store.Get(context.Background(), tmdbsync.DefaultDataset)
	require.NoError(t, err)
	rows, err := dataset.ReadParquet(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Movie 1", rows[0].Title)
	assert.Equal(t, "heist", rows[0].Keywords)
	assert.Equal(t, "Drama", rows[0].Genres)

	staged, err := store.List(context.Background(), tmdbsync.DefaultTempPrefix)
	require.NoError(t, err)
	assert.Empty(t, staged)
}
