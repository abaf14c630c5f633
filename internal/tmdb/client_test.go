package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
	mux.HandleFunc("/3/movie/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			writeJSON(w, http.StatusUnauthorized, `{"status_message":"Invalid API key"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"id": 1234567, "title": "Newest"}`)
	})
	mux.HandleFunc("/3/movie/603", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "en-US", r.URL.Query().Get("language"))
		writeJSON(w, http.StatusOK, `{"id": 603, "title": "The Matrix", "genres": [{"id": 28, "name": "Action"}]}`)
	})
	mux.HandleFunc("/3/movie/603/keywords", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id": 603, "keywords": [{"id": 1, "name": "hacker"}, {"id": 2, "name": "simulated reality"}]}`)
	})
	mux.HandleFunc("/3/movie/2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"status_code": 34, "status_message": "The resource you requested could not be found."}`)
	})
	mux.HandleFunc("/3/movie/3", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"status_message":"bad"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, key string) *Client {
	t.Helper()
	srv := newTestServer(t)
	c, err := New(key, Options{BaseURL: srv.URL, RetryCount: -1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New("", Options{})
	require.Error(t, err)
}

func TestLatest(t *testing.T) {
	t.Parallel()

	id, err := newTestClient(t, "test-key").Latest(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1234567, id)
}

func TestLatest_Unauthorized(t *testing.T) {
	t.Parallel()

	_, err := newTestClient(t, "wrong").Latest(context.Background())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	require.Equal(t, http.StatusUnauthorized, statusErr.Status)
}

func TestMovieAndKeywords(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, "test-key")

	raw, err := c.Movie(context.Background(), 603)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "The Matrix", doc["title"])

	kw, err := c.Keywords(context.Background(), 603)
	require.NoError(t, err)
	require.Equal(t, []string{"hacker", "simulated reality"}, kw)
}

func TestMovie_NotFoundAndErrors(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, "test-key")

	_, err := c.Movie(context.Background(), 2)
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = c.Movie(context.Background(), 3)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	require.Equal(t, http.StatusBadRequest, statusErr.Status)
}
