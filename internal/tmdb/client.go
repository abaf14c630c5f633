// Package tmdb is a minimal client for The Movie Database v3 API, covering
// the endpoints the dataset sync needs.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"resty.dev/v3"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.themoviedb.org"

// ErrNotFound is returned for ids TMDB does not know (deleted or never used).
var ErrNotFound = errors.New("tmdb: resource not found")

// Options tune the client. Zero values select the defaults.
type Options struct {
	BaseURL  string
	Language string
	Timeout  time.Duration
	// RetryCount defaults to 3; a negative value disables retries.
	RetryCount int
}

// Client talks to the TMDB API with a v4 read access token.
type Client struct {
	http     *resty.Client
	language string
}

// New creates a client authenticated with the bearer token key.
func New(key string, opts Options) (*Client, error) {
	if key == "" {
		return nil, errors.New("tmdb: api key must not be empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	switch {
	case opts.RetryCount == 0:
		opts.RetryCount = 3
	case opts.RetryCount < 0:
		opts.RetryCount = 0
	}

	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetAuthToken(key).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(10 * time.Second)

	return &Client{http: c, language: opts.Language}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// Latest returns the id of the most recently created movie.
func (c *Client) Latest(ctx context.Context) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/3/movie/latest")
	if err := check(resp, err, "latest movie"); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Movie returns the raw movie details document.
func (c *Client) Movie(ctx context.Context, id int64) (json.RawMessage, error) {
	var out json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		SetQueryParam("language", c.language).
		SetResult(&out).
		Get("/3/movie/{id}")
	if err := check(resp, err, fmt.Sprintf("movie %d", id)); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("tmdb: empty document for movie %d", id)
	}
	return out, nil
}

// Keyword is a TMDB keyword.
type Keyword struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Keywords returns the keyword names attached to a movie.
func (c *Client) Keywords(ctx context.Context, id int64) ([]string, error) {
	var out struct {
		ID       int64     `json:"id"`
		Keywords []Keyword `json:"keywords"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		SetResult(&out).
		Get("/3/movie/{id}/keywords")
	if err := check(resp, err, fmt.Sprintf("keywords of movie %d", id)); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Keywords))
	for _, k := range out.Keywords {
		names = append(names, k.Name)
	}
	return names, nil
}

// StatusError carries a non-2xx answer.
type StatusError struct {
	What   string
	Status int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: %s: unexpected status %d: %s", e.What, e.Status, e.Body)
}

func check(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("tmdb: %s: %w", what, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	if resp.IsError() {
		return &StatusError{What: what, Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
