package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCleanups_ReverseOrderAndJoinedErrors(t *testing.T) {
	t.Parallel()

	j := New("run-1", "wf", "workflow_dispatch", t.TempDir())
	var order []string
	j.Defer("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	j.Defer("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})
	j.Defer("third", func(context.Context) error {
		order = append(order, "third")
		return nil
	})

	err := j.RunCleanups(context.Background())

	require.Equal(t, []string{"third", "second", "first"}, order)
	require.ErrorContains(t, err, "cleanup 'second': boom")

	// The stack is drained.
	require.NoError(t, j.RunCleanups(context.Background()))
	require.Len(t, order, 3)
}

func TestTools(t *testing.T) {
	t.Parallel()

	j := New("run-1", "wf", "workflow_dispatch", "")
	_, ok := j.Tool("python")
	require.False(t, ok)

	j.SetTool("python", "/usr/bin/python3.10")
	p, ok := j.Tool("python")
	require.True(t, ok)
	require.Equal(t, "/usr/bin/python3.10", p)
}

func TestStep_RequireEnv(t *testing.T) {
	t.Parallel()

	s := &Step{Name: "sync", Env: map[string]string{"TMDB_KEY": "k", "EMPTY": ""}}

	got, err := s.RequireEnv("TMDB_KEY")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"TMDB_KEY": "k"}, got)

	_, err = s.RequireEnv("TMDB_KEY", "EMPTY", "MISSING")
	require.ErrorContains(t, err, "[EMPTY MISSING]")
}
