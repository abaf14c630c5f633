package run_script

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dispatchgrid/internal/job"
	"github.com/vk/dispatchgrid/internal/shell"
)

func TestCommandLine(t *testing.T) {
	t.Parallel()

	got, err := commandLine("/usr/bin/python3.10", "update_minio.py", nil)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/python3.10 update_minio.py", got)

	got, err = commandLine("/opt/py dir/python", "a b.py", []string{"--flag", "$HOME"})
	require.NoError(t, err)
	assert.Equal(t, `'/opt/py dir/python' 'a b.py' --flag '$HOME'`, got)
}

// newStep uses the shell interpreter itself as the "interpreter" tool so the
// tests do not depend on python being installed.
func newStep(t *testing.T, script string, env map[string]string) (*job.Step, *bytes.Buffer) {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "script.sh"), []byte(script), 0o755))

	j := job.New("run", "w", "workflow_dispatch", ws)
	j.SetTool("sh", "sh")
	out := &bytes.Buffer{}
	return &job.Step{Job: j, Name: "script", Env: env, Stdout: out, Stderr: out}, out
}

func TestOnRunScript_ExportsEnv(t *testing.T) {
	t.Parallel()

	step, out := newStep(t, "echo \"key=$TMDB_KEY\"\n", map[string]string{"TMDB_KEY": "abc"})

	err := OnRunScript(context.Background(), step, &Input{Script: "script.sh", Interpreter: "sh"})

	require.NoError(t, err)
	assert.Equal(t, "key=abc\n", out.String())
}

func TestOnRunScript_NonZeroExitFails(t *testing.T) {
	t.Parallel()

	step, _ := newStep(t, "exit 3\n", nil)

	err := OnRunScript(context.Background(), step, &Input{Script: "script.sh", Interpreter: "sh"})

	require.Error(t, err)
	var exit *shell.ExitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 3, exit.Code)
	assert.Contains(t, err.Error(), "script 'script.sh' exited with code 3")
}

func TestOnRunScript_MissingScript(t *testing.T) {
	t.Parallel()

	step, _ := newStep(t, "", nil)

	err := OnRunScript(context.Background(), step, &Input{Script: "missing.sh", Interpreter: "sh"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "script 'missing.sh' not found")
}

func TestOnRunScript_InterpreterNotSetUp(t *testing.T) {
	t.Parallel()

	step, _ := newStep(t, "", nil)

	err := OnRunScript(context.Background(), step, &Input{Script: "script.sh"})

	require.EqualError(t, err, "interpreter 'python' is not set up in this job")
}
