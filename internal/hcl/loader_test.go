package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/schema"
	"github.com/vk/dispatchgrid/internal/secrets"
)

const sampleWorkflow = `
workflow "sample" {
  description = "A sample."
  on          = ["workflow_dispatch"]

  concurrency {
    group = "sample"
    ttl   = "1h"
  }

  step "checkout" "checkout" {
    arguments {
      version = "v4"
    }
  }

  step "run_script" "run" {
    timeout = "10m"
    arguments {
      script = "main.py"
    }
    env = {
      TOKEN = secret("TOKEN")
      PLAIN = "value"
    }
  }
}
`

func loadString(t *testing.T, files map[string]string) (*config.Model, config.Converter, error) {
	t.Helper()
	fsys := fstest.MapFS{}
	for name, src := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(src)}
	}
	return NewLoader().LoadFS(context.Background(), fsys)
}

func TestLoadFS_TranslatesWorkflow(t *testing.T) {
	t.Parallel()

	// Act
	model, _, err := loadString(t, map[string]string{"sample.hcl": sampleWorkflow})

	// Assert
	require.NoError(t, err)
	require.Contains(t, model.Workflows, "sample")
	wf := model.Workflows["sample"]

	assert.Equal(t, "A sample.", wf.Description)
	assert.Equal(t, []string{config.EventWorkflowDispatch}, wf.On)
	assert.Equal(t, "sample.hcl", wf.Source)
	require.NotNil(t, wf.Concurrency)
	assert.Equal(t, time.Hour, wf.Concurrency.TTL)
	assert.Nil(t, wf.Concurrency.MinIO)

	var names []string
	for _, s := range wf.Steps {
		names = append(names, s.RunnerType+"."+s.Name)
	}
	if diff := cmp.Diff([]string{"checkout.checkout", "run_script.run"}, names); diff != "" {
		t.Errorf("unexpected steps (-want +got):\n%s", diff)
	}

	run, ok := wf.Step("run")
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, run.Timeout)
	assert.True(t, wf.Triggers(config.EventWorkflowDispatch))
	assert.False(t, wf.Triggers(config.EventPush))
}

func TestLoadFS_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name: "empty on",
			src: `workflow "w" {
  on = []
  step "a" "b" {}
}`,
			wantErr: "'on' must list at least one event",
		},
		{
			name: "unknown event",
			src: `workflow "w" {
  on = ["pull_request"]
  step "a" "b" {}
}`,
			wantErr: "unknown event 'pull_request'",
		},
		{
			name: "duplicate event",
			src: `workflow "w" {
  on = ["push", "push"]
  step "a" "b" {}
}`,
			wantErr: "listed twice",
		},
		{
			name:    "no steps",
			src:     `workflow "w" { on = ["workflow_dispatch"] }`,
			wantErr: "no steps defined",
		},
		{
			name: "duplicate step",
			src: `workflow "w" {
  on = ["workflow_dispatch"]
  step "a" "same" {}
  step "b" "same" {}
}`,
			wantErr: "duplicate step name 'same'",
		},
		{
			name: "bad timeout",
			src: `workflow "w" {
  on = ["workflow_dispatch"]
  step "a" "b" { timeout = "soon" }
}`,
			wantErr: "invalid timeout 'soon'",
		},
		{
			name: "empty concurrency group",
			src: `workflow "w" {
  on = ["workflow_dispatch"]
  concurrency { group = "" }
  step "a" "b" {}
}`,
			wantErr: "concurrency group must not be empty",
		},
		{
			name:    "unexpected top level block",
			src:     `job "w" {}`,
			wantErr: "failed to decode",
		},
		{
			name:    "syntax error",
			src:     `workflow "w" {`,
			wantErr: "failed to parse",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := loadString(t, map[string]string{"w.hcl": tc.src})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadFS_DuplicateWorkflowAcrossFiles(t *testing.T) {
	t.Parallel()

	src := `workflow "w" {
  on = ["workflow_dispatch"]
  step "a" "b" {}
}`
	_, _, err := loadString(t, map[string]string{"a.hcl": src, "b.hcl": src})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined in both a.hcl and b.hcl")
}

func TestLoadFS_NoFiles(t *testing.T) {
	t.Parallel()

	_, _, err := loadString(t, map[string]string{"readme.md": "# nothing"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .hcl workflow files found")
}

func TestLoad_FileAndDirectory(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	one := filepath.Join(dir, "one.hcl")
	require.NoError(t, os.WriteFile(one, []byte(`workflow "one" {
  on = ["workflow_dispatch"]
  step "a" "b" {}
}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "two.hcl"), []byte(`workflow "two" {
  on = ["push"]
  step "a" "b" {}
}`), 0o644))

	// Act
	fromFile, _, err := NewLoader().Load(context.Background(), one)
	require.NoError(t, err)
	fromDir, _, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	// Assert
	assert.Len(t, fromFile.Workflows, 1)
	assert.Len(t, fromDir.Workflows, 2)
	assert.Equal(t, filepath.Join(dir, "nested", "two.hcl"), fromDir.Workflows["two"].Source)
}

func TestLoad_MissingPath(t *testing.T) {
	t.Parallel()

	_, _, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
}

func TestConverter_DecodeEnvResolvesSecrets(t *testing.T) {
	t.Parallel()

	// Arrange
	model, conv, err := loadString(t, map[string]string{"sample.hcl": sampleWorkflow})
	require.NoError(t, err)
	step, _ := model.Workflows["sample"].Step("run")
	masker := secrets.NewMasker()
	evalCtx := conv.EvalContext(secrets.Map{"TOKEN": "s3cr3t"}, masker)

	// Act
	env, err := conv.DecodeEnv(context.Background(), step.Env, evalCtx)

	// Assert
	require.NoError(t, err)
	if diff := cmp.Diff(map[string]string{"TOKEN": "s3cr3t", "PLAIN": "value"}, env); diff != "" {
		t.Errorf("unexpected env (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, masker.Len())
	assert.Equal(t, "token=***", masker.Mask("token=s3cr3t"))
}

func TestConverter_DecodeEnvMissingSecret(t *testing.T) {
	t.Parallel()

	model, conv, err := loadString(t, map[string]string{"sample.hcl": sampleWorkflow})
	require.NoError(t, err)
	step, _ := model.Workflows["sample"].Step("run")

	_, err = conv.DecodeEnv(context.Background(), step.Env, conv.EvalContext(secrets.Map{}, secrets.NewMasker()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN")
}

func TestConverter_DecodeEnvAbsentIsEmpty(t *testing.T) {
	t.Parallel()

	model, conv, err := loadString(t, map[string]string{"sample.hcl": sampleWorkflow})
	require.NoError(t, err)
	step, _ := model.Workflows["sample"].Step("checkout")

	env, err := conv.DecodeEnv(context.Background(), step.Env, conv.EvalContext(secrets.Map{}, nil))

	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestConverter_DecodeEnvRejectsNonMap(t *testing.T) {
	t.Parallel()

	src := `workflow "w" {
  on = ["workflow_dispatch"]
  step "a" "b" {
    env = ["A", "B"]
  }
}`
	model, conv, err := loadString(t, map[string]string{"w.hcl": src})
	require.NoError(t, err)
	step, _ := model.Workflows["w"].Step("b")

	_, err = conv.DecodeEnv(context.Background(), step.Env, conv.EvalContext(secrets.Map{}, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "env must be a map of strings")
}

func TestConverter_DecodeBody(t *testing.T) {
	t.Parallel()

	// Arrange
	src := `workflow "w" {
  on = ["workflow_dispatch"]
  concurrency {
    group = "g"
    minio {
      endpoint          = "localhost:9000"
      bucket            = "locks"
      access_key_id     = secret("ID")
      secret_access_key = secret("KEY")
      secure            = false
    }
  }
  step "a" "b" {}
}`
	model, conv, err := loadString(t, map[string]string{"w.hcl": src})
	require.NoError(t, err)
	evalCtx := conv.EvalContext(secrets.Map{"ID": "id", "KEY": "key"}, nil)

	// Act
	var lock schema.MinIOLock
	err = conv.DecodeBody(context.Background(), model.Workflows["w"].Concurrency.MinIO, evalCtx, &lock)

	// Assert
	require.NoError(t, err)
	secure := false
	want := schema.MinIOLock{
		Endpoint:        "localhost:9000",
		Bucket:          "locks",
		AccessKeyID:     "id",
		SecretAccessKey: "key",
		Secure:          &secure,
	}
	if diff := cmp.Diff(want, lock); diff != "" {
		t.Errorf("unexpected decode (-want +got):\n%s", diff)
	}
}

func TestConverter_EnvFunction(t *testing.T) {
	t.Setenv("DISPATCHGRID_TEST_PLAIN", "plain")

	src := `workflow "w" {
  on = ["workflow_dispatch"]
  step "a" "b" {
    env = { X = env("DISPATCHGRID_TEST_PLAIN"), Y = env("DISPATCHGRID_TEST_UNSET") }
  }
}`
	model, conv, err := loadString(t, map[string]string{"w.hcl": src})
	require.NoError(t, err)
	step, _ := model.Workflows["w"].Step("b")

	env, err := conv.DecodeEnv(context.Background(), step.Env, conv.EvalContext(secrets.Map{}, nil))

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X": "plain", "Y": ""}, env)
}
