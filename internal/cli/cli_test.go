package cli

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dispatchgrid/internal/app"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		args       []string
		want       *app.Config
		wantExit   bool
		wantCode   int
		wantErrMsg string
	}{
		{
			name: "positional workflow with defaults",
			args: []string{"update_minio"},
			want: &app.Config{Workflow: "update_minio", Event: "workflow_dispatch", LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "long flag wins over shorthand and positional",
			args: []string{"-workflow", "a.hcl", "-w", "b.hcl"},
			want: &app.Config{Workflow: "a.hcl", Event: "workflow_dispatch", LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "all options",
			args: []string{
				"-w", "dir", "-job", "update_minio", "-event", "WORKFLOW_DISPATCH",
				"-secrets-file", ".env", "-workdir", "ws", "-keep-workspace", "-lock-dir", "/locks",
				"-healthcheck-port", "8080", "-log-format", "JSON", "-log-level", "debug",
			},
			want: &app.Config{
				Workflow: "dir", Job: "update_minio", Event: "workflow_dispatch",
				SecretsFile: ".env", Workdir: "ws", KeepWorkspace: true, LockDir: "/locks",
				HealthcheckPort: 8080, LogFormat: "json", LogLevel: "debug",
			},
		},
		{
			name: "list without workflow",
			args: []string{"-list"},
			want: &app.Config{List: true, Event: "workflow_dispatch", LogFormat: "text", LogLevel: "info"},
		},
		{
			name:     "no workflow prints usage",
			args:     []string{},
			wantExit: true,
		},
		{
			name:     "help",
			args:     []string{"-h"},
			wantExit: true,
		},
		{
			name:       "unknown flag",
			args:       []string{"-nope"},
			wantCode:   2,
			wantErrMsg: "flag provided but not defined: -nope",
		},
		{
			name:       "bad log format",
			args:       []string{"-log-format", "xml", "x"},
			wantCode:   2,
			wantErrMsg: "invalid log-format: must be 'text', 'json' or 'console'",
		},
		{
			name:       "bad log level",
			args:       []string{"-log-level", "trace", "x"},
			wantCode:   2,
			wantErrMsg: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'",
		},
		{
			name:       "unknown event",
			args:       []string{"-event", "pull_request", "x"},
			wantCode:   2,
			wantErrMsg: "invalid event 'pull_request': must be one of [workflow_dispatch schedule push]",
		},
		{
			name:       "extra positional",
			args:       []string{"a", "b"},
			wantCode:   2,
			wantErrMsg: "unexpected arguments: b",
		},
		{
			name:       "bad port",
			args:       []string{"-healthcheck-port", "-1", "x"},
			wantCode:   2,
			wantErrMsg: "healthcheck port must be between 0 and 65535",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			var out bytes.Buffer

			// Act
			cfg, shouldExit, err := Parse(tc.args, &out)

			// Assert
			if tc.wantCode != 0 {
				require.Error(t, err)
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tc.wantCode, exitErr.Code)
				assert.Equal(t, tc.wantErrMsg, exitErr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExit, shouldExit)
			if tc.wantExit {
				assert.Contains(t, out.String(), "Usage:")
				return
			}
			if diff := cmp.Diff(tc.want, cfg); diff != "" {
				t.Errorf("unexpected config (-want +got):\n%s", diff)
			}
		})
	}
}
