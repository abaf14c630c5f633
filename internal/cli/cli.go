package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/dispatchgrid/internal/app"
	"github.com/vk/dispatchgrid/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("dispatchgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
dispatchgrid - Runs manually dispatched HCL workflows step by step.

Usage:
  dispatchgrid [options] [WORKFLOW]

Arguments:
  WORKFLOW
    Name of a shipped workflow (see -list), or a path to a single .hcl
    file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	workflowFlag := flagSet.String("workflow", "", "Workflow name or path.")
	wFlag := flagSet.String("w", "", "Workflow name or path (shorthand).")
	jobFlag := flagSet.String("job", "", "Workflow to run when the path defines several.")
	eventFlag := flagSet.String("event", config.EventWorkflowDispatch, "Event to dispatch.")
	secretsFileFlag := flagSet.String("secrets-file", "", "Optional dotenv file consulted after the process environment for secret() lookups.")
	workdirFlag := flagSet.String("workdir", "", "Workspace directory. Defaults to a temporary directory removed after the job.")
	keepFlag := flagSet.Bool("keep-workspace", false, "Keep the temporary workspace after the job.")
	lockDirFlag := flagSet.String("lock-dir", "", "Directory for local concurrency locks. Defaults to the OS temp dir.")
	listFlag := flagSet.Bool("list", false, "List the shipped workflows and exit.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text', 'json' or 'console'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	workflow := ""
	if *workflowFlag != "" {
		workflow = *workflowFlag
	} else if *wFlag != "" {
		workflow = *wFlag
	} else if flagSet.NArg() > 0 {
		workflow = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(flagSet.Args()[1:], " "))}
	}
	slog.Debug("Workflow determined.", "workflow", workflow)

	if workflow == "" && !*listFlag {
		slog.Debug("No workflow provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	switch logFormat {
	case "text", "json", "console":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text', 'json' or 'console'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	event := strings.ToLower(*eventFlag)
	known := false
	for _, e := range config.KnownEvents {
		known = known || e == event
	}
	if !known {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid event '%s': must be one of %v", *eventFlag, config.KnownEvents)}
	}
	slog.Debug("CLI parameter validation complete.")

	cfg, err := app.NewConfig(app.Config{
		Workflow:        workflow,
		Job:             *jobFlag,
		Event:           event,
		SecretsFile:     *secretsFileFlag,
		Workdir:         *workdirFlag,
		KeepWorkspace:   *keepFlag,
		LockDir:         *lockDirFlag,
		List:            *listFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "workflow", cfg.Workflow, "event", cfg.Event)
	return cfg, false, nil
}
