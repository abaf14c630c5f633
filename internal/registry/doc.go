// Package registry provides the central "glue" for the runner system.
//
// The Registry maps the runner type used in a workflow's `step` block (e.g.
// "run_script") to the compiled Go function and input struct implementing it.
// Before a job is dispatched the registry is validated against the workflow so
// that a typo in a runner type fails fast instead of halfway through a run.
package registry
