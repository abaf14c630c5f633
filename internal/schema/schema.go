// Package schema holds the gohcl structures of a workflow file.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// StepArgs represents the content of the 'arguments' block within a step.
type StepArgs struct {
	Body hcl.Body `hcl:",remain"`
}

// Step represents a `step` block. The first label selects the runner, the
// second names the step within its workflow.
type Step struct {
	RunnerType string         `hcl:"runner_type,label"`
	Name       string         `hcl:"name,label"`
	Arguments  *StepArgs      `hcl:"arguments,block"`
	Env        hcl.Expression `hcl:"env,optional"`
	Timeout    string         `hcl:"timeout,optional"`
}

// LockBackend is the unevaluated content of a `minio` block inside
// `concurrency`. It usually references secrets, so it is decoded at dispatch.
type LockBackend struct {
	Body hcl.Body `hcl:",remain"`
}

// Concurrency represents a workflow's `concurrency` block.
type Concurrency struct {
	Group string       `hcl:"group"`
	TTL   string       `hcl:"ttl,optional"`
	MinIO *LockBackend `hcl:"minio,block"`
}

// Workflow represents a `workflow` block.
type Workflow struct {
	Name        string       `hcl:"name,label"`
	Description string       `hcl:"description,optional"`
	On          []string     `hcl:"on"`
	Concurrency *Concurrency `hcl:"concurrency,block"`
	Steps       []*Step      `hcl:"step,block"`
}

// File represents the top-level structure of a workflow file.
type File struct {
	Workflows []*Workflow `hcl:"workflow,block"`
}

// MinIOLock is the decoded form of LockBackend.
type MinIOLock struct {
	Endpoint        string `hcl:"endpoint"`
	Bucket          string `hcl:"bucket"`
	Region          string `hcl:"region,optional"`
	AccessKeyID     string `hcl:"access_key_id"`
	SecretAccessKey string `hcl:"secret_access_key"`
	SessionToken    string `hcl:"session_token,optional"`
	Secure          *bool  `hcl:"secure,optional"`
}
