package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/job"
)

type echoInput struct {
	Message string   `hcl:"message"`
	Tags    []string `hcl:"tags,optional"`
}

type badInput struct {
	Message string
}

type echoModule struct{}

func (echoModule) Register(r *Registry) {
	r.RegisterRunner("echo", &RegisteredRunner{
		NewInput: func() any { return new(echoInput) },
		Fn: func(_ context.Context, step *job.Step, in *echoInput) error {
			if in.Message == "fail" {
				return errors.New("asked to fail")
			}
			step.Env["seen"] = in.Message
			return nil
		},
	})
}

func TestRegisterAndCall(t *testing.T) {
	t.Parallel()

	// Arrange
	r := New()
	r.Register(echoModule{})
	handler, ok := r.Lookup("echo")
	require.True(t, ok)
	step := &job.Step{Name: "s", Env: map[string]string{}}

	// Act
	err := handler.Call(context.Background(), step, &echoInput{Message: "hi"})
	failErr := handler.Call(context.Background(), step, &echoInput{Message: "fail"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "hi", step.Env["seen"])
	assert.EqualError(t, failErr, "asked to fail")
	assert.Equal(t, "echoInput", handler.InputType.Name())
	assert.Equal(t, []string{"echo"}, r.Names())
}

func TestRegisterRunner_Panics(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		handler *RegisteredRunner
	}{
		{
			name:    "nil input",
			handler: &RegisteredRunner{Fn: func(context.Context, *job.Step, *echoInput) error { return nil }},
		},
		{
			name: "input not a struct pointer",
			handler: &RegisteredRunner{
				NewInput: func() any { return "x" },
				Fn:       func(context.Context, *job.Step, *echoInput) error { return nil },
			},
		},
		{
			name: "fn not a function",
			handler: &RegisteredRunner{
				NewInput: func() any { return new(echoInput) },
				Fn:       42,
			},
		},
		{
			name: "wrong input type",
			handler: &RegisteredRunner{
				NewInput: func() any { return new(echoInput) },
				Fn:       func(context.Context, *job.Step, *badInput) error { return nil },
			},
		},
		{
			name: "no error result",
			handler: &RegisteredRunner{
				NewInput: func() any { return new(echoInput) },
				Fn:       func(context.Context, *job.Step, *echoInput) {},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Panics(t, func() { New().RegisterRunner("x", tc.handler) })
		})
	}
}

func TestRegisterRunner_DuplicatePanics(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register(echoModule{})

	require.PanicsWithValue(t, "runner handler with name 'echo' already registered", func() {
		r.Register(echoModule{})
	})
}

func TestValidateWorkflow(t *testing.T) {
	t.Parallel()

	// Arrange
	r := New()
	r.Register(echoModule{})
	r.RegisterRunner("bad", &RegisteredRunner{
		NewInput: func() any { return new(badInput) },
		Fn:       func(context.Context, *job.Step, *badInput) error { return nil },
	})
	good := &config.Workflow{Name: "good", Steps: []*config.Step{{RunnerType: "echo", Name: "a"}}}
	bad := &config.Workflow{Name: "bad", Steps: []*config.Step{
		{RunnerType: "echo", Name: "a"},
		{RunnerType: "missing", Name: "b"},
		{RunnerType: "bad", Name: "c"},
	}}

	// Act
	goodErr := r.ValidateWorkflow(context.Background(), good)
	badErr := r.ValidateWorkflow(context.Background(), bad)

	// Assert
	require.NoError(t, goodErr)
	require.Error(t, badErr)
	assert.Contains(t, badErr.Error(), "step 'b': unknown runner 'missing' (registered: bad, echo)")
	assert.Contains(t, badErr.Error(), "field 'Message' has no hcl tag")
}
