package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/vk/dispatchgrid/internal/job"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	stepType    = reflect.TypeOf((*job.Step)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// RegisteredRunner holds the compiled Go parts of a runner.
//
// Fn must have the signature func(context.Context, *job.Step, *T) error where
// *T is the type returned by NewInput.
type RegisteredRunner struct {
	NewInput  func() any
	InputType reflect.Type
	Fn        any
}

// prepare checks the handler shape and fills InputType.
func (h *RegisteredRunner) prepare() error {
	if h.NewInput == nil {
		return errors.New("NewInput must not be nil")
	}
	input := h.NewInput()
	it := reflect.TypeOf(input)
	if it == nil || it.Kind() != reflect.Pointer || it.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("NewInput must return a pointer to a struct, got %T", input)
	}

	ft := reflect.TypeOf(h.Fn)
	if ft == nil || ft.Kind() != reflect.Func {
		return fmt.Errorf("Fn must be a function, got %T", h.Fn)
	}
	if ft.NumIn() != 3 || ft.In(0) != contextType || ft.In(1) != stepType || ft.In(2) != it {
		return fmt.Errorf("Fn must be func(context.Context, *job.Step, %s) error, got %s", it, ft)
	}
	if ft.NumOut() != 1 || ft.Out(0) != errorType {
		return fmt.Errorf("Fn must return a single error, got %s", ft)
	}

	h.InputType = it.Elem()
	return nil
}

// Call invokes the runner function with a decoded input.
func (h *RegisteredRunner) Call(ctx context.Context, step *job.Step, input any) error {
	out := reflect.ValueOf(h.Fn).Call([]reflect.Value{
		reflect.ValueOf(ctx),
		reflect.ValueOf(step),
		reflect.ValueOf(input),
	})
	if err, ok := out[0].Interface().(error); ok && err != nil {
		return err
	}
	return nil
}
