// Package secrets resolves named secret values for workflow steps and keeps
// track of them so they can be scrubbed from step output.
package secrets

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ErrMissing is returned when no store in a chain knows a secret.
var ErrMissing = errors.New("secret not found")

// Store looks up secret values by name.
type Store interface {
	Lookup(name string) (string, bool)
}

// Env reads secrets from the process environment.
type Env struct{}

// Lookup implements Store.
func (Env) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// Map is a static in-memory store.
type Map map[string]string

// Lookup implements Store.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Chain consults each store in order and returns the first hit.
type Chain []Store

// Lookup implements Store.
func (c Chain) Lookup(name string) (string, bool) {
	for _, s := range c {
		if v, ok := s.Lookup(name); ok {
			return v, true
		}
	}
	return "", false
}

// LoadDotenv reads a dotenv formatted secrets file.
func LoadDotenv(path string) (Map, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file '%s': %w", path, err)
	}
	return Map(values), nil
}

// Resolve returns the named secret or an error wrapping ErrMissing.
func Resolve(s Store, name string) (string, error) {
	if name == "" {
		return "", errors.New("secret name must not be empty")
	}
	v, ok := s.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissing, name)
	}
	return v, nil
}
