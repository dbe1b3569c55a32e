// Package secrets resolves the ERP API token for each sync invocation.
//
// The token is never read ad hoc by business logic: the orchestrator is handed
// a TokenSource and asks it once per run. Sources are tried in order by a
// Chain; a source with nothing to offer returns ErrNotConfigured so the next
// one is consulted.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTokenEnv is the environment variable consulted when none is configured
const DefaultTokenEnv = "TINY_API_TOKEN"

// ErrNotConfigured is returned when a source has no token to offer
var ErrNotConfigured = errors.New("token not configured")

// TokenSource yields the ERP API token
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a token fixed at construction time
type Static string

// Token implements TokenSource
func (s Static) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNotConfigured
	}
	return string(s), nil
}

// File reads the token from a file on every call, so a rotated secret mount
// is picked up without a restart.
type File struct {
	Path string
}

// Token implements TokenSource
func (f File) Token(context.Context) (string, error) {
	if f.Path == "" {
		return "", ErrNotConfigured
	}
	data, err := os.ReadFile(filepath.Clean(f.Path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: token file %s does not exist", ErrNotConfigured, f.Path)
		}
		return "", fmt.Errorf("failed to read token file %s: %w", f.Path, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotConfigured
	}
	return token, nil
}

// Env reads the token from an environment variable on every call
type Env struct {
	Name string

	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
}

// Token implements TokenSource
func (e Env) Token(context.Context) (string, error) {
	name := e.Name
	if name == "" {
		name = DefaultTokenEnv
	}
	lookup := e.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", ErrNotConfigured
	}
	return strings.TrimSpace(v), nil
}

// Chain returns the first token offered by its sources
type Chain []TokenSource

// Token implements TokenSource
func (c Chain) Token(ctx context.Context) (string, error) {
	for _, src := range c {
		token, err := src.Token(ctx)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrNotConfigured) {
			return "", err
		}
	}
	return "", ErrNotConfigured
}
