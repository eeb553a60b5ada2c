// Package shell runs build scripts with an embedded POSIX shell interpreter,
// so override scripts and plugin commands behave the same on every host.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/vk/snapforge/internal/ctxlog"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Script is a shell program and the context it runs in.
type Script struct {
	// Name labels the script in errors and logs.
	Name   string
	Source string
	Dir    string
	// Env is layered over the process environment.
	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer
}

// ExitError reports a script that finished with a non-zero status.
type ExitError struct {
	Name string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("script %q exited with status %d", e.Name, e.Code)
}

// Validate parses source without running it.
func Validate(source string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(source), "script")
	return err
}

// Quote returns s quoted for safe use as a single shell word. Words made
// only of characters without special meaning are returned unchanged.
func Quote(s string) string {
	if s != "" && strings.Trim(s, safeWordChars) == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

const safeWordChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_@%+=:,./-"

// Run executes the script and waits for it to finish.
func Run(ctx context.Context, s Script) error {
	logger := ctxlog.FromContext(ctx).With("script", s.Name)

	prog, err := syntax.NewParser().Parse(strings.NewReader(s.Source), s.Name)
	if err != nil {
		return fmt.Errorf("failed to parse script %q: %w", s.Name, err)
	}

	stdout, stderr := s.Stdout, s.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	runner, err := interp.New(
		interp.Dir(s.Dir),
		interp.Env(expand.ListEnviron(environ(s.Env)...)),
		interp.StdIO(nil, stdout, stderr),
		interp.ExecHandlers(func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
			return func(ctx context.Context, args []string) error {
				logger.Debug("Executing command.", "args", args)
				return next(ctx, args)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	logger.Debug("Running script.", "dir", s.Dir)
	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &ExitError{Name: s.Name, Code: int(exitStatus)}
		}
		return fmt.Errorf("script %q execution failed: %w", s.Name, err)
	}
	return nil
}

// environ merges overrides over the process environment. Later entries win
// in expand.ListEnviron, so overrides are appended in sorted order.
func environ(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
