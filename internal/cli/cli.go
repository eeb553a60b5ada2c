package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vk/snapforge/internal/app"
	"github.com/vk/snapforge/internal/hcl_adapter"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/registry"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// usageError marks err as a usage problem.
func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// ExitCode maps an error returned by the command tree to a process exit
// code: usage problems and manifest errors exit 2, everything else 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var manifestErr *lifecycle.ManifestError
	if errors.As(err, &manifestErr) {
		return ExitUsage
	}
	return ExitFailure
}

// root carries the state shared by every command of one invocation.
type root struct {
	v       *viper.Viper
	cfgFile string
	config  *app.Config
	modules []registry.Module
}

// NewRootCommand builds the snapforge command tree. modules replaces the
// built-in plugins when given.
func NewRootCommand(modules ...registry.Module) *cobra.Command {
	r := &root{v: viper.New(), modules: modules}

	cmd := &cobra.Command{
		Use:   "snapforge",
		Short: "Incremental build engine for snap-style packages",
		Long: TitleStyle.Render("snapforge") + SubtitleStyle.Render(" - incremental build engine for snap-style packages") + `

A project manifest (snapforge.hcl) declares parts. Each part is driven
through pull, build, stage and prime; steps whose inputs did not change
are skipped. The primed tree is packed into a .tar.xz archive.

` + SubtitleStyle.Render("Examples:") + `
  snapforge prime           Prime every part
  snapforge build app       Build 'app' and stage what it depends on
  snapforge prime --dry-run Show what would run
  snapforge clean app --step build
  snapforge pack`,
		SilenceUsage:      true,
		PersistentPreRunE: r.loadConfig,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := cmd.PersistentFlags()
	flags.StringP("project-dir", "d", ".", "directory holding the project manifest")
	flags.String("work-dir", "", "work directory (default <project-dir>/.snapforge)")
	flags.IntP("workers", "j", 1, "operations run concurrently")
	flags.Int("parallel", 0, "jobs handed to build tools (default: CPU count)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")
	flags.StringVar(&r.cfgFile, "config", "", "tool configuration file (default <project-dir>/snapforge.toml)")

	for key, flag := range map[string]string{
		"project_dir": "project-dir",
		"work_dir":    "work-dir",
		"workers":     "workers",
		"parallel":    "parallel",
		"log_level":   "log-level",
		"log_format":  "log-format",
	} {
		_ = r.v.BindPFlag(key, flags.Lookup(flag))
	}
	r.v.SetEnvPrefix("SNAPFORGE")
	r.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	r.v.AutomaticEnv()

	for _, step := range lifecycle.Steps {
		cmd.AddCommand(r.newStepCommand(step))
	}
	cmd.AddCommand(r.newCleanCommand())
	cmd.AddCommand(r.newPackCommand())
	cmd.AddCommand(r.newConfigCommand())
	return cmd
}

// newApp loads the project for a command.
func (r *root) newApp(cmd *cobra.Command) (*app.App, error) {
	return app.NewApp(cmd.ErrOrStderr(), r.config, hcl_adapter.NewLoader(), r.modules...)
}
