package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/vk/snapforge/internal/app"
)

// ConfigFileName is the optional tool configuration read from the project
// directory.
const ConfigFileName = "snapforge.toml"

// loadConfig resolves the tool configuration from flags, SNAPFORGE_*
// environment variables and the optional TOML file, in that precedence.
func (r *root) loadConfig(cmd *cobra.Command, _ []string) error {
	path := r.cfgFile
	if path == "" {
		candidate := filepath.Join(r.v.GetString("project_dir"), ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		r.v.SetConfigFile(path)
		r.v.SetConfigType("toml")
		if err := r.v.ReadInConfig(); err != nil {
			return usageError(fmt.Errorf("failed to read %s: %w", path, err))
		}
	}

	var raw app.Config
	if err := r.v.Unmarshal(&raw); err != nil {
		return usageError(fmt.Errorf("invalid configuration: %w", err))
	}
	cfg, err := app.NewConfig(raw)
	if err != nil {
		return usageError(err)
	}
	r.config = cfg
	return nil
}

func (r *root) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the tool configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if r.config == nil {
				return errors.New("configuration not loaded")
			}
			out, err := toml.Marshal(r.config)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}
