package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vk/snapforge/internal/app"
	"github.com/vk/snapforge/internal/lifecycle"
)

var stepDescriptions = map[lifecycle.Step]string{
	lifecycle.Pull:  "Fetch part sources",
	lifecycle.Build: "Build parts, staging what they depend on",
	lifecycle.Stage: "Merge built parts into the staging area",
	lifecycle.Prime: "Select staged files into the priming area",
}

func (r *root) newStepCommand(step lifecycle.Step) *cobra.Command {
	var (
		dryRun   bool
		watch    bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   step.String() + " [part...]",
		Short: stepDescriptions[step],
		Long: stepDescriptions[step] + `.

Every named part (every part when none is named) is brought through the
` + step.String() + ` step. Steps whose inputs did not change since they last
completed are skipped.`,
		RunE: func(cmd *cobra.Command, parts []string) error {
			if dryRun && watch {
				return usageError(fmt.Errorf("--dry-run and --watch cannot be combined"))
			}
			a, err := r.newApp(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if watch {
				return a.Watch(cmd.Context(), step, parts, debounce, func(res *app.Result, err error) {
					if res != nil && res.Report != nil {
						renderReport(out, res.Report)
					}
					if err != nil {
						renderFailure(out, err)
					}
				})
			}

			res, err := a.Lifecycle(cmd.Context(), step, parts, dryRun)
			if res != nil {
				if dryRun {
					renderPlan(out, res.Plan)
				} else if res.Report != nil {
					renderReport(out, res.Report)
				} else if res.Plan.Empty() {
					fmt.Fprintln(out, SuccessStyle.Render("Everything is up to date."))
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without running it")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run whenever a local part source changes")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a watch re-run")
	return cmd
}

func (r *root) newCleanCommand() *cobra.Command {
	var stepName string
	cmd := &cobra.Command{
		Use:   "clean [part...]",
		Short: "Remove state and artifacts of parts",
		Long: `Remove the state and artifacts of the named parts (every part when none
is named) from --step onwards. Without parts and without --step the whole
work directory is removed.`,
		RunE: func(cmd *cobra.Command, parts []string) error {
			step := lifecycle.Pull
			if stepName != "" {
				parsed, err := lifecycle.ParseStep(stepName)
				if err != nil {
					return usageError(err)
				}
				step = parsed
			}
			a, err := r.newApp(cmd)
			if err != nil {
				return err
			}
			all := !cmd.Flags().Changed("step")
			if err := a.Clean(cmd.Context(), parts, step, all); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Cleaned."))
			return nil
		},
	}
	cmd.Flags().StringVar(&stepName, "step", "", "first step to clean: pull, build, stage or prime")
	return cmd
}

func (r *root) newPackCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Prime every part and write the package archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := r.newApp(cmd)
			if err != nil {
				return err
			}
			path, err := a.Pack(cmd.Context(), output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Packed"), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default <project-dir>/<name>_<version>.tar.xz)")
	return cmd
}
