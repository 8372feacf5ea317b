package cli

import (
	"github.com/spf13/cobra"
)

// newPlanCommand creates the "plan" subcommand that shows what loading a profile would change.
func newPlanCommand(opts *Options) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "plan <profile>",
		Short: "Show the scenes, components and assets a context transition would change",
		Long:  "Plan resolves the profile and prints the difference against the live context. With --from, the context of another profile is loaded first so the plan describes that transition.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())
			ctx := cmd.Context()

			a, err := newAppFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if from != "" {
				logger.Info("loading starting context", "profile", from)
				if err := a.LoadContext(ctx, from, nil); err != nil {
					return err
				}
			}

			plan, err := a.Orchestrator.Plan(ctx, args[0])
			if err != nil {
				return err
			}
			data, err := plan.YAML()
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), data, false)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Profile to load before planning")
	addVarsFlags(cmd)
	return cmd
}
