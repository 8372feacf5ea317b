package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/loadctl/internal/config"
)

// newValidateCommand creates the "validate" subcommand that checks the manifest and its profiles.
func newValidateCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest and every profile it can resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			m, _, err := loadManifestFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			if err := config.Validate(m); err != nil {
				return err
			}

			catalog, err := m.Catalog(logger)
			if err != nil {
				return err
			}
			keys, err := m.ProfileKeys()
			if err != nil {
				return err
			}
			var problems []string
			for _, key := range keys {
				if _, err := catalog.Lookup(cmd.Context(), key); err != nil {
					problems = append(problems, fmt.Sprintf("profile %q: %v", key, err))
				}
			}
			if len(problems) > 0 {
				return &config.ValidationError{Problems: problems}
			}

			logger.Debug("manifest validated", "path", opts.ConfigPath, "format", m.Format)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d states, %d profiles, %d scenes)\n",
				opts.ConfigPath, len(m.States), len(keys), len(m.Scenes))
			return err
		},
	}

	addVarsFlags(cmd)
	return cmd
}
