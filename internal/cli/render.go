package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/loadctl/internal/config"
)

// newRenderCommand creates the "render" subcommand that prints the manifest after templating.
func newRenderCommand(opts *Options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the manifest template with env files and variables applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			inlineVars, varFiles, err := parseInlineVarsAndFiles(cmd)
			if err != nil {
				return err
			}
			rendered, _, err := config.LoadAndRender(opts.ConfigPath, config.LoadOptions{
				UserVars: inlineVars,
				VarFiles: varFiles,
			})
			if err != nil {
				return err
			}

			if output == "" {
				return writeDocument(cmd.OutOrStdout(), rendered, false)
			}

			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return fmt.Errorf("create output directory for %q: %w", output, err)
			}
			if err := os.WriteFile(output, rendered, 0o644); err != nil {
				return fmt.Errorf("write rendered manifest to %q: %w", output, err)
			}

			logger.Info("rendered manifest", "path", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file for the rendered manifest (if empty, prints to stdout)")
	addVarsFlags(cmd)
	return cmd
}
