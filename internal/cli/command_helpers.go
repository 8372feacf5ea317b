package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// newGroupCommand builds a cobra.Command that groups subcommands.
func newGroupCommand(use, short string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
	}
	if len(subcommands) > 0 {
		cmd.AddCommand(subcommands...)
	}
	return cmd
}

// writeDocument writes a rendered document, separating it from the next one when asked.
func writeDocument(w io.Writer, data []byte, separator bool) error {
	if separator {
		if _, err := io.WriteString(w, "---\n"); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
