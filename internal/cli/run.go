package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/loadctl/internal/app"
	"github.com/codex-k8s/loadctl/internal/ghoutput"
	"github.com/codex-k8s/loadctl/internal/stringsutil"
)

// newRunCommand creates the "run" subcommand that boots the application and walks through states.
func newRunCommand(opts *Options) *cobra.Command {
	var (
		state        string
		then         string
		githubOutput string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the application in a state, optionally change through more states, and print the status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())
			ctx := cmd.Context()

			a, err := newAppFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.Start(ctx, state); err != nil {
				return err
			}
			if err := writeStatus(cmd.OutOrStdout(), a, false); err != nil {
				return err
			}

			for _, next := range stringsutil.SplitList(then) {
				logger.Info("changing state", "state", next)
				if err := a.ChangeState(ctx, next); err != nil {
					return fmt.Errorf("change state to %s: %w", next, err)
				}
				if err := writeStatus(cmd.OutOrStdout(), a, true); err != nil {
					return err
				}
			}
			return ghoutput.Write(githubOutput, statusOutputs(a.Status()))
		},
	}

	addStateFlag(cmd, &state)
	cmd.Flags().StringVar(&then, "then", "", "States to change to afterwards, in order (comma-separated)")
	cmd.Flags().StringVar(&githubOutput, "github-output", ghoutput.Path(), "File to append the final status to as GitHub Actions step outputs")
	addVarsFlags(cmd)
	return cmd
}

// statusOutputs flattens the final status into step outputs.
func statusOutputs(st app.Status) map[string]string {
	var state string
	if len(st.States) > 0 {
		state = st.States[len(st.States)-1]
	}
	return map[string]string{
		"state":        state,
		"profile":      st.Profile,
		"scenes":       strings.Join(st.Scenes, "\n"),
		"active-scene": st.ActiveScene,
		"progress":     strconv.FormatFloat(st.Progress, 'f', -1, 64),
		"failures":     strconv.Itoa(len(st.Failures)),
	}
}

func writeStatus(w io.Writer, a *app.App, separator bool) error {
	data, err := a.Status().YAML()
	if err != nil {
		return err
	}
	return writeDocument(w, data, separator)
}
