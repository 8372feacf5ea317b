package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/loadctl/internal/config"
	"github.com/codex-k8s/loadctl/internal/watch"
)

// newWatchCommand creates the "watch" subcommand that keeps the application running and reloads
// the current context whenever the manifest, its env files or its profiles change.
func newWatchCommand(opts *Options) *cobra.Command {
	var (
		state    string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the application and re-apply the current profile when the manifest changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m, _, err := loadManifestFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			a, err := newAppFromManifest(cmd, m)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			if err := a.Start(ctx, state); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := writeStatus(out, a, false); err != nil {
				return err
			}

			cfg := watch.Config{
				ManifestPath: opts.ConfigPath,
				Files:        watchedFiles(cmd, m),
				Debounce:     debounce,
				Logger:       logger,
				OnChange: func(ctx context.Context, changed []string) {
					logger.Info("manifest inputs changed", "paths", changed)
					next, _, err := loadManifestFromCmd(opts, cmd)
					if err != nil {
						logger.Error("reload manifest failed", "error", err)
						return
					}
					if err := a.Reload(ctx, next); err != nil {
						logger.Error("apply manifest failed", "error", err)
						return
					}
					if err := writeStatus(out, a, true); err != nil {
						logger.Error("write status failed", "error", err)
					}
				},
			}
			if m.ProfilesDir != "" {
				cfg.ProfilesDir = m.ProfilesPath()
			}

			watcher, err := watch.NewManifestWatcher(cfg)
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				watcher.Stop()
				return err
			}
			logger.Info("watching manifest", "dirs", watcher.Dirs())

			<-ctx.Done()
			watcher.Stop()
			stats := watcher.Stats()
			logger.Info("watch stopped", "events", stats.Events, "batches", stats.Batches, "errors", stats.Errors)
			return nil
		},
	}

	addStateFlag(cmd, &state)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a batch of changes is applied")
	addVarsFlags(cmd)
	return cmd
}

// watchedFiles lists the env and var files that feed the manifest template.
func watchedFiles(cmd *cobra.Command, m *config.Manifest) []string {
	var files []string
	for _, f := range m.EnvFiles {
		files = append(files, m.ResolvePath(f))
	}
	if varFile := cmd.Flag("var-file").Value.String(); varFile != "" {
		files = append(files, varFile)
	}
	return files
}
