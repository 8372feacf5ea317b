package cli

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/loadctl/internal/profile"
)

// newProfilesCommand creates the "profiles" group command.
func newProfilesCommand(opts *Options) *cobra.Command {
	return newGroupCommand("profiles", "Inspect the context profiles a manifest can resolve",
		newProfilesListCommand(opts),
		newProfilesShowCommand(opts),
	)
}

// newProfilesListCommand creates "profiles list" that prints every profile key.
func newProfilesListCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profile keys, inline and from profilesDir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, _, err := loadManifestFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			keys, err := m.ProfileKeys()
			if err != nil {
				return err
			}
			for _, key := range keys {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), key); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addVarsFlags(cmd)
	return cmd
}

// newProfilesShowCommand creates "profiles show" that prints one resolved profile.
func newProfilesShowCommand(opts *Options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <profile>",
		Short: "Print a resolved profile as YAML or TOML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())

			m, _, err := loadManifestFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			catalog, err := m.Catalog(logger)
			if err != nil {
				return err
			}
			p, err := catalog.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := encodeProfile(p, format)
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), data, false)
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format (yaml, toml)")
	addVarsFlags(cmd)
	return cmd
}

func encodeProfile(p *profile.Profile, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml", "yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return nil, fmt.Errorf("encode profile %q: %w", p.Key, err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode profile %q: %w", p.Key, err)
		}
	case "toml":
		if err := toml.NewEncoder(&buf).Encode(p); err != nil {
			return nil, fmt.Errorf("encode profile %q: %w", p.Key, err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q (expected yaml or toml)", format)
	}
	return buf.Bytes(), nil
}
