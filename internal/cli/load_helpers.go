package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/loadctl/internal/app"
	"github.com/codex-k8s/loadctl/internal/config"
	"github.com/codex-k8s/loadctl/internal/env"
)

func parseInlineVarsAndFiles(cmd *cobra.Command) (env.Vars, []string, error) {
	inlineVars, err := env.ParseInlineVars(cmd.Flag("vars").Value.String())
	if err != nil {
		return nil, nil, err
	}

	varFile := cmd.Flag("var-file").Value.String()
	var varFiles []string
	if varFile != "" {
		varFiles = append(varFiles, varFile)
	}
	return inlineVars, varFiles, nil
}

func loadManifestFromCmd(opts *Options, cmd *cobra.Command) (*config.Manifest, config.TemplateContext, error) {
	inlineVars, varFiles, err := parseInlineVarsAndFiles(cmd)
	if err != nil {
		return nil, config.TemplateContext{}, err
	}

	loadOpts := config.LoadOptions{
		UserVars: inlineVars,
		VarFiles: varFiles,
	}
	return config.LoadManifest(opts.ConfigPath, loadOpts)
}

func newAppFromCmd(opts *Options, cmd *cobra.Command) (*app.App, error) {
	m, _, err := loadManifestFromCmd(opts, cmd)
	if err != nil {
		return nil, err
	}
	return newAppFromManifest(cmd, m)
}

func newAppFromManifest(cmd *cobra.Command, m *config.Manifest) (*app.App, error) {
	return app.New(m, LoggerFromContext(cmd.Context()))
}

func addVarsFlags(cmd *cobra.Command) {
	var defaults varsEnv
	_ = parseEnv(&defaults)
	cmd.Flags().String("vars", defaults.Vars, "Additional variables in k=v,k2=v2 format")
	cmd.Flags().String("var-file", defaults.VarFile, "Path to YAML/ENV file with additional variables")
}

func addStateFlag(cmd *cobra.Command, state *string) {
	var defaults stateEnv
	_ = parseEnv(&defaults)
	cmd.Flags().StringVar(state, "state", strings.TrimSpace(defaults.State), "State to start in (defaults to the manifest's initialState)")
}
