package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"biolabel/internal/config"
	"biolabel/internal/pipeerr"
	"biolabel/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit [paths] and pipeline.subject (or export BIOLABEL_SUBJECT) before running biolabel.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var explicit string
			if ctx.configFlag != nil {
				explicit = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, path, exists, err := config.Load(explicit)
			if err != nil {
				return pipeerr.Wrap(pipeerr.ErrConfiguration, "", "load config", "", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			lines := []string{
				renderStatusLine("Subject", statusInfo, subjectLabel(cfg.Pipeline.Subject), colorize),
				renderStatusLine("Modalities", statusInfo, strings.Join(cfg.Pipeline.Modalities, ", "), colorize),
				renderStatusLine("Event scope", statusInfo, cfg.Pipeline.EventScope, colorize),
			}
			var blocking []string
			for _, res := range preflight.RunAll(cfg) {
				kind := statusOK
				if !res.Passed {
					kind = statusWarn
					if !isInputCheck(res.Name) {
						kind = statusError
						blocking = append(blocking, res.Name)
					}
				}
				lines = append(lines, renderStatusLine(res.Name, kind, res.Detail, colorize))
			}
			printLines(out, lines)
			if len(blocking) > 0 {
				return pipeerr.Wrap(pipeerr.ErrConfiguration, "", "validate config",
					fmt.Sprintf("unusable output locations: %s", strings.Join(blocking, ", ")), nil)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// isInputCheck marks checks whose failure each stage reports on its own.
func isInputCheck(name string) bool {
	return name == "Window directory" || name == "Event log"
}

func subjectLabel(subject string) string {
	if strings.TrimSpace(subject) == "" {
		return "all subjects"
	}
	return subject
}
