package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"menunotice/internal/config"
)

func newConfigCommand(configFlag *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigValidateCommand(configFlag))
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if err := config.WriteSample(target, overwrite); err != nil {
				return fmt.Errorf("write sample config: %w (use --overwrite to replace it)", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "menunotice.yaml", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := config.NewConfigManager(*configFlag)
			cfg, err := m.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if m.Path() == "" {
				fmt.Fprintln(out, "No config file given; defaults were used")
			} else {
				fmt.Fprintf(out, "Config path: %s\n", m.Path())
			}
			fmt.Fprintf(out, "Script steps: %d\n", len(cfg.Sim.Script))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
