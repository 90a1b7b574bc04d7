package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
)

func newConfigCommand(cmdCtx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(cmdCtx))
	configCmd.AddCommand(newConfigShowCommand(cmdCtx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := os.WriteFile(target, []byte(config.SampleConfig()), 0o644); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Destination path (defaults to the standard location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigValidateCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration at %s is valid.\n", cmdCtx.cfgPath)
			return nil
		},
	}
}

func newConfigShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"broker.url", cfg.Broker.URL},
				{"broker.max_retries", fmt.Sprintf("%d", cfg.Broker.MaxRetries)},
				{"storage.endpoint", cfg.Storage.Endpoint},
				{"storage.bucket", cfg.Storage.Bucket},
				{"redis.url", cfg.Redis.URL},
				{"recognizer.backend", cfg.Recognizer.Backend},
				{"recognizer.mode", cfg.Recognizer.Mode},
				{"recognizer.model", cfg.Recognizer.Model},
				{"recognizer.default_language", cfg.Recognizer.DefaultLanguage},
				{"vad.aggressiveness", fmt.Sprintf("%d", cfg.VAD.Aggressiveness)},
				{"paths.work_dir", cfg.Paths.WorkDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"paths.api_bind", cfg.Paths.APIBind},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
