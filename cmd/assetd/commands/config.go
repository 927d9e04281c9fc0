package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/worshipwaves/WDweb-sub002/internal/cli/output"
	"github.com/worshipwaves/WDweb-sub002/internal/cli/prompt"
	"github.com/worshipwaves/WDweb-sub002/pkg/config"
	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

var (
	initForce       bool
	initInteractive bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the assetd configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with default values.

Examples:
  # Write defaults to $XDG_CONFIG_HOME/assetd/config.yaml
  assetd config init

  # Answer a few questions about the store and catalog
  assetd config init --interactive

  # Overwrite an existing file
  assetd config init --config ./assetd.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file without asking")
	configInitCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for store and catalog settings")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

func configPath() string {
	if p := GetConfigFile(); p != "" {
		return p
	}
	return config.GetDefaultConfigPath()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	out := cmd.OutOrStdout()
	printer := output.NewPrinter(out, output.FormatTable, useColor(out))

	if _, err := os.Stat(path); err == nil {
		if !initForce && !initInteractive {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Overwrite %s", path), initForce)
		if err != nil {
			return err
		}
		if !ok {
			printer.Warning("Aborted")
			return nil
		}
	}

	cfg := config.GetDefaultConfig()
	if initInteractive {
		if err := promptConfig(cfg); err != nil {
			if prompt.IsAborted(err) {
				printer.Warning("Aborted")
				return nil
			}
			return err
		}
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}

	printer.Success(fmt.Sprintf("Configuration written to %s", path))
	return nil
}

var storeOptions = []prompt.SelectOption{
	{Label: "Filesystem", Value: store.TypeFS, Description: "Read assets from a local directory"},
	{Label: "S3", Value: store.TypeS3, Description: "Read assets from an S3 or S3-compatible bucket"},
	{Label: "HTTP", Value: store.TypeHTTP, Description: "Fetch assets from a CDN or web server"},
	{Label: "Memory", Value: store.TypeMemory, Description: "Empty in-memory store, for testing"},
}

func promptConfig(cfg *config.Config) error {
	var err error

	if cfg.Catalog.Path, err = prompt.Input("Catalog file", cfg.Catalog.Path); err != nil {
		return err
	}
	if cfg.Server.Port, err = prompt.InputPort("API port", cfg.Server.Port); err != nil {
		return err
	}
	if cfg.Store.Type, err = prompt.Select("Asset store", storeOptions); err != nil {
		return err
	}

	switch cfg.Store.Type {
	case store.TypeFS:
		if cfg.Store.FS.BasePath, err = prompt.Input("Asset directory", cfg.Store.FS.BasePath); err != nil {
			return err
		}
	case store.TypeS3:
		s3 := &cfg.Store.S3
		if s3.Bucket, err = prompt.InputRequired("Bucket"); err != nil {
			return err
		}
		if s3.Region, err = prompt.Input("Region", s3.Region); err != nil {
			return err
		}
		if s3.Endpoint, err = prompt.Input("Endpoint (empty for AWS)", s3.Endpoint); err != nil {
			return err
		}
		if s3.AccessKeyID, err = prompt.Input("Access key ID (empty for the default chain)", ""); err != nil {
			return err
		}
		if s3.AccessKeyID != "" {
			if s3.SecretAccessKey, err = prompt.Password("Secret access key"); err != nil {
				return err
			}
		}
	case store.TypeHTTP:
		if cfg.Store.HTTP.BaseURL, err = prompt.InputRequired("Base URL"); err != nil {
			return err
		}
	}

	if cfg.Store.Type != store.TypeMemory {
		if cfg.Store.Local.Enabled, err = prompt.Confirm("Keep a local on-disk copy of fetched assets", false); err != nil {
			return err
		}
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := output.NewPrinter(out, output.FormatTable, useColor(out))
	printer.Success(fmt.Sprintf("%s: OK", configPath()))

	return output.KeyValue(out, [][2]string{
		{"Store", cfg.Store.Type},
		{"Local tier", fmt.Sprint(cfg.Store.Local.Enabled)},
		{"Catalog", cfg.Catalog.Path},
		{"API port", fmt.Sprint(cfg.Server.Port)},
		{"Log level", cfg.Logging.Level},
		{"Metrics", fmt.Sprint(cfg.Metrics.Enabled)},
	})
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	}

	return output.PrintYAML(cmd.OutOrStdout(), cfg)
}
