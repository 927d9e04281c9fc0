// Package commands implements the assetd command line.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/worshipwaves/WDweb-sub002/internal/cli/output"
	"github.com/worshipwaves/WDweb-sub002/internal/logger"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	configFile   string
	outputFormat string
	serverURL    string
	noColor      bool
)

var rootCmd = &cobra.Command{
	Use:   "assetd",
	Short: "Idle-time asset prefetching service",
	Long: `assetd keeps a cache of decoded texture assets warm.

It walks a catalog of items in the background while the host is idle,
loads single items on demand, and pauses while users are active.

Use "assetd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/assetd/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "assetd API URL for client commands")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(prefetchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the --config value.
func GetConfigFile() string {
	return configFile
}

func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	out := cmd.OutOrStdout()
	return output.NewPrinter(out, format, useColor(out)), nil
}

func useColor(w any) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return logger.IsTerminal(f.Fd())
}
