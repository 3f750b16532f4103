// Package commands implements htbsim's cobra command tree: run a
// simulation from the CLI, serve the HTTP API, or print version info.
// Grounded on cmd/task-cli/commands/root.go's
// PersistentPreRunE-initializes-globals shape.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/htbsim/htbsim/internal/config"
	"github.com/htbsim/htbsim/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logr    *logging.Logger
	vpr     = viper.New()

	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "htbsim",
	Short: "A hierarchical token bucket traffic-shaping simulator",
	Long: `htbsim simulates a tree of hierarchical token bucket (HTB) traffic
shapers: CIR/PIR dual-rate accounting, parent-child rate borrowing, and
a priority scheduler, all driven over discrete virtual time.

Examples:
  htbsim run --profile topology.yaml --duration 5s
  htbsim run --profile topology.yaml --duration 5s --live
  htbsim serve --api-addr :8081 --admin-addr :9090`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(vpr, cfgFile)
		if err != nil {
			return err
		}
		logr, err = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stdout})
		return err
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersionInfo is called from main with build-time version metadata.
func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/htbsim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")
	_ = vpr.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = vpr.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("htbsim v%s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Git Commit: %s\n", gitCommit)
	},
}
