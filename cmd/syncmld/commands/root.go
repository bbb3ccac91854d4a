// Package commands implements the syncmld CLI: init, start, and status.
//
// Grounded on _teacher_ref/cmd_dittofs/commands/root.go: one package-level
// cobra rootCmd, subcommands registered from init(), a persistent --config
// flag threaded through every subcommand via GetConfigFile.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is the build-time version string, injected via ldflags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "syncmld",
	Short: "syncmld - an OMA DS (SyncML) synchronization engine",
	Long: `syncmld drives OMA Data Synchronization 1.1/1.2 sessions, as a
client posting to a remote SyncML server or as a server accepting
sessions from SyncML clients.

Use "syncmld [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/syncmld/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
}

// GetConfigFile returns the config file path from the global --config flag.
func GetConfigFile() string {
	return cfgFile
}

// Exit prints an error to stderr and exits with status 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
