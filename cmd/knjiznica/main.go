// Command knjiznica runs the library lending server and its admin tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "knjiznica",
	Short: "Library catalog and lending server",
	Long: `knjiznica serves the library catalog, member accounts, loans and fines
over a JSON API backed by a single SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closeLog, err := setupLogger(logPath)
		if err != nil {
			return err
		}
		closeLogFile = closeLog
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogFile != nil {
			closeLogFile()
		}
	},
}

var (
	configPath   string
	dbPath       string
	logPath      string
	closeLogFile func()
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&logPath, "log", "l", "", "also write logs to this file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
