// Imaje-ctl is a control utility for Imaje industrial inkjet printers.
//
// It speaks the V24 dialog protocol over TCP (or a serial-over-WebSocket
// bridge) and exposes the printer operations as subcommands: start and
// stop the print engine, query jet status, speed and counters, read and
// reset faults, set the autodating clock and push external message
// variables.
//
// Usage:
//
//	imaje-ctl [command] [flags]
//
// The printer address comes from --addr or the IMAJE_ADDR environment
// variable. See 'imaje-ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jetware/imaje/internal/logging"
	"github.com/jetware/imaje/internal/version"
)

func main() {
	logging.InitializeFromEnv()
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "imaje-ctl",
	Short: "Imaje Printer Control Utility",
	Long: `A standalone utility for controlling Imaje industrial inkjet printers
over the V24 dialog protocol.

Supports the 9040, 9042 and IP65-Contrast controller families. The
printer must have its RS232 dialog port bridged to TCP (most site
installations use a serial device server on port 2101).

If no command is specified, the live monitor dashboard will launch.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the monitor when no subcommand provided
		return runMonitor(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("imaje-ctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
