// Imaje-sim is a stub Imaje printer for integration testing.
//
// It listens on TCP, answers V24 dialog requests the way a 9040-family
// controller does, and keeps enough state (jet status, print counters,
// clock, external variables) for imaje-ctl and production line software
// to be exercised without a physical printer or ink.
//
// Usage:
//
//	imaje-sim serve [flags]
//
// See 'imaje-sim serve --help' for available options.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jetware/imaje/internal/logging"
	"github.com/jetware/imaje/internal/simulator"
	"github.com/jetware/imaje/internal/v24"
	"github.com/jetware/imaje/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "imaje-sim",
	Short: "Imaje Printer Simulator",
	Long: `A stub Imaje inkjet printer speaking the V24 dialog protocol over TCP.

The simulator accepts dialog connections and answers the command set of
a 9040-family controller from in-memory state. Use it to develop and
test line integration software without a physical printer.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	listenAddr  string
	grammarName string
	jetCount    int
	notReady    bool
	running     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the printer simulator",
	Example: `  # Listen on the standard dialog port
  imaje-sim serve

  # Two-head printer that refuses dialog
  imaje-sim serve --jets 2 --not-ready

  # Simulate a 9042 controller on a custom port
  imaje-sim serve --listen :7101 --grammar 9042`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":2101", "Listen address")
	serveCmd.Flags().StringVar(&grammarName, "grammar", "9040", "Wire grammar profile (9040, 9042, ip65)")
	serveCmd.Flags().IntVar(&jetCount, "jets", 1, "Number of printhead jets (1-4)")
	serveCmd.Flags().BoolVar(&notReady, "not-ready", false, "Answer NAK to every dialog request")
	serveCmd.Flags().BoolVar(&running, "running", false, "Start with the print engine running")
}

func runServe(cmd *cobra.Command, args []string) error {
	logging.InitializeFromEnv()
	defer logging.Sync()

	g, err := v24.Lookup(grammarName)
	if err != nil {
		return err
	}

	cfg := simulator.Config{
		Grammar:  g,
		Ready:    !notReady,
		JetCount: jetCount,
	}
	if running {
		cfg.JetStatus = 0x07
	}

	sim := simulator.New(cfg)
	if err := sim.Start(listenAddr); err != nil {
		return err
	}
	defer sim.Stop()

	fmt.Printf("Printer simulator listening on %s (%s grammar, %d jet(s))\n",
		sim.Addr(), grammarName, jetCount)
	fmt.Println("Press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down")
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("imaje-sim %s (commit: %s)\n", version.Version, version.Commit)
	},
}
