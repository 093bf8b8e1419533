package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jetware/imaje/internal/monitor"
	"github.com/jetware/imaje/internal/printer"
	"github.com/jetware/imaje/internal/session"
	"github.com/jetware/imaje/internal/v24"
)

// Connection flags
var (
	printerAddr  string
	printerPort  int
	wsURL        string
	dialTimeout  time.Duration
	grammarName  string
	grammarFile  string
	pollInterval time.Duration
	shortStop    bool
	resetAfter   bool
	clockValue   string
)

func init() {
	// Environment defaults: IMAJE_ADDR, IMAJE_PORT, IMAJE_TIMEOUT,
	// IMAJE_GRAMMAR override the built-in values below.
	viper.AutomaticEnv()
	viper.SetDefault("IMAJE_ADDR", "")
	viper.SetDefault("IMAJE_PORT", session.DefaultPort)
	viper.SetDefault("IMAJE_TIMEOUT", session.DefaultExchangeTimeout)
	viper.SetDefault("IMAJE_GRAMMAR", "9040")

	rootCmd.PersistentFlags().StringVar(&printerAddr, "addr", viper.GetString("IMAJE_ADDR"), "Printer host or IP address")
	rootCmd.PersistentFlags().IntVar(&printerPort, "port", viper.GetInt("IMAJE_PORT"), "Printer dialog port")
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws", "", "WebSocket bridge URL (use instead of --addr/--port)")
	rootCmd.PersistentFlags().DurationVar(&dialTimeout, "timeout", viper.GetDuration("IMAJE_TIMEOUT"), "Per-command response timeout")
	rootCmd.PersistentFlags().StringVar(&grammarName, "grammar", viper.GetString("IMAJE_GRAMMAR"), "Wire grammar profile (9040, 9042, ip65)")
	rootCmd.PersistentFlags().StringVar(&grammarFile, "grammar-file", "", "YAML grammar file (overrides --grammar)")

	rootCmd.AddCommand(dialogCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(speedCmd)
	rootCmd.AddCommand(counterCmd)
	rootCmd.AddCommand(faultsCmd)
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(clockCmd)
	rootCmd.AddCommand(varsCmd)
	rootCmd.AddCommand(grammarCmd)
	rootCmd.AddCommand(monitorCmd)
}

// resolveGrammar picks the wire grammar from flags.
func resolveGrammar() (v24.Grammar, error) {
	if grammarFile != "" {
		return v24.LoadGrammar(grammarFile)
	}
	return v24.Lookup(grammarName)
}

// connect opens the dialog session selected by the connection flags.
func connect() (*printer.Printer, error) {
	g, err := resolveGrammar()
	if err != nil {
		return nil, err
	}

	var p *printer.Printer
	switch {
	case wsURL != "":
		tr, err := session.DialWebSocket(wsURL, session.DefaultConnectTimeout)
		if err != nil {
			return nil, err
		}
		p = printer.FromSession(session.New(tr, wsURL, g))
	case printerAddr != "":
		p, err = printer.ConnectGrammar(printerAddr, printerPort, g)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no printer address: use --addr, --ws or set IMAJE_ADDR")
	}

	if dialTimeout > 0 {
		p.SetTimeout(dialTimeout)
	}
	return p, nil
}

// jetArg parses the optional jet number argument, defaulting to jet 1.
func jetArg(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	jet, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid jet number %q", args[0])
	}
	return jet, nil
}

var dialogCmd = &cobra.Command{
	Use:   "dialog",
	Short: "Probe whether the printer is ready to dialog",
	Long: `Send the dialog request and report whether the printer answers
ready. This is the cheapest liveness check the protocol offers and is
safe to run while the printer is producing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		ready, err := p.GetV24Dialog()
		if err != nil {
			return err
		}
		if ready {
			fmt.Println("Printer is ready for dialog")
		} else {
			fmt.Println("Printer is NOT ready for dialog")
		}
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the print engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		ok, err := p.StartStopPrinter(v24.ModeStartUp)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("printer refused the start command")
		}
		fmt.Println("Print engine starting")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the print engine",
	Long: `Stop the print engine. The default long shutdown runs the
auto-clean cycle before powering the jets down; --short skips the
cleaning cycle (use before a restart within a few hours).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		mode := v24.ModeLongShutdown
		if shortStop {
			mode = v24.ModeShortShutdown
		}
		ok, err := p.StartStopPrinter(mode)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("printer refused the stop command")
		}
		fmt.Println("Print engine stopping")
		return nil
	},
}

func init() {
	stopCmd.Flags().BoolVar(&shortStop, "short", false, "Short shutdown without the auto-clean cycle")
}

var statusCmd = &cobra.Command{
	Use:   "status [jet]",
	Short: "Show the status of a printhead jet",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jet, err := jetArg(args)
		if err != nil {
			return err
		}
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		status, err := p.GetJetStatus(jet)
		if err != nil {
			return err
		}
		fmt.Printf("Jet %d: %s\n", jet, status)
		return nil
	},
}

var speedCmd = &cobra.Command{
	Use:   "speed [jet]",
	Short: "Show the ink drop speed of a jet",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jet, err := jetArg(args)
		if err != nil {
			return err
		}
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		speed, err := p.GetJetSpeed(jet)
		if err != nil {
			return err
		}
		fmt.Printf("Jet %d: %.1f m/s\n", jet, speed)
		return nil
	},
}

var counterCmd = &cobra.Command{
	Use:   "counter [jet]",
	Short: "Show or reset the print counter of a jet",
	Args:  cobra.MaximumNArgs(1),
	Example: `  # Read the counter of jet 1
  imaje-ctl counter

  # Reset the counter of jet 2
  imaje-ctl counter 2 --reset`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jet, err := jetArg(args)
		if err != nil {
			return err
		}
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		if resetAfter {
			ok, err := p.ResetJetCounter(jet)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("printer refused the counter reset")
			}
			fmt.Printf("Jet %d counter reset\n", jet)
			return nil
		}

		count, err := p.GetJetCounter(jet)
		if err != nil {
			return err
		}
		fmt.Printf("Jet %d: %d prints\n", jet, count)
		return nil
	},
}

var faultsCmd = &cobra.Command{
	Use:   "faults",
	Short: "Show or reset the printer fault record",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		if resetAfter {
			ok, err := p.ResetPrinterFaults()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("printer refused the fault reset")
			}
			fmt.Println("Fault record cleared")
			return nil
		}

		faults, err := p.GetPrinterFaults()
		if err != nil {
			return err
		}
		printFaults(faults)
		return nil
	},
}

func init() {
	counterCmd.Flags().BoolVar(&resetAfter, "reset", false, "Reset instead of read")
	faultsCmd.Flags().BoolVar(&resetAfter, "reset", false, "Reset instead of read")
}

// printFaults renders the fault record for the terminal.
func printFaults(f *printer.Faults) {
	if !f.Machine() {
		fmt.Println("No machine faults")
	} else {
		fmt.Println("Machine faults:")
		for _, line := range machineFaultLines(f) {
			fmt.Printf("  - %s\n", line)
		}
	}

	fmt.Printf("Available jets: %d\n", f.AvailableJets())
	for i, jet := range f.Jets {
		if jet.NotPresent {
			fmt.Printf("Jet %d: not present\n", i+1)
			continue
		}
		lines := jetFaultLines(jet)
		if len(lines) == 0 {
			continue
		}
		fmt.Printf("Jet %d faults: %s\n", i+1, strings.Join(lines, ", "))
	}
}

func machineFaultLines(f *printer.Faults) []string {
	var lines []string
	add := func(set bool, name string) {
		if set {
			lines = append(lines, name)
		}
	}
	add(f.InkLevelLow, "ink level low")
	add(f.PressureError, "pressure error")
	add(f.CPUHardware, "CPU hardware")
	add(f.MemoryLost, "memory lost")
	add(f.Head1Faulty, "head 1 faulty")
	add(f.Head2Faulty, "head 2 faulty")
	add(f.MotorCycle, "motor cycle")
	add(f.PigmentedInkCircuit, "pigmented ink circuit")
	add(f.Autodating, "autodating")
	add(f.RAM, "RAM")
	add(f.ROM, "ROM")
	add(f.V24, "V24 link")
	add(f.RecoveryTankTooFull, "recovery tank too full")
	add(f.InkTankTooFull, "ink tank too full")
	add(f.AccuEmpty, "accu empty")
	add(f.Temperature, "temperature")
	add(f.Viscosity, "viscosity")
	add(f.Fan, "fan")
	add(f.Additive, "additive")
	return lines
}

func jetFaultLines(j printer.JetFaults) []string {
	var lines []string
	add := func(set bool, name string) {
		if set {
			lines = append(lines, name)
		}
	}
	add(j.PrintingHardware, "printing hardware")
	add(j.FrameGenerator, "frame generator")
	add(j.CharGenerator, "character generator")
	add(j.Cover, "cover")
	add(j.EHV, "EHV")
	add(j.Recovery, "recovery")
	add(j.PhaseDetection, "phase detection")
	add(j.CPUCommunication, "CPU communication")
	add(j.PrintingSpeed, "printing speed")
	add(j.DTOPFiltering, "DTOP filtering")
	add(j.NoMessageToPrint, "no message to print")
	add(j.IncorrectCharGenerator, "incorrect character generator")
	add(j.DTOPPrinting, "DTOP printing")
	return lines
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Show the ink circuit parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		params, err := p.GetParameters()
		if err != nil {
			return err
		}
		fmt.Printf("Motor speed:         %d rpm\n", params.MotorSpeed)
		fmt.Printf("Pressure:            %.2f bar\n", params.Pressure)
		fmt.Printf("Visco filling times: %d\n", params.ViscoFillingTimes)
		fmt.Printf("Additive added:      %d\n", params.AdditiveAdded)
		fmt.Printf("Average jet speed:   %.1f m/s\n", params.AverageJetSpeed)
		fmt.Printf("Electronics temp:    %d C\n", params.ElectronicsTemp)
		fmt.Printf("Ink circuit temp:    %d C\n", params.InkCircuitTemp)
		return nil
	},
}

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Show or set the autodating clock",
	Long: `Read the printer autodating clock, or set it with --set. The value
"now" syncs the printer to the local host clock.`,
	Example: `  # Read the printer clock
  imaje-ctl clock

  # Sync the printer clock to this machine
  imaje-ctl clock --set now

  # Set an explicit time
  imaje-ctl clock --set "2026-08-29 14:30:00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		if clockValue == "" {
			t, err := p.GetAutodatingTable()
			if err != nil {
				return err
			}
			fmt.Printf("Printer clock: %s\n", t.Format("2006-01-02 15:04:05"))
			return nil
		}

		t := time.Now()
		if clockValue != "now" {
			t, err = time.ParseInLocation("2006-01-02 15:04:05", clockValue, time.Local)
			if err != nil {
				return fmt.Errorf("invalid clock value %q: want \"2006-01-02 15:04:05\" or \"now\"", clockValue)
			}
		}
		ok, err := p.SetAutodatingTable(t)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("printer refused the clock update")
		}
		fmt.Printf("Printer clock set to %s\n", t.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	clockCmd.Flags().StringVar(&clockValue, "set", "", "Set the clock (\"now\" or \"2006-01-02 15:04:05\")")
}

var varsCmd = &cobra.Command{
	Use:   "vars <jet> <value>...",
	Short: "Set the external message variables of a jet",
	Long: `Push external variable values into the message of a printhead jet.
Up to ten printable ASCII values per command; the printer substitutes
them into the message fields in order.`,
	Example: `  # Set two variables on jet 1
  imaje-ctl vars 1 "LOT 4711" "2026-08-29"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jet, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid jet number %q", args[0])
		}
		p, err := connect()
		if err != nil {
			return err
		}
		defer p.Close()

		ok, err := p.SetExternalVariables(jet, args[1:])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("printer refused the variable update")
		}
		fmt.Printf("Jet %d: %d variable(s) set\n", jet, len(args)-1)
		return nil
	},
}

var grammarCmd = &cobra.Command{
	Use:   "grammar [profile]",
	Short: "Show the built-in wire grammar profiles",
	Long: `Without arguments, list the built-in grammar profiles. With a
profile name, print that profile as YAML; use --out to write it to a
file as a starting point for a custom grammar.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			profiles := v24.Profiles()
			names := make([]string, 0, len(profiles))
			for name := range profiles {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				g := profiles[name]
				fmt.Printf("%-8s length width %d, checksum %s, max payload %d\n",
					name, g.LengthWidth, g.Checksum, g.MaxPayload)
			}
			return nil
		}

		g, err := v24.Lookup(args[0])
		if err != nil {
			return err
		}
		if grammarOut != "" {
			if err := v24.SaveGrammar(grammarOut, g); err != nil {
				return err
			}
			fmt.Printf("Wrote %s profile to %s\n", args[0], grammarOut)
			return nil
		}
		fmt.Printf("name:         %s\n", g.Name)
		fmt.Printf("length_width: %d\n", g.LengthWidth)
		fmt.Printf("checksum:     %s\n", g.Checksum)
		fmt.Printf("max_payload:  %d\n", g.MaxPayload)
		fmt.Printf("enq:          0x%02X\n", g.Enq)
		fmt.Printf("ack:          0x%02X\n", g.Ack)
		fmt.Printf("nak:          0x%02X\n", g.Nak)
		return nil
	},
}

var grammarOut string

func init() {
	grammarCmd.Flags().StringVar(&grammarOut, "out", "", "Write the profile to a YAML file")
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Launch the live status dashboard",
	Long: `Launch a terminal dashboard that polls the printer and renders the
jet states, speeds, print counters and the fault summary.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&pollInterval, "interval", 2*time.Second, "Poll interval")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	p, err := connect()
	if err != nil {
		return err
	}
	defer p.Close()

	return monitor.Run(p, pollInterval)
}
