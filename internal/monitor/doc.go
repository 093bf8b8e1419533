// Package monitor implements the live status dashboard for a connected
// printer.
//
// The dashboard is a Bubble Tea program that polls the controller on a
// fixed interval and renders the jet states, jet speeds, print counters
// and the fault summary. Polling happens in a tea.Cmd so the UI stays
// responsive while a dialog exchange is in flight; because the session
// allows a single outstanding request, a poll cycle issues its queries
// sequentially.
//
// Key bindings:
//
//	r      poll immediately
//	f      reset printer faults
//	q/esc  quit
//
// Usage:
//
//	p, err := printer.Connect("192.168.1.50", 2101)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//	err = monitor.Run(p, 2*time.Second)
package monitor
