// Package simulator implements a stub V24 printer over TCP.
//
// It exists for two reasons: end-to-end tests of the dialog client
// without hardware, and bench work against `imaje-sim` when writing
// integrations. The simulator answers the documented command set from
// a small mutable state (readiness, jet count, counters, clock,
// variables, one fault bit) and NAKs everything else, which is also
// how real controllers behave toward unknown opcodes.
//
// One simulator accepts any number of sequential or concurrent
// connections; each connection runs its own half-duplex dialog.
package simulator
