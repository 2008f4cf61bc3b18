// Package bus defines the two-wire signal interface the I3C engines drive.
//
// A [Wires] value is one device's port onto the bus: level get/set for SDA
// and SCL, edge waits, timed delays and task spawning on a shared
// timeline. Engines touch the bus through nothing else, so the same
// controller and target code runs against any backend that can honor
// these semantics. The [github.com/ardnew/softi3c/bus/sim] package provides
// an in-process simulator.
//
// Time on the bus is measured in picoseconds ([Time]) so that fractional
// nanosecond timing parameters such as tCBP = 19.2ns stay exact.
package bus
