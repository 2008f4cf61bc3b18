// Package controller implements an I3C bus controller on top of a
// [bus.Wires] port.
//
// The controller always drives SCL, except while an HDR-BT target holds
// the clock during a handoff. It interacts with the bus only through the
// wire interface, so the same engine runs on the simulator in
// github.com/ardnew/softi3c/bus/sim or any other backend.
//
// # Architecture
//
// The engine is organized into layers:
//
//   - Bit primitives: START, repeated START, STOP, push-pull and
//     open-drain bits, each respecting the scaled timing table
//   - Byte framing: legacy ACK/NACK, write T-bit parity and read
//     end-of-data T-bits
//   - Transfers: private read and write, broadcast and directed CCCs
//   - Target reset: RSTACT frames, reset-time queries and the reset pattern
//   - HDR: DDR and BT framing entered with ENTHDRx and left with the
//     exit pattern
//
// # In-Band Interrupts
//
// Start launches a monitor task that watches a free bus for a target
// pulling SDA low. Foreground operations take bus control from it first:
//
//	c := controller.New(port)
//	c.AddTarget(0x50, protocol.BCR(0).With(protocol.BCRIBIPayload, true))
//	c.EnableIBI()
//	c.Start(ctx)
//	ibi, err := c.WaitIBI(ctx, 10*bus.Microsecond)
//
// # Error Handling
//
// A NACKed header is an ordinary outcome reported in the result structs.
// Errors are reserved for invalid requests, timeouts and protocol
// violations, which are fatal.
package controller
