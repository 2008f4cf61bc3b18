// Package recovery implements the OCP recovery command layer over I3C
// private transfers.
//
// A write command is one private write of [command, length lo, length
// hi, payload..., PEC]. A read command writes [command, PEC] without a
// STOP, then reads [length lo, length hi, data..., PEC] after a repeated
// START. The PEC is a CRC-8 (polynomial 0x07) over the address header
// and the frame.
//
// [Device] is the target side: plug it into a target with
// target.WithStorage to exercise the adapter end to end.
package recovery
