// Package protocol holds the wire-level vocabulary shared by the I3C
// controller and target engines: bus states, timing profiles, CCC and
// reset-action codes, the BCR layout, and the parity and CRC codecs used by
// SDR, HDR-DDR, HDR-BT and the recovery layer.
//
// Every function here is pure.
//
//	t := protocol.ControllerProfile().Scale(protocol.FullSpeed / 4)
//	tbit := protocol.TBit(0xA5)
//	crc := protocol.CRC5(protocol.WordsToBytes(words))
package protocol
