package protocol

import (
	"math/bits"

	"github.com/sigurn/crc8"
)

// TBit returns the transition bit sent after v in push-pull framing: the
// odd parity of v, so that v and its T-bit together hold an odd number of
// ones.
func TBit(v byte) bool {
	return bits.OnesCount8(v)%2 == 0
}

// CRC-5 parameters for HDR-DDR (x^5 + x^2 + 1).
const (
	crc5Poly = 0x05
	crc5Init = 0x1F
)

// CRC5 computes the HDR-DDR CRC-5 over data, most significant bit first,
// and returns it bit-reversed in the low five bits.
func CRC5(data []byte) uint8 {
	crc := uint8(crc5Init)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bit := (b >> i) & 1
			msb := (crc >> 4) & 1
			crc = (crc << 1) & 0x1F
			if msb != bit {
				crc ^= crc5Poly
			}
		}
	}
	return bits.Reverse8(crc) >> 3
}

// CRC-16 and CRC-32 polynomials for HDR-BT.
const (
	crc16Poly = 0x8005
	crc32Poly = 0x04C11DB7
)

// CRC16 computes the HDR-BT CRC-16 over data. Bits enter least significant
// first and the register is returned bit-reversed.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bit := uint16(b>>i) & 1
			msb := crc >> 15
			crc <<= 1
			if msb != bit {
				crc ^= crc16Poly
			}
		}
	}
	return bits.Reverse16(crc)
}

// CRC32 computes the HDR-BT CRC-32 over data. Bits enter least significant
// first and the register is returned bit-reversed to its full width.
func CRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bit := uint32(b>>i) & 1
			msb := crc >> 31
			crc <<= 1
			if msb != bit {
				crc ^= crc32Poly
			}
		}
	}
	return bits.Reverse32(crc)
}

// Parity4 XOR-folds every nibble of data and inverts the result.
func Parity4(data ...byte) uint8 {
	var p uint8
	for _, b := range data {
		p ^= b ^ (b >> 4)
	}
	return ^p & 0x0F
}

// Parity2 XOR-folds the four bit pairs of v and inverts the result.
func Parity2(v byte) uint8 {
	p := v ^ (v >> 4)
	p ^= p >> 2
	return ^p & 0x03
}

// pecTable is CRC-8 with polynomial 0x07, initial value 0, no reflection.
var pecTable = crc8.MakeTable(crc8.CRC8)

// PEC computes the packet error code of a frame exchanged with addr: CRC-8
// over the address header byte followed by the frame.
func PEC(addr uint8, read bool, frame []byte) uint8 {
	crc := crc8.Init(pecTable)
	crc = crc8.Update(crc, []byte{AddressHeader(addr, read)}, pecTable)
	crc = crc8.Update(crc, frame, pecTable)
	return crc8.Complete(crc, pecTable)
}

// AddressHeader encodes a 7-bit address and the R/W bit.
func AddressHeader(addr uint8, read bool) byte {
	h := addr << 1
	if read {
		h |= 1
	}
	return h
}
