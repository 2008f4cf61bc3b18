package protocol

// HDR framing constants.
const (
	// CRCToken is the nibble that precedes every HDR CRC.
	CRCToken uint8 = 0xC

	// BTBlockWords is the maximum number of data words per HDR-BT block.
	BTBlockWords = 16

	// BTAck is the transition byte a target drives to accept a command.
	BTAck byte = 0x00

	// BTVerifyOK is the transition-verify byte signaling a matching CRC.
	BTVerifyOK byte = 0x00
)

// DDRCommand is the HDR-DDR command word: R/W in bit 15, a 7-bit command
// code in bits 14..8 and the 7-bit target address in bits 7..1.
type DDRCommand struct {
	Read    bool
	Code    uint8
	Address uint8
}

// Word encodes c.
func (c DDRCommand) Word() uint16 {
	w := uint16(c.Code&0x7F)<<8 | uint16(c.Address&0x7F)<<1
	if c.Read {
		w |= 0x8000
	}
	return w
}

// ParseDDRCommand decodes a command word.
func ParseDDRCommand(w uint16) DDRCommand {
	return DDRCommand{
		Read:    w&0x8000 != 0,
		Code:    uint8(w>>8) & 0x7F,
		Address: uint8(w>>1) & 0x7F,
	}
}

// WordParity is the 4-bit parity carried after every HDR-DDR word.
func WordParity(w uint16) uint8 {
	return Parity4(byte(w>>8), byte(w))
}

// WordsToBytes flattens 16-bit words most significant byte first, the
// order in which CRCs are accumulated.
func WordsToBytes(words []uint16) []byte {
	out := make([]byte, 0, 2*len(words))
	for _, w := range words {
		out = append(out, byte(w>>8), byte(w))
	}
	return out
}

// BytesToWords packs data into 16-bit words, most significant byte first.
// It reports false when data has odd length.
func BytesToWords(data []byte) ([]uint16, bool) {
	if len(data)%2 != 0 {
		return nil, false
	}
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return words, true
}

// BTCommand is the 48-bit HDR-BT command.
type BTCommand struct {
	Read    bool
	Address uint8
	Command [4]byte
	CRC32   bool // CRC-32 instead of CRC-16
	Handoff bool // target drives SCL during the data phase of a read
	CCC     bool // the command continues a CCC
}

const (
	btFlagCRC32   = 1 << 7
	btFlagHandoff = 1 << 6
	btFlagCCC     = 1 << 5
)

// Bytes encodes c with its parity in the low nibble of the flags byte.
func (c BTCommand) Bytes() [6]byte {
	var b [6]byte
	b[0] = AddressHeader(c.Address, c.Read)
	copy(b[1:5], c.Command[:])
	if c.CRC32 {
		b[5] |= btFlagCRC32
	}
	if c.Handoff {
		b[5] |= btFlagHandoff
	}
	if c.CCC {
		b[5] |= btFlagCCC
	}
	b[5] |= Parity4(b[:]...)
	return b
}

// ParseBTCommand decodes a command and reports whether its parity holds.
func ParseBTCommand(b [6]byte) (BTCommand, bool) {
	c := BTCommand{
		Read:    b[0]&1 != 0,
		Address: b[0] >> 1,
		CRC32:   b[5]&btFlagCRC32 != 0,
		Handoff: b[5]&btFlagHandoff != 0,
		CCC:     b[5]&btFlagCCC != 0,
	}
	copy(c.Command[:], b[1:5])
	return c, c.Bytes() == b
}

// BTControl encodes a block's transition-control byte: bit 7 flags the last
// block, bits 6..2 hold the word count and bits 1..0 its parity.
func BTControl(last bool, words int) byte {
	b := byte(words&0x1F) << 2
	if last {
		b |= 0x80
	}
	return b | Parity2(b)
}

// ParseBTControl decodes a transition-control byte and reports whether its
// parity holds.
func ParseBTControl(b byte) (last bool, words int, ok bool) {
	last = b&0x80 != 0
	words = int(b>>2) & 0x1F
	return last, words, BTControl(last, words) == b
}

// BTCRC computes the block CRC selected by a BT command.
func BTCRC(crc32 bool, data []byte) uint32 {
	if crc32 {
		return CRC32(data)
	}
	return uint32(CRC16(data))
}

// BTCRCBits returns the CRC width selected by a BT command.
func BTCRCBits(crc32 bool) int {
	if crc32 {
		return 32
	}
	return 16
}
