package protocol

import "testing"

// =============================================================================
// Transition Bit
// =============================================================================

func TestTBitExhaustive(t *testing.T) {
	for v := 0; v < 256; v++ {
		ones := 0
		for i := 0; i < 8; i++ {
			if v&(1<<i) != 0 {
				ones++
			}
		}
		want := ones%2 == 0
		if got := TBit(byte(v)); got != want {
			t.Errorf("TBit(0x%02X) = %v, want %v", v, got, want)
		}
	}
}

// =============================================================================
// CRC Reference Vectors
// =============================================================================

var crcVectors = []struct {
	name  string
	data  []byte
	crc5  uint8
	crc16 uint16
	crc32 uint32
	pec   uint8
}{
	{"empty", nil, 0x1F, 0xFFFF, 0xFFFFFFFF, 0x00},
	{"zero", []byte{0x00}, 0x1E, 0x40BF, 0x2DFD1072, 0x00},
	{"ones", []byte{0xFF}, 0x1B, 0x00FF, 0x00FFFFFF, 0xF3},
	{"check", []byte("123456789"), 0x1E, 0x4B37, 0x340BC6D9, 0xF4},
	{"frame", []byte{0xA0, 0x50, 0x12, 0x34}, 0x15, 0x422F, 0xA62C9330, 0x2A},
}

func TestCRC5(t *testing.T) {
	for _, tt := range crcVectors {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC5(tt.data); got != tt.crc5 {
				t.Errorf("CRC5() = 0x%02X, want 0x%02X", got, tt.crc5)
			}
		})
	}
}

func TestCRC16(t *testing.T) {
	for _, tt := range crcVectors {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC16(tt.data); got != tt.crc16 {
				t.Errorf("CRC16() = 0x%04X, want 0x%04X", got, tt.crc16)
			}
		})
	}
}

func TestCRC32(t *testing.T) {
	for _, tt := range crcVectors {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC32(tt.data); got != tt.crc32 {
				t.Errorf("CRC32() = 0x%08X, want 0x%08X", got, tt.crc32)
			}
		})
	}
}

func TestCRCBitFlipChangesOutput(t *testing.T) {
	base := []byte{0xA0, 0x50, 0x12, 0x34}
	c5, c16, c32 := CRC5(base), CRC16(base), CRC32(base)

	for i := 0; i < len(base)*8; i++ {
		flipped := append([]byte(nil), base...)
		flipped[i/8] ^= 1 << (i % 8)

		if CRC5(flipped) == c5 {
			t.Errorf("CRC5 unchanged after flipping bit %d", i)
		}
		if CRC16(flipped) == c16 {
			t.Errorf("CRC16 unchanged after flipping bit %d", i)
		}
		if CRC32(flipped) == c32 {
			t.Errorf("CRC32 unchanged after flipping bit %d", i)
		}
	}
}

func TestCRC5Width(t *testing.T) {
	for v := 0; v < 256; v++ {
		if got := CRC5([]byte{byte(v), byte(v * 7)}); got > 0x1F {
			t.Fatalf("CRC5 = 0x%02X exceeds 5 bits", got)
		}
	}
}

// =============================================================================
// Parity Folds
// =============================================================================

func TestParity4(t *testing.T) {
	tests := []struct {
		data []byte
		want uint8
	}{
		{[]byte{0x00, 0x00}, 0xF},
		{[]byte{0x12, 0x34}, 0xB},
		{[]byte{0xFF, 0xFF}, 0xF},
		{[]byte{0xA5}, 0x0},
		{[]byte{0x80, 0xA0}, 0xD},
		{nil, 0xF},
	}
	for _, tt := range tests {
		if got := Parity4(tt.data...); got != tt.want {
			t.Errorf("Parity4(% X) = 0x%X, want 0x%X", tt.data, got, tt.want)
		}
	}
}

func TestParity2(t *testing.T) {
	tests := []struct {
		v    byte
		want uint8
	}{
		{0x00, 0x3},
		{0x84, 0x0},
		{0xFC, 0x0},
		{0x04, 0x2},
	}
	for _, tt := range tests {
		if got := Parity2(tt.v); got != tt.want {
			t.Errorf("Parity2(0x%02X) = 0x%X, want 0x%X", tt.v, got, tt.want)
		}
	}
}

// =============================================================================
// PEC
// =============================================================================

func TestPECIncludesAddress(t *testing.T) {
	// CRC-8 of the header byte alone.
	if got := PEC(0x50, false, nil); got != 0x69 {
		t.Errorf("PEC(0x50, W, nil) = 0x%02X, want 0x69", got)
	}
	if got := PEC(0x50, false, []byte{0x22}); got != 0xF6 {
		t.Errorf("PEC(0x50, W, [22]) = 0x%02X, want 0xF6", got)
	}
	frame := []byte{0x22, 0x03, 0x00, 0x24, 0x25, 0x26}
	if got := PEC(0x5A, false, frame); got != 0xB7 {
		t.Errorf("PEC(0x5A, W, frame) = 0x%02X, want 0xB7", got)
	}
	if PEC(0x5A, false, frame) == PEC(0x5A, true, frame) {
		t.Error("PEC does not depend on R/W")
	}
}

func TestPECMatchesVectors(t *testing.T) {
	for _, tt := range crcVectors {
		if len(tt.data) == 0 {
			continue
		}
		// Treat the first byte as the header.
		got := PEC(tt.data[0]>>1, tt.data[0]&1 != 0, tt.data[1:])
		if got != tt.pec {
			t.Errorf("%s: PEC = 0x%02X, want 0x%02X", tt.name, got, tt.pec)
		}
	}
}

func TestAddressHeader(t *testing.T) {
	if got := AddressHeader(0x50, false); got != 0xA0 {
		t.Errorf("AddressHeader(0x50, W) = 0x%02X, want 0xA0", got)
	}
	if got := AddressHeader(0x50, true); got != 0xA1 {
		t.Errorf("AddressHeader(0x50, R) = 0x%02X, want 0xA1", got)
	}
	if got := AddressHeader(ReservedByte, false); got != 0xFC {
		t.Errorf("AddressHeader(0x7E, W) = 0x%02X, want 0xFC", got)
	}
}
