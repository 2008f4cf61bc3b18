package recovery

import "fmt"

// Command is an OCP recovery command code.
type Command uint8

// Recovery command codes.
const (
	ProtCap            Command = 34
	DeviceID           Command = 35
	DeviceStatus       Command = 36
	DeviceReset        Command = 37
	RecoveryCtrl       Command = 38
	RecoveryStatus     Command = 39
	HWStatus           Command = 40
	IndirectCtrl       Command = 41
	IndirectStatus     Command = 42
	IndirectData       Command = 43
	Vendor             Command = 44
	IndirectFIFOCtrl   Command = 45
	IndirectFIFOStatus Command = 46
	IndirectFIFOData   Command = 47
)

// String returns the command mnemonic.
func (c Command) String() string {
	switch c {
	case ProtCap:
		return "PROT_CAP"
	case DeviceID:
		return "DEVICE_ID"
	case DeviceStatus:
		return "DEVICE_STATUS"
	case DeviceReset:
		return "DEVICE_RESET"
	case RecoveryCtrl:
		return "RECOVERY_CTRL"
	case RecoveryStatus:
		return "RECOVERY_STATUS"
	case HWStatus:
		return "HW_STATUS"
	case IndirectCtrl:
		return "INDIRECT_CTRL"
	case IndirectStatus:
		return "INDIRECT_STATUS"
	case IndirectData:
		return "INDIRECT_DATA"
	case Vendor:
		return "VENDOR"
	case IndirectFIFOCtrl:
		return "INDIRECT_FIFO_CTRL"
	case IndirectFIFOStatus:
		return "INDIRECT_FIFO_STATUS"
	case IndirectFIFOData:
		return "INDIRECT_FIFO_DATA"
	default:
		return fmt.Sprintf("COMMAND(%d)", uint8(c))
	}
}

// MaxPayload is the largest payload a 16-bit length field can describe.
const MaxPayload = 0xFFFF

// frame builds [command, length lo, length hi, payload...].
func frame(cmd Command, data []byte) []byte {
	f := make([]byte, 0, 3+len(data)+1)
	f = append(f, byte(cmd), byte(len(data)), byte(len(data)>>8))
	return append(f, data...)
}
