package protocol

import "fmt"

// ReservedByte is the broadcast address 0x7E. It opens every SDR frame and
// announces a CCC.
const ReservedByte uint8 = 0x7E

// BroadcastLimit is the highest broadcast CCC code. Codes above it are
// directed.
const BroadcastLimit uint8 = 0x7F

// Common command codes used by the engines.
const (
	CCCEnableEventsBroadcast  uint8 = 0x00 // ENEC
	CCCDisableEventsBroadcast uint8 = 0x01 // DISEC
	CCCResetDAA               uint8 = 0x06 // RSTDAA
	CCCSetMWLBroadcast        uint8 = 0x09 // SETMWL
	CCCSetMRLBroadcast        uint8 = 0x0A // SETMRL
	CCCEnterHDR0              uint8 = 0x20 // ENTHDR0 (HDR-DDR)
	CCCEnterHDR3              uint8 = 0x23 // ENTHDR3 (HDR-BT)
	CCCResetActionBroadcast   uint8 = 0x2A // RSTACT
	CCCEnableEventsDirected   uint8 = 0x80 // ENEC
	CCCDisableEventsDirected  uint8 = 0x81 // DISEC
	CCCSetMWLDirected         uint8 = 0x89 // SETMWL
	CCCSetMRLDirected         uint8 = 0x8A // SETMRL
	CCCGetMWL                 uint8 = 0x8B // GETMWL
	CCCGetMRL                 uint8 = 0x8C // GETMRL
	CCCResetActionDirected    uint8 = 0x9A // RSTACT
)

// IsBroadcast reports whether code addresses every target at once.
func IsBroadcast(code uint8) bool {
	return code <= BroadcastLimit
}

// HasDefiningByte reports whether code is always followed by a defining byte.
func HasDefiningByte(code uint8) bool {
	return code == CCCResetActionBroadcast || code == CCCResetActionDirected
}

// IsEnterHDR reports whether code is one of the ENTHDRx commands.
func IsEnterHDR(code uint8) bool {
	return code >= CCCEnterHDR0 && code <= CCCEnterHDR0+7
}

// ResetAction is the RSTACT defining byte.
type ResetAction uint8

// Reset actions. The 0x8x values are only valid in a directed GET and ask
// the target how long the matching action takes.
const (
	ResetNone                ResetAction = 0x00
	ResetPeripheral          ResetAction = 0x01
	ResetWholeTarget         ResetAction = 0x02
	ResetDebugNetworkAdapter ResetAction = 0x03
	ResetVirtualTargetDetect ResetAction = 0x04
	ResetTimePeripheral      ResetAction = 0x81
	ResetTimeWholeTarget     ResetAction = 0x82
)

// String returns the action name.
func (a ResetAction) String() string {
	switch a {
	case ResetNone:
		return "NO_RESET"
	case ResetPeripheral:
		return "RESET_PERIPHERAL_ONLY"
	case ResetWholeTarget:
		return "RESET_WHOLE_TARGET"
	case ResetDebugNetworkAdapter:
		return "DEBUG_NETWORK_ADAPTER_RESET"
	case ResetVirtualTargetDetect:
		return "VIRTUAL_TARGET_DETECT"
	case ResetTimePeripheral:
		return "RETURN_TIME_RESET_PERIPHERAL"
	case ResetTimeWholeTarget:
		return "RETURN_TIME_RESET_WHOLE_TARGET"
	default:
		return fmt.Sprintf("RESET_ACTION(0x%02X)", uint8(a))
	}
}

// TimeQuery returns the directed GET defining byte that asks how long a
// resets, and false for actions that have no reset time.
func (a ResetAction) TimeQuery() (ResetAction, bool) {
	switch a {
	case ResetPeripheral:
		return ResetTimePeripheral, true
	case ResetWholeTarget:
		return ResetTimeWholeTarget, true
	default:
		return 0, false
	}
}
