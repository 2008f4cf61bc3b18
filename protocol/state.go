package protocol

// BusState is the protocol phase an engine is in. It decides which timing
// interval applies next and is exposed read-only for introspection.
type BusState uint8

// Bus states.
const (
	StateFree                 BusState = iota // Bus idle
	StateStart                                // START issued or detected
	StateAddr                                 // Address header
	StateDataWrite                            // Controller-to-target data
	StateDataRead                             // Target-to-controller data
	StateAck                                  // ACK/NACK bit
	StateRepeatedStart                        // Repeated START
	StateTBitWrite                            // Transition bit, write direction
	StateTBitRead                             // Transition bit, read direction
	StateCCC                                  // Common command code
	StateStop                                 // STOP issued or detected
	StateAwaitRepeatedOrStop                  // Data phase over, Sr or P pending
	StateTargetReset                          // Target reset pattern
	StateHDR                                  // HDR mode
)

// String returns a human-readable state name.
func (s BusState) String() string {
	switch s {
	case StateFree:
		return "FREE"
	case StateStart:
		return "START"
	case StateAddr:
		return "ADDR"
	case StateDataWrite:
		return "DATA_WR"
	case StateDataRead:
		return "DATA_RD"
	case StateAck:
		return "ACK"
	case StateRepeatedStart:
		return "REPEATED_START"
	case StateTBitWrite:
		return "TBIT_WR"
	case StateTBitRead:
		return "TBIT_RD"
	case StateCCC:
		return "CCC"
	case StateStop:
		return "STOP"
	case StateAwaitRepeatedOrStop:
		return "AWAIT_SR_OR_P"
	case StateTargetReset:
		return "TARGET_RESET"
	case StateHDR:
		return "HDR"
	default:
		return "UNKNOWN"
	}
}

// Header classifies the address header a target observed.
type Header uint8

// Header classifications.
const (
	HeaderNone          Header = iota // No header since the last STOP
	HeaderReserved                    // Reserved broadcast byte 0x7E
	HeaderRead                        // Read addressed to this target
	HeaderWrite                       // Write addressed to this target
	HeaderNotApplicable               // Another target's address
)

// String returns a human-readable header classification.
func (h Header) String() string {
	switch h {
	case HeaderNone:
		return "NONE"
	case HeaderReserved:
		return "RESERVED"
	case HeaderRead:
		return "READ"
	case HeaderWrite:
		return "WRITE"
	case HeaderNotApplicable:
		return "NON_APPLICABLE"
	default:
		return "UNKNOWN"
	}
}
