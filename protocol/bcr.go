package protocol

// BCR is the Bus Characteristics Register a target reports.
type BCR uint8

// BCR bit fields.
const (
	BCRSpeedLimitation      BCR = 1 << 0
	BCRIBICapable           BCR = 1 << 1
	BCRIBIPayload           BCR = 1 << 2 // IBI carries an MDB and optional payload
	BCROfflineCapable       BCR = 1 << 3
	BCRVirtualTarget        BCR = 1 << 4
	BCRAdvancedCapabilities BCR = 1 << 5
)

const (
	bcrRoleShift     = 6
	bcrRoleMask  BCR = 3 << bcrRoleShift
)

// Role is the device role held in BCR[7:6].
type Role uint8

// Device roles.
const (
	RoleTarget            Role = 0
	RoleControllerCapable Role = 1
)

// Has reports whether every bit of f is set.
func (b BCR) Has(f BCR) bool {
	return b&f == f
}

// With returns b with f set or cleared.
func (b BCR) With(f BCR, on bool) BCR {
	if on {
		return b | f
	}
	return b &^ f
}

// Role returns the device role field.
func (b BCR) Role() Role {
	return Role((b & bcrRoleMask) >> bcrRoleShift)
}

// WithRole returns b with the device role field replaced.
func (b BCR) WithRole(r Role) BCR {
	return b&^bcrRoleMask | BCR(r&3)<<bcrRoleShift
}
