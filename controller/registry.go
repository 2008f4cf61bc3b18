package controller

import (
	"fmt"
	"sort"

	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// TargetInfo is the controller's record of a target on the bus.
type TargetInfo struct {
	Address uint8
	BCR     protocol.BCR
}

type registry map[uint8]*TargetInfo

func newRegistry() registry {
	return make(registry)
}

func validAddress(addr uint8) bool {
	return addr != 0 && addr < protocol.ReservedByte
}

// AddTarget registers a target. Addresses must be unique.
func (c *Controller) AddTarget(addr uint8, bcr protocol.BCR) error {
	if !validAddress(addr) {
		return fmt.Errorf("address 0x%02X: %w", addr, pkg.ErrInvalidParameter)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.registry[addr]; ok {
		return fmt.Errorf("address 0x%02X: %w", addr, pkg.ErrDuplicateTarget)
	}
	c.registry[addr] = &TargetInfo{Address: addr, BCR: bcr}
	pkg.LogDebug(pkg.ComponentController, "target registered", pkg.KeyAddress, addr, "bcr", uint8(bcr))
	return nil
}

// RemoveTarget forgets a target.
func (c *Controller) RemoveTarget(addr uint8) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.registry[addr]; !ok {
		return fmt.Errorf("address 0x%02X: %w", addr, pkg.ErrUnknownTarget)
	}
	delete(c.registry, addr)
	return nil
}

// Target returns the registry entry for addr.
func (c *Controller) Target(addr uint8) (TargetInfo, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	t, ok := c.registry[addr]
	if !ok {
		return TargetInfo{}, false
	}
	return *t, true
}

// Targets returns every registered target ordered by address.
func (c *Controller) Targets() []TargetInfo {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]TargetInfo, 0, len(c.registry))
	for _, t := range c.registry {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (c *Controller) updateBCR(addr uint8, fn func(protocol.BCR) protocol.BCR) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	t, ok := c.registry[addr]
	if !ok {
		return fmt.Errorf("address 0x%02X: %w", addr, pkg.ErrUnknownTarget)
	}
	t.BCR = fn(t.BCR)
	return nil
}

func (c *Controller) setFlag(addr uint8, f protocol.BCR, on bool) error {
	return c.updateBCR(addr, func(b protocol.BCR) protocol.BCR { return b.With(f, on) })
}

// SetSpeedLimitation sets the target's speed-limitation flag.
func (c *Controller) SetSpeedLimitation(addr uint8, on bool) error {
	return c.setFlag(addr, protocol.BCRSpeedLimitation, on)
}

// SetIBICapable sets the target's IBI-capable flag.
func (c *Controller) SetIBICapable(addr uint8, on bool) error {
	return c.setFlag(addr, protocol.BCRIBICapable, on)
}

// SetIBIPayload sets whether the target's IBIs carry an MDB and payload.
func (c *Controller) SetIBIPayload(addr uint8, on bool) error {
	return c.setFlag(addr, protocol.BCRIBIPayload, on)
}

// SetOfflineCapable sets the target's offline-capable flag.
func (c *Controller) SetOfflineCapable(addr uint8, on bool) error {
	return c.setFlag(addr, protocol.BCROfflineCapable, on)
}

// SetVirtualTarget sets the target's virtual-target flag.
func (c *Controller) SetVirtualTarget(addr uint8, on bool) error {
	return c.setFlag(addr, protocol.BCRVirtualTarget, on)
}

// SetAdvancedCapabilities sets the target's advanced-capabilities flag.
func (c *Controller) SetAdvancedCapabilities(addr uint8, on bool) error {
	return c.setFlag(addr, protocol.BCRAdvancedCapabilities, on)
}

// SetRole sets the target's device role.
func (c *Controller) SetRole(addr uint8, r protocol.Role) error {
	return c.updateBCR(addr, func(b protocol.BCR) protocol.BCR { return b.WithRole(r) })
}
