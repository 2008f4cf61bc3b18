package recovery

import (
	"sync"

	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// Device is a target storage holding recovery registers. Written frames
// update a register; a two-byte request frame selects the register the
// next private read returns, framed as [length lo, length hi, data...,
// PEC].
type Device struct {
	addr uint8

	mutex     sync.Mutex
	regs      map[Command][]byte
	frame     []byte
	resp      []byte
	pos       int
	pecErrors int
	badPEC    bool
}

// NewDevice returns a device answering as the target at addr.
func NewDevice(addr uint8) *Device {
	return &Device{
		addr: addr,
		regs: make(map[Command][]byte),
	}
}

// Write implements target.Storage.
func (d *Device) Write(b byte) {
	d.mutex.Lock()
	d.frame = append(d.frame, b)
	d.mutex.Unlock()
}

// EndWrite parses the frame received since the previous EndWrite.
func (d *Device) EndWrite() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	f := d.frame
	d.frame = nil

	switch {
	case len(f) == 2:
		d.request(Command(f[0]), f[1])
	case len(f) >= 4:
		d.update(f)
	default:
		pkg.LogWarn(pkg.ComponentRecovery, "malformed frame", pkg.KeyAddress, d.addr, "len", len(f))
	}
}

func (d *Device) request(cmd Command, pec byte) {
	d.resp, d.pos = nil, 0
	if pec != protocol.PEC(d.addr, false, []byte{byte(cmd)}) {
		d.pecErrors++
		pkg.LogWarn(pkg.ComponentRecovery, "request PEC mismatch", pkg.KeyAddress, d.addr, "command", cmd)
		return
	}
	r := frame(cmd, d.regs[cmd])[1:]
	p := protocol.PEC(d.addr, true, r)
	if d.badPEC {
		p = CorruptPEC(p)
	}
	d.resp = append(r, p)
	pkg.LogDebug(pkg.ComponentRecovery, "response ready", pkg.KeyAddress, d.addr, "command", cmd, "len", len(r)-2)
}

func (d *Device) update(f []byte) {
	cmd := Command(f[0])
	n := int(f[1]) | int(f[2])<<8
	if len(f) != 3+n+1 {
		pkg.LogWarn(pkg.ComponentRecovery, "frame length mismatch",
			pkg.KeyAddress, d.addr,
			"command", cmd,
			"length", n,
			"received", len(f)-4)
		return
	}
	if f[len(f)-1] != protocol.PEC(d.addr, false, f[:len(f)-1]) {
		d.pecErrors++
		pkg.LogWarn(pkg.ComponentRecovery, "write PEC mismatch", pkg.KeyAddress, d.addr, "command", cmd)
		return
	}
	d.regs[cmd] = append([]byte(nil), f[3:3+n]...)
	pkg.LogDebug(pkg.ComponentRecovery, "register written", pkg.KeyAddress, d.addr, "command", cmd, "len", n)
}

// Read returns the next response byte, or 0xFF once the response is spent.
func (d *Device) Read() byte {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.pos >= len(d.resp) {
		return 0xFF
	}
	b := d.resp[d.pos]
	d.pos++
	return b
}

// Available returns the response bytes not yet read.
func (d *Device) Available() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.resp) - d.pos
}

// Reset clears every register and any pending response.
func (d *Device) Reset() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	clear(d.regs)
	d.frame, d.resp, d.pos = nil, nil, 0
}

// Register returns the contents of cmd.
func (d *Device) Register(cmd Command) ([]byte, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	v, ok := d.regs[cmd]
	return append([]byte(nil), v...), ok
}

// SetRegister stores data as the contents of cmd.
func (d *Device) SetRegister(cmd Command, data []byte) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.regs[cmd] = append([]byte(nil), data...)
}

// PECErrors returns how many received frames failed their PEC check.
func (d *Device) PECErrors() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.pecErrors
}

// CorruptResponsePEC makes subsequent responses carry a wrong PEC.
func (d *Device) CorruptResponsePEC(on bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.badPEC = on
}
