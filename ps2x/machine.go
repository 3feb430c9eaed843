// ps2x/machine.go

//go:build atmega || esp || nrf || sam || sifive || stm32 || k210 || nxp || rp2040 || rp2350

package ps2x

import (
	"errors"
	"runtime/interrupt"
	"time"

	"machine"
)

var (
	// ErrPinInUse means another Keyboard already owns that clock pin.
	ErrPinInUse = errors.New("ps2x: clock pin already owned by a keyboard")
	// ErrBadPins means the config named the same pin for data and clock.
	ErrBadPins = errors.New("ps2x: data and clock must be distinct pins")
)

// Config selects the two PS/2 lines and the driver options.
type Config struct {
	// Data and Clock are the open-collector lines. Clock must be a pin
	// the board routes to a falling-edge interrupt source.
	Data  machine.Pin
	Clock machine.Pin

	// BufferSize is the scan-code buffer capacity; 0 means 16. A full
	// keystroke is 2–3 bytes (a few rare keys more), so size this to
	// how rarely the foreground gets around to ReadScanCode.
	BufferSize int

	// Diagnostics receives protocol events; nil means discard them.
	Diagnostics Diagnostics
}

// Pin interrupts deliver no context pointer on most ports, so live
// instances are tracked per clock pin. Mutated under an
// interrupts-disabled section; also enforces exclusive pin ownership.
var activeKeyboards = map[machine.Pin]*Keyboard{}

// New builds a Keyboard on the given pins and claims them. Call Begin
// on the result to start the protocol, and Close to give the pins back.
func New(cfg Config) (*Keyboard, error) {
	if cfg.Data == cfg.Clock {
		return nil, ErrBadPins
	}
	hw := &machineHardware{data: cfg.Data, clock: cfg.Clock}
	k := newKeyboard(hw, cfg.BufferSize, cfg.Diagnostics)

	var err error
	state := interrupt.Disable()
	if _, taken := activeKeyboards[cfg.Clock]; taken {
		err = ErrPinInUse
	} else {
		activeKeyboards[cfg.Clock] = k
	}
	interrupt.Restore(state)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// Close detaches the clock interrupt, releases both lines and gives up
// pin ownership. The Keyboard must not be used afterwards.
func (k *Keyboard) Close() error {
	hw := k.hw.(*machineHardware)
	hw.DetachClockInterrupt()
	hw.ReleaseData()
	hw.ReleaseClock()

	state := interrupt.Disable()
	delete(activeKeyboards, hw.clock)
	interrupt.Restore(state)
	return nil
}

// machineHardware implements Hardware on the TinyGo machine port.
// Open-collector emulation per line: input-with-pull-up to release,
// push-pull output driven low to assert.
type machineHardware struct {
	data  machine.Pin
	clock machine.Pin
}

func (h *machineHardware) ReleaseData() {
	h.data.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

func (h *machineHardware) DriveDataLow() {
	h.data.Configure(machine.PinConfig{Mode: machine.PinOutput})
	h.data.Low()
}

func (h *machineHardware) DataHigh() bool { return h.data.Get() }

func (h *machineHardware) ReleaseClock() {
	h.clock.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

func (h *machineHardware) DriveClockLow() {
	h.clock.Configure(machine.PinConfig{Mode: machine.PinOutput})
	h.clock.Low()
}

func (h *machineHardware) ClockHigh() bool { return h.clock.Get() }

func (h *machineHardware) AttachClockInterrupt(handler func()) {
	_ = h.clock.SetInterrupt(machine.PinFalling, func(machine.Pin) { handler() })
}

func (h *machineHardware) DetachClockInterrupt() {
	var zero machine.PinChange
	_ = h.clock.SetInterrupt(zero, nil)
}

func (h *machineHardware) Micros() uint32 {
	return uint32(time.Now().UnixNano() / int64(time.Microsecond))
}

func (h *machineHardware) Millis() uint32 {
	return uint32(time.Now().UnixNano() / int64(time.Millisecond))
}

func (h *machineHardware) DelayMicros(us uint32) {
	start := h.Micros()
	for h.Micros()-start < us {
	}
}

func (h *machineHardware) Critical(fn func()) {
	state := interrupt.Disable()
	fn()
	interrupt.Restore(state)
}
