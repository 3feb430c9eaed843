// ps2x/ps2x.go

// Package ps2x implements the host side of the PS/2 keyboard wire
// protocol: an interrupt-driven frame receiver and transmitter on the
// two open-collector lines, a buffered scan-code stream for a polling
// foreground, and the command/response sequencing on top (LEDs, scan
// code sets, typematic, reset and friends).
//
// The keyboard owns the clock. A falling edge arrives every 70–100 µs
// while a frame is on the wire, and the driver's clock-edge handler
// samples the data line on each of them. Keep other interrupt handlers
// short, or set the keyboard up before enabling them: a missed edge is
// a framing error.
//
// The driver is polled. Call ReadScanCode frequently from the
// foreground; it never blocks. The setup commands block the caller for
// up to their timeout (typically 10 ms, up to a second for Reset) and
// must not be called from an interrupt handler.
package ps2x

import (
	"sync/atomic"
	"time"
)

const (
	defaultBufferSize = 16

	// immediateResponseTime is how long the keyboard gets to ack a
	// command byte.
	immediateResponseTime = 10 * time.Millisecond
	startupTimeout        = 750 * time.Millisecond
	resetTimeout          = time.Second

	// inhibitMicros is how long clock is held low before a
	// host-initiated transmission; the protocol floor is 100 µs.
	inhibitMicros = 120

	// resendSettleMicros is how long the line is left alone after a
	// framing failure before interrupting the keyboard with a resend. A
	// full frame takes 700–1200 µs and most failures are detected at the
	// parity or stop bit, so 200 µs clears the tail of the frame.
	resendSettleMicros = 200

	// glitchBitThreshold separates a real corrupt byte from a spurious
	// clock edge: at or below this many bits received, recovery resets
	// the receiver instead of requesting a resend.
	glitchBitThreshold = 3
)

// Keyboard drives one PS/2 keyboard over a data and a clock line. It
// takes exclusive ownership of both pins and of the clock-edge
// interrupt for its lifetime. Construct it with New (on hardware) and
// call Begin before anything else.
type Keyboard struct {
	hw   Hardware
	diag Diagnostics
	buf  *outputBuffer

	// Frame engine state, owned by the clock-edge handler. The
	// foreground reads or resets it only inside critical sections on the
	// recovery path, and loads it in sendByte while the interrupt is
	// detached.
	transmitting    bool
	ioByte          byte
	bitCount        uint8
	parity          uint8 // ones seen so far, mod 2
	lastEdgeMicros  uint32
	failureMicros   uint32
	failureBitCount uint8

	// framingError is a single-bit latch shared between contexts: the
	// handler sets it, the foreground reads-and-clears it. Word-sized
	// and atomic to avoid read-modify-write hazards.
	framingError uint32
}

// newKeyboard wires the protocol engine to a Hardware implementation.
// The hardware constructors in this package and the test harness both
// funnel through here.
func newKeyboard(hw Hardware, bufferSize int, diag Diagnostics) *Keyboard {
	if diag == nil {
		diag = Null{}
	}
	k := &Keyboard{hw: hw, diag: diag}
	k.buf = newOutputBuffer(hw, diag, bufferSize)
	return k
}

// Begin configures both lines as input with pull-up and arms the
// receiver. Call it once, before any other operation.
func (k *Keyboard) Begin() {
	k.hw.ReleaseClock()
	k.hw.ReleaseData()
	k.resetReceiverState()
	k.buf.clear()
	k.hw.AttachClockInterrupt(k.clockEdge)
}

// AwaitStartup waits for the keyboard's power-on self-test report. A
// zero timeout means the 750 ms default, which covers the usual BAT
// time. Returns false if the report was a failure or never came; a
// failure is also recorded as a StartupFailure diagnostic.
func (k *Keyboard) AwaitStartup(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = startupTimeout
	}
	return k.waitForSelfTest(timeout)
}

// Reset sends the reset command and waits for the keyboard to pass its
// self-test. A zero timeout means the 1 s default. This can genuinely
// take most of a second on real hardware.
func (k *Keyboard) Reset(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = resetTimeout
	}
	k.buf.clear()
	if !k.sendCommand(cmdReset) {
		return false
	}
	return k.waitForSelfTest(timeout)
}

func (k *Keyboard) waitForSelfTest(timeout time.Duration) bool {
	switch k.waitResponse(SelfTestPassed, timeout) {
	case SelfTestPassed:
		k.buf.pop()
		return true
	case SelfTestFailed, SelfTestFailedAlt:
		k.buf.pop()
		k.diag.StartupFailure()
	}
	return false
}

// ReadScanCode returns the oldest byte the keyboard has sent, None if
// there is nothing queued, or Garbled if a framing error was detected
// and recovery was initiated. It never blocks; poll it frequently.
//
// A stray self-test report (the keyboard was power-cycled independently
// of the host) is consumed here rather than surfaced, so clients only
// ever see scan-code traffic.
func (k *Keyboard) ReadScanCode() KeyboardOutput {
	for {
		code := k.buf.pop()
		if code == None {
			if atomic.LoadUint32(&k.framingError) != 0 {
				return k.recoverFraming()
			}
			return None
		}
		switch code {
		case SelfTestPassed:
			k.diag.ReceivedByte(byte(code))
			continue
		case SelfTestFailed, SelfTestFailedAlt:
			k.diag.StartupFailure()
			continue
		}
		k.diag.ReceivedByte(byte(code))
		return code
	}
}

// recoverFraming is the foreground half of framing-error recovery. The
// receiver latched an error and the buffer is dry; decide between a
// resend request and a glitch reset.
func (k *Keyboard) recoverFraming() KeyboardOutput {
	var failedAt uint32
	var bits uint8
	k.hw.Critical(func() {
		failedAt = k.failureMicros
		bits = k.failureBitCount
	})

	// The keyboard may still be clocking out the tail of the bad frame;
	// interrupting it now could trigger a replay of a byte we already
	// hold. Let the line settle first.
	if k.hw.Micros()-failedAt < resendSettleMicros {
		return None
	}

	if bits > glitchBitThreshold {
		// A real byte went bad in transit; ask for it again. The
		// direction switch clears the latch and the buffer, and the
		// receiver is re-armed when the resend frame completes.
		k.diag.SentByte(byte(cmdResend))
		k.sendByte(byte(cmdResend))
	} else {
		// Too few bits to have been a real transmission; write it off
		// as a glitch on the clock line.
		k.hw.Critical(func() {
			k.resetReceiverState()
		})
		k.diag.ClockLineGlitch(bits)
	}
	return Garbled
}

// LinesIdle reports whether both lines currently read high, i.e. the
// bus is released and quiet. Useful in bring-up tools; a stuck-low
// clock usually means a wiring or level-shifter problem.
func (k *Keyboard) LinesIdle() bool {
	return k.hw.ClockHigh() && k.hw.DataHigh()
}
