// ps2x/hal.go

package ps2x

// Hardware is the capability set the protocol engine consumes from its
// host environment. The two PS/2 lines are open collector: a line is
// either released (input with pull-up, reads high unless the device
// drives it) or actively driven low.
//
// The clock pin must be routed to an interrupt source that can fire on a
// falling edge. From the interrupt context the driver calls DataHigh and
// Micros, DriveDataLow and ReleaseData while transmitting a frame, and
// Critical when it re-arms the receiver after the frame's ack bit.
type Hardware interface {
	// ReleaseData configures the data line as input with pull-up.
	ReleaseData()
	// DriveDataLow drives the data line low.
	DriveDataLow()
	// DataHigh samples the data line. It must be fast: the keyboard's
	// data-valid window after a falling clock edge is ~30 µs.
	DataHigh() bool

	// ReleaseClock configures the clock line as input with pull-up.
	ReleaseClock()
	// DriveClockLow drives the clock line low, inhibiting the keyboard.
	DriveClockLow()
	// ClockHigh samples the clock line.
	ClockHigh() bool

	// AttachClockInterrupt installs handler to run on every falling edge
	// of the clock line. DetachClockInterrupt removes it.
	AttachClockInterrupt(handler func())
	DetachClockInterrupt()

	// Micros and Millis are monotonic free-running counters; callers
	// compare them wraparound-safely.
	Micros() uint32
	Millis() uint32

	// DelayMicros busy-waits for short delays in the 100 µs range.
	DelayMicros(us uint32)

	// Critical runs fn with interrupts masked. Sections are short and
	// bounded (a handful of loads and stores).
	Critical(fn func())
}
