// ps2x/isr.go

package ps2x

import "sync/atomic"

// clockEdge is the one handler installed on the falling edge of the
// clock line. The same two wires carry traffic in both directions, so
// it dispatches on the current transfer direction.
func (k *Keyboard) clockEdge() {
	if k.transmitting {
		k.writeEdge()
	} else {
		k.readEdge()
	}
}

// readEdge assembles one 11-bit device→host frame, one bit per falling
// edge: start (low), eight data bits LSB first, odd parity, stop
// (high). A valid frame's byte goes to the output buffer; any framing
// violation latches the error flag and records the failing edge, and
// the byte is dropped.
func (k *Keyboard) readEdge() {
	bit := uint8(0)
	if k.hw.DataHigh() {
		bit = 1
	}
	now := k.hw.Micros()
	k.lastEdgeMicros = now

	switch k.bitCount {
	case 0:
		if bit == 0 {
			// A clean start bit also retires any error latched by a
			// previous frame; the byte it garbled is gone either way.
			atomic.StoreUint32(&k.framingError, 0)
		} else {
			k.diag.PacketDidNotStartWithZero()
			k.latchFailure(now)
		}
		k.bitCount++
		k.parity = 0
	case 1, 2, 3, 4, 5, 6, 7, 8:
		if bit == 1 {
			k.ioByte |= 1 << (k.bitCount - 1)
			k.parity ^= 1
		}
		k.bitCount++
	case 9:
		// Odd parity: the parity bit complements the data ones-count.
		if bit != k.parity^1 {
			k.diag.ParityError()
			k.latchFailure(now)
		}
		k.bitCount++
	case 10:
		if bit == 0 {
			k.diag.PacketDidNotEndWithOne()
			k.latchFailure(now)
		}
		if atomic.LoadUint32(&k.framingError) == 0 {
			k.buf.push(k.ioByte)
		}
		k.bitCount = 0
		k.ioByte = 0
	}
}

// writeEdge emits one 12-bit host→device frame while armed. The host
// held data low (the start bit) before releasing the clock, so edge 0
// is the device sampling it; edges 1..9 drive the payload and parity,
// edge 10 hands the line back, and edge 11 samples the device's ack.
func (k *Keyboard) writeEdge() {
	switch k.bitCount {
	case 0:
		k.bitCount++
	case 1, 2, 3, 4, 5, 6, 7, 8:
		bit := (k.ioByte >> (k.bitCount - 1)) & 1
		k.driveData(bit)
		k.parity ^= bit
		k.bitCount++
	case 9:
		k.driveData(k.parity ^ 1)
		k.bitCount++
	case 10:
		k.hw.ReleaseData()
		k.bitCount++
	case 11:
		if k.hw.DataHigh() {
			// The device did not ack the frame. There is no outbound
			// queue to replay from; the command layer will notice the
			// missing response and report failure.
			k.diag.SendFrameError()
		}
		k.rearmReceiver()
	}
}

// driveData puts one bit on the open-collector data line: low is
// driven, high is released to the pull-up.
func (k *Keyboard) driveData(bit uint8) {
	if bit == 0 {
		k.hw.DriveDataLow()
	} else {
		k.hw.ReleaseData()
	}
}

func (k *Keyboard) latchFailure(now uint32) {
	k.failureBitCount = k.bitCount
	k.failureMicros = now
	atomic.StoreUint32(&k.framingError, 1)
}

// resetReceiverState clears the frame engine back to "waiting for a
// start bit". Callers outside the interrupt handler must hold a
// critical section (or have the clock interrupt detached).
func (k *Keyboard) resetReceiverState() {
	k.transmitting = false
	k.bitCount = 0
	k.ioByte = 0
	k.parity = 0
	atomic.StoreUint32(&k.framingError, 0)
}

// rearmReceiver flips the engine back to listening after a transmit
// frame ends (or is abandoned). Runs in the interrupt handler on the
// ack edge and in the foreground when a command got no response.
func (k *Keyboard) rearmReceiver() {
	k.hw.Critical(func() {
		k.resetReceiverState()
		k.buf.clearLocked()
	})
}

// sendByte performs the host-to-device direction switch and arms the
// transmitter with b; the keyboard's own clock then drives writeEdge.
//
// The sequence: take the interrupt down, hold clock low past the 100 µs
// inhibit floor, load the transmit state, reinstall the handler, assert
// request-to-send by pulling data low, and finally release clock. From
// that release the keyboard generates the edges.
func (k *Keyboard) sendByte(b byte) {
	k.hw.DetachClockInterrupt()

	k.hw.DriveClockLow()
	k.hw.DelayMicros(inhibitMicros)

	k.ioByte = b
	k.bitCount = 0
	k.parity = 0
	k.transmitting = true
	atomic.StoreUint32(&k.framingError, 0)
	k.buf.clear()

	k.hw.AttachClockInterrupt(k.clockEdge)

	k.hw.DriveDataLow()
	k.hw.ReleaseClock()
}
