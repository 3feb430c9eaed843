// ps2x/commands.go

package ps2x

import (
	"sync/atomic"
	"time"
)

// waitResponse busy-polls the output buffer for up to timeout and
// returns the oldest byte without consuming it. It returns Garbled if
// the buffer is dry and a framing error is latched (the latch is
// cleared), and None on timeout.
//
// expected is only used for the NoResponse diagnostic; pass None when
// any byte will do.
func (k *Keyboard) waitResponse(expected KeyboardOutput, timeout time.Duration) KeyboardOutput {
	start := k.hw.Millis()
	stop := start + uint32(timeout/time.Millisecond)
	for {
		code := k.buf.peek()
		if code != None {
			return code
		}
		if atomic.LoadUint32(&k.framingError) != 0 {
			atomic.StoreUint32(&k.framingError, 0)
			return Garbled
		}
		now := k.hw.Millis()
		// The millisecond counter wraps; the window is still open if we
		// sit before the stop mark, or the stop mark wrapped past zero
		// and we haven't.
		if now < stop || (stop < start && start <= now) {
			continue
		}
		k.diag.NoResponse(expected)
		return None
	}
}

// expectResponse waits for the next byte and consumes it only if it is
// the expected one; a different byte stays queued for the caller.
func (k *Keyboard) expectResponse(expected KeyboardOutput, timeout time.Duration) bool {
	got := k.waitResponse(expected, timeout)
	switch {
	case got == None || got == Garbled:
		return false
	case got != expected:
		k.diag.IncorrectResponse(got, expected)
		return false
	default:
		k.buf.pop()
		return true
	}
}

// readReplyByte waits for and consumes one reply byte.
func (k *Keyboard) readReplyByte(timeout time.Duration) (byte, bool) {
	got := k.waitResponse(None, timeout)
	if !got.IsByte() {
		return 0, false
	}
	k.buf.pop()
	return byte(got), true
}

// sendData transmits one byte and requires the keyboard's ack. On
// failure the receiver is re-armed so the stream can continue.
func (k *Keyboard) sendData(b byte) bool {
	k.diag.SentByte(b)
	k.sendByte(b)
	if !k.expectResponse(Ack, immediateResponseTime) {
		k.rearmReceiver()
		return false
	}
	return true
}

// sendCommand sends a command byte and its arguments, aborting on the
// first byte the keyboard does not ack.
func (k *Keyboard) sendCommand(cmd commandCode, args ...byte) bool {
	if !k.sendData(byte(cmd)) {
		return false
	}
	for _, a := range args {
		if !k.sendData(a) {
			return false
		}
	}
	return true
}

// SendLedStatus lights the keyboard LEDs per mask: bit 0 scroll lock,
// bit 1 num lock, bit 2 caps lock.
func (k *Keyboard) SendLedStatus(leds KeyboardLeds) bool {
	return k.sendCommand(cmdSetLeds, byte(leds&LedAll))
}

// ReadID reads the keyboard's two-byte identifier, composed MSB first —
// 0xab83 for everything that calls itself a keyboard. Returns 0xffff if
// either byte goes missing.
func (k *Keyboard) ReadID() uint16 {
	if !k.sendCommand(cmdReadID) {
		return 0xffff
	}
	msb, ok := k.readReplyByte(immediateResponseTime)
	if !ok {
		return 0xffff
	}
	lsb, ok := k.readReplyByte(immediateResponseTime)
	if !ok {
		return 0xffff
	}
	return uint16(msb)<<8 | uint16(lsb)
}

// GetScanCodeSet asks which scan-code set the keyboard is using.
func (k *Keyboard) GetScanCodeSet() ScanCodeSet {
	if !k.sendCommand(cmdSetScanCodeSet, 0) {
		return ScanCodeSetUnknown
	}
	b, ok := k.readReplyByte(immediateResponseTime)
	if !ok {
		return ScanCodeSetUnknown
	}
	switch s := ScanCodeSet(b); s {
	case ScanCodeSetPCXT, ScanCodeSetPCAT, ScanCodeSetPS2:
		return s
	}
	return ScanCodeSetUnknown
}

// SetScanCodeSet switches the keyboard to set 1, 2 or 3.
func (k *Keyboard) SetScanCodeSet(s ScanCodeSet) bool {
	return k.sendCommand(cmdSetScanCodeSet, byte(s))
}

// Echo verifies the keyboard is alive: it answers the echo byte with an
// echo byte directly, no ack involved.
func (k *Keyboard) Echo() bool {
	k.diag.SentByte(byte(cmdEcho))
	k.sendByte(byte(cmdEcho))
	if !k.expectResponse(EchoReply, immediateResponseTime) {
		k.rearmReceiver()
		return false
	}
	return true
}

// SetTypematicRateAndDelay configures key repeat: rate in bits 0–4,
// start delay in bits 5–6, bit 7 zero.
func (k *Keyboard) SetTypematicRateAndDelay(rate TypematicRate, delay TypematicStartDelay) bool {
	combined := byte(rate)&0x1f | byte(delay&0x3)<<5
	return k.sendCommand(cmdSetTypematicRate, combined)
}

// Enable resumes scanning after Disable (or after one of the per-key
// commands, which leave the keyboard disabled).
func (k *Keyboard) Enable() bool { return k.sendCommand(cmdEnable) }

// Disable stops the keyboard from scanning; it still answers commands.
func (k *Keyboard) Disable() bool { return k.sendCommand(cmdDisable) }

// ResetToDefaults restores the default scan-code set, typematic rate
// and start delay.
func (k *Keyboard) ResetToDefaults() bool { return k.sendCommand(cmdUseDefaultSettings) }

// The break/typematic selections below only have an effect in scan-code
// set 3; the other sets ack them and carry on regardless.

// EnableBreakAndTypematic restores break codes and typematic repeat for
// all keys.
func (k *Keyboard) EnableBreakAndTypematic() bool {
	return k.sendCommand(cmdEnableBreakAndTypematicForAll)
}

// DisableBreakAndTypematic stops break codes and typematic repeat for
// all keys.
func (k *Keyboard) DisableBreakAndTypematic() bool {
	return k.sendCommand(cmdDisableBreakAndTypematicForAll)
}

// DisableBreakCodes stops break codes for all keys.
func (k *Keyboard) DisableBreakCodes() bool {
	return k.sendCommand(cmdDisableBreaksForAll)
}

// DisableTypematic stops typematic repeat for all keys.
func (k *Keyboard) DisableTypematic() bool {
	return k.sendCommand(cmdDisableTypematicForAll)
}

// DisableBreakCodesForKeys stops break codes for the listed set-3 scan
// codes. The keyboard is left disabled afterwards; call Enable.
func (k *Keyboard) DisableBreakCodesForKeys(keys []byte) bool {
	return k.sendCommand(cmdDisableBreaksForSpecific, keys...)
}

// DisableTypematicForKeys stops typematic repeat for the listed set-3
// scan codes. The keyboard is left disabled afterwards; call Enable.
func (k *Keyboard) DisableTypematicForKeys(keys []byte) bool {
	return k.sendCommand(cmdDisableTypematicForSpecific, keys...)
}

// DisableBreakAndTypematicForKeys stops both for the listed set-3 scan
// codes. The keyboard is left disabled afterwards; call Enable.
func (k *Keyboard) DisableBreakAndTypematicForKeys(keys []byte) bool {
	return k.sendCommand(cmdDisableBreakAndTypematicForSpecific, keys...)
}
