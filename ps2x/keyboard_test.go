// ps2x/keyboard_test.go

package ps2x

import (
	"testing"
	"time"
)

func TestReceiver_AssemblesValidFrames(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(16, &diag)

	in := []byte{0x1c, 0xf0, 0x1c, 0x00, 0xff, 0x55}
	for _, b := range in {
		s.deliverByte(b)
	}
	for i, want := range in {
		got := k.ReadScanCode()
		if got != KeyboardOutput(want) {
			t.Fatalf("scan code %d: got %#x want %#x", i, got, want)
		}
	}
	if got := k.ReadScanCode(); got != None {
		t.Fatalf("after drain: got %#x want None", got)
	}
	if diag.startErrs+diag.parityErrs+diag.stopErrs != 0 {
		t.Fatalf("unexpected framing diagnostics: %+v", diag)
	}
}

func TestReceiver_FramingErrors(t *testing.T) {
	cases := []struct {
		name    string
		corrupt func(frame) frame
		failOn  int // edge index (1-based) whose timestamp is recorded
	}{
		{"start bit high", corruptStart, 1},
		{"parity inverted", corruptParity, 10},
		{"stop bit low", corruptStop, 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var diag countingDiag
			k, s := newTestKeyboard(16, &diag)

			before := s.now
			s.clockFrameToHost(tc.corrupt(frameFor(0x2d)))

			if got := k.buf.peek(); got != None {
				t.Fatalf("corrupt frame reached the buffer: %#x", got)
			}
			if k.framingError == 0 {
				t.Fatal("framing error not latched")
			}
			want := uint32(before + uint64(tc.failOn)*s.edgePeriod)
			if k.failureMicros != want {
				t.Fatalf("failure timestamp: got %d want %d", k.failureMicros, want)
			}
		})
	}
}

func TestReadScanCode_ParityErrorRecovery(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(16, &diag)

	s.kbd.lastToHost = 0x1c
	s.clockFrameToHost(corruptParity(frameFor(0x1c)))

	// Too soon after the failure: the keyboard may still be mid-frame,
	// so the driver must not interrupt it yet.
	if got := k.ReadScanCode(); got != None {
		t.Fatalf("read within settle window: got %#x want None", got)
	}

	s.now += 250
	if got := k.ReadScanCode(); got != Garbled {
		t.Fatalf("read after settle: got %#x want Garbled", got)
	}
	if n := len(s.kbd.received); n == 0 || s.kbd.received[n-1] != 0xfe {
		t.Fatalf("resend not requested: device received %#x", s.kbd.received)
	}

	// The keyboard answers the resend with the previous byte.
	s.pump()
	if got := k.ReadScanCode(); got != 0x1c {
		t.Fatalf("after resend: got %#x want 0x1c", got)
	}
	if diag.parityErrs != 1 {
		t.Fatalf("parity diagnostics: got %d want 1", diag.parityErrs)
	}
}

func TestReadScanCode_GlitchResetsReceiver(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(16, &diag)

	s.spuriousEdge() // start-bit failure, 0 bits of real data
	s.now += 250

	if got := k.ReadScanCode(); got != Garbled {
		t.Fatalf("read after glitch: got %#x want Garbled", got)
	}
	if len(s.kbd.received) != 0 {
		t.Fatalf("glitch must not trigger a resend, device received %#x", s.kbd.received)
	}
	if len(diag.glitches) != 1 || diag.glitches[0] != 0 {
		t.Fatalf("glitch diagnostics: got %v want [0]", diag.glitches)
	}

	// The receiver is back in frame and picks up the next byte cleanly.
	s.deliverByte(0x34)
	if got := k.ReadScanCode(); got != 0x34 {
		t.Fatalf("read after recovery: got %#x want 0x34", got)
	}
}

func TestReadScanCode_ConsumesStrayBAT(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	s.deliverByte(0xaa)
	s.deliverByte(0x1c)
	if got := k.ReadScanCode(); got != 0x1c {
		t.Fatalf("got %#x want 0x1c past the stray self-test report", got)
	}

	// A lone report with nothing behind it reads as an empty queue.
	s.deliverByte(0xaa)
	if got := k.ReadScanCode(); got != None {
		t.Fatalf("lone report: got %#x want None", got)
	}
}

func TestReadScanCode_ReportsSelfTestFailure(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(16, &diag)

	s.deliverByte(0xfc)
	if got := k.ReadScanCode(); got != None {
		t.Fatalf("got %#x want None", got)
	}
	if diag.startupFail != 1 {
		t.Fatalf("startup failures: got %d want 1", diag.startupFail)
	}
}

func TestBufferOverflow_EndToEnd(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(2, &diag)

	s.deliverByte(0x1c)
	s.deliverByte(0x32)
	s.deliverByte(0x23)

	if got := k.ReadScanCode(); got != 0x32 {
		t.Fatalf("first read: got %#x want 0x32", got)
	}
	if got := k.ReadScanCode(); got != 0x23 {
		t.Fatalf("second read: got %#x want 0x23", got)
	}
	if diag.overflow != 1 {
		t.Fatalf("overflow events: got %d want 1", diag.overflow)
	}
}

func TestEcho_RoundTrip(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	if !k.Echo() {
		t.Fatal("echo failed")
	}
	if n := len(s.kbd.received); n != 1 || s.kbd.received[0] != 0xee {
		t.Fatalf("device received %#x, want [0xee]", s.kbd.received)
	}
}

func TestEcho_SilentKeyboard(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(16, &diag)

	s.kbd.mute = true
	if k.Echo() {
		t.Fatal("echo against a silent keyboard succeeded")
	}
	if diag.noResponse != 1 {
		t.Fatalf("no-response diagnostics: got %d want 1", diag.noResponse)
	}

	// The receiver was re-armed; normal traffic flows again.
	s.kbd.mute = false
	s.deliverByte(0x29)
	if got := k.ReadScanCode(); got != 0x29 {
		t.Fatalf("read after recovery: got %#x want 0x29", got)
	}
}

func TestReadID(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	if id := k.ReadID(); id != 0xab83 {
		t.Fatalf("id: got %#x want 0xab83", id)
	}
	if n := len(s.kbd.received); n != 1 || s.kbd.received[0] != 0xf2 {
		t.Fatalf("device received %#x, want [0xf2]", s.kbd.received)
	}
}

func TestReadID_SilentKeyboard(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	s.kbd.mute = true
	if id := k.ReadID(); id != 0xffff {
		t.Fatalf("id: got %#x want 0xffff", id)
	}
}

func TestSendLedStatus(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(16, &diag)

	if !k.SendLedStatus(LedCapsLock | LedNumLock) {
		t.Fatal("set leds failed")
	}
	if s.kbd.ledMask != 0x06 {
		t.Fatalf("led mask: got %#x want 0x06", s.kbd.ledMask)
	}
	if len(diag.sent) != 2 || diag.sent[0] != 0xed || diag.sent[1] != 0x06 {
		t.Fatalf("sent-byte diagnostics: got %#x", diag.sent)
	}
}

func TestCommand_ResendReplyFailsAck(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(16, &diag)

	s.kbd.nackNext = true
	if k.SendLedStatus(LedAll) {
		t.Fatal("command succeeded despite resend reply")
	}
	if diag.incorrect != 1 {
		t.Fatalf("incorrect-response diagnostics: got %d want 1", diag.incorrect)
	}
	if got := k.ReadScanCode(); got != None {
		t.Fatalf("queue not consistent after failure: got %#x", got)
	}
}

func TestTransmit_MissingLineAck(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(16, &diag)

	s.noAck = true
	s.kbd.mute = true
	if k.SendLedStatus(LedAll) {
		t.Fatal("command succeeded with no line ack and no response")
	}
	if diag.sendFrame == 0 {
		t.Fatal("send-frame-error diagnostic not emitted")
	}
}

func TestAwaitStartup(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	s.kbd.reply(0xaa)
	if !k.AwaitStartup(0) {
		t.Fatal("startup not seen")
	}

	// The report must have been consumed.
	if got := k.ReadScanCode(); got != None {
		t.Fatalf("report left queued: got %#x", got)
	}
}

func TestAwaitStartup_SelfTestFailed(t *testing.T) {
	var diag countingDiag
	k, s := newTestKeyboard(16, &diag)

	s.kbd.reply(0xfc)
	if k.AwaitStartup(50 * time.Millisecond) {
		t.Fatal("failed self-test reported as success")
	}
	if diag.startupFail != 1 {
		t.Fatalf("startup failures: got %d want 1", diag.startupFail)
	}
}

func TestReset(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	if !k.Reset(0) {
		t.Fatal("reset failed")
	}
	if n := len(s.kbd.received); n != 1 || s.kbd.received[0] != 0xff {
		t.Fatalf("device received %#x, want [0xff]", s.kbd.received)
	}
}

func TestScanCodeSet_GetAndSet(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	if got := k.GetScanCodeSet(); got != ScanCodeSetPCAT {
		t.Fatalf("get: got %d want %d", got, ScanCodeSetPCAT)
	}
	if !k.SetScanCodeSet(ScanCodeSetPS2) {
		t.Fatal("set failed")
	}
	if s.kbd.scanSet != 3 {
		t.Fatalf("device scan set: got %d want 3", s.kbd.scanSet)
	}
	if got := k.GetScanCodeSet(); got != ScanCodeSetPS2 {
		t.Fatalf("get after set: got %d want %d", got, ScanCodeSetPS2)
	}
}

func TestSetTypematicRateAndDelay_ByteLayout(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	if !k.SetTypematicRateAndDelay(RateDefault, Delay750ms) {
		t.Fatal("set typematic failed")
	}
	// Rate in bits 0–4, delay in bits 5–6, bit 7 clear.
	if want := byte(0x0b | 2<<5); s.kbd.typematic != want {
		t.Fatalf("typematic byte: got %#x want %#x", s.kbd.typematic, want)
	}
}

func TestPerKeyCommands(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	if !k.DisableBreakCodesForKeys([]byte{0x1c, 0x32}) {
		t.Fatal("per-key disable failed")
	}
	want := []byte{0xfb, 0x1c, 0x32}
	if len(s.kbd.received) != len(want) {
		t.Fatalf("device received %#x, want %#x", s.kbd.received, want)
	}
	for i := range want {
		if s.kbd.received[i] != want[i] {
			t.Fatalf("device received %#x, want %#x", s.kbd.received, want)
		}
	}
	if !k.Enable() {
		t.Fatal("re-enable failed")
	}
}

func TestSimpleCommands(t *testing.T) {
	k, _ := newTestKeyboard(16, nil)

	for name, op := range map[string]func() bool{
		"enable":                      k.Enable,
		"disable":                     k.Disable,
		"defaults":                    k.ResetToDefaults,
		"enable break and typematic":  k.EnableBreakAndTypematic,
		"disable break and typematic": k.DisableBreakAndTypematic,
		"disable break codes":         k.DisableBreakCodes,
		"disable typematic":           k.DisableTypematic,
	} {
		if !op() {
			t.Fatalf("%s failed", name)
		}
	}
}

func TestWaitResponse_MillisWraparound(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	// Put the millisecond counter five ticks from wrapping; the timeout
	// window straddles zero and must still run its full length.
	s.now = (1<<32 - 5) * 1000
	before := s.now

	if got := k.waitResponse(None, 10*time.Millisecond); got != None {
		t.Fatalf("got %#x want None", got)
	}
	elapsedMillis := (s.now - before) / 1000
	if elapsedMillis < 9 || elapsedMillis > 20 {
		t.Fatalf("wait ran for %d ms, want about 10", elapsedMillis)
	}
}

func TestWaitResponse_GarbledClearsLatch(t *testing.T) {
	k, s := newTestKeyboard(16, nil)

	s.clockFrameToHost(corruptStop(frameFor(0x76)))
	if got := k.waitResponse(None, 10*time.Millisecond); got != Garbled {
		t.Fatalf("got %#x want Garbled", got)
	}
	if k.framingError != 0 {
		t.Fatal("latch not cleared")
	}
}
