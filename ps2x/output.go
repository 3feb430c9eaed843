// ps2x/output.go

package ps2x

// KeyboardOutput is one element of the stream produced by ReadScanCode.
// Non-negative values are raw bytes as they arrived on the wire; the
// negative values are driver-side markers that never appear on the wire.
//
// The named byte values below share the 8-bit namespace with ordinary
// scan codes. A 0xF0 from the keyboard is a break prefix in the middle of
// a key-up sequence and a plain scan code elsewhere; disambiguation is
// positional, not by value.
type KeyboardOutput int16

const (
	// None means the queue is empty.
	None KeyboardOutput = -1
	// Garbled means a framing error was detected and recovery (a resend
	// request or a glitch reset) has been initiated. Consumers that track
	// multi-byte sequences should reset their state on seeing it.
	Garbled KeyboardOutput = -2
)

// Well-known reply bytes (device → host).
const (
	Ack               KeyboardOutput = 0xfa
	EchoReply         KeyboardOutput = 0xee
	ResendRequest     KeyboardOutput = 0xfe
	SelfTestPassed    KeyboardOutput = 0xaa
	SelfTestFailed    KeyboardOutput = 0xfc
	SelfTestFailedAlt KeyboardOutput = 0xfd
	ExtendedPrefix    KeyboardOutput = 0xe0
	BreakPrefix       KeyboardOutput = 0xf0
)

// IsByte reports whether o carries a wire byte (as opposed to None or
// Garbled).
func (o KeyboardOutput) IsByte() bool { return o >= 0 }

// Byte returns the wire byte for outputs where IsByte is true.
func (o KeyboardOutput) Byte() byte { return byte(o) }

// KeyboardLeds is the LED mask accepted by SendLedStatus.
type KeyboardLeds uint8

const (
	LedNone       KeyboardLeds = 0x0
	LedScrollLock KeyboardLeds = 0x1
	LedNumLock    KeyboardLeds = 0x2
	LedCapsLock   KeyboardLeds = 0x4
	LedAll        KeyboardLeds = 0x7
)

// ScanCodeSet identifies one of the three historic scan-code encodings.
// Set 2 (AT) is the keyboard default.
type ScanCodeSet uint8

const (
	ScanCodeSetPCXT ScanCodeSet = 1 // PC/XT keyboard
	ScanCodeSetPCAT ScanCodeSet = 2 // IBM/AT keyboard
	ScanCodeSetPS2  ScanCodeSet = 3 // PS/2 keyboard

	// ScanCodeSetUnknown is returned by GetScanCodeSet when the keyboard
	// did not answer, or answered with something outside 1..3.
	ScanCodeSetUnknown ScanCodeSet = 0xff
)

// TypematicRate selects the repeat rate for held keys: 0x00 is the
// fastest (about 30 characters per second), 0x1f the slowest (about 2).
type TypematicRate uint8

const (
	RateFastest TypematicRate = 0x00 // ~30.0 cps
	RateDefault TypematicRate = 0x0b // ~10.9 cps
	RateSlowest TypematicRate = 0x1f // ~2.0 cps
)

// TypematicStartDelay selects how long a key must be held before the
// first repeat.
type TypematicStartDelay uint8

const (
	Delay250ms  TypematicStartDelay = 0x0
	Delay500ms  TypematicStartDelay = 0x1
	Delay750ms  TypematicStartDelay = 0x2
	Delay1000ms TypematicStartDelay = 0x3

	DelayDefault = Delay500ms
)

// Command bytes sent host → keyboard. Unexported: the point of the
// package is to encapsulate the protocol.
type commandCode byte

const (
	cmdReset                               commandCode = 0xff
	cmdResend                              commandCode = 0xfe
	cmdDisableBreakAndTypematicForSpecific commandCode = 0xfd
	cmdDisableTypematicForSpecific         commandCode = 0xfc
	cmdDisableBreaksForSpecific            commandCode = 0xfb
	cmdEnableBreakAndTypematicForAll       commandCode = 0xfa
	cmdDisableBreakAndTypematicForAll      commandCode = 0xf9
	cmdDisableTypematicForAll              commandCode = 0xf8
	cmdDisableBreaksForAll                 commandCode = 0xf7
	cmdUseDefaultSettings                  commandCode = 0xf6
	cmdDisable                             commandCode = 0xf5
	cmdEnable                              commandCode = 0xf4
	cmdSetTypematicRate                    commandCode = 0xf3
	cmdReadID                              commandCode = 0xf2
	cmdSetScanCodeSet                      commandCode = 0xf0
	cmdEcho                                commandCode = 0xee
	cmdSetLeds                             commandCode = 0xed
)
