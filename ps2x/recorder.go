// ps2x/recorder.go

package ps2x

import (
	"io"
	"sync/atomic"
)

// EventCode identifies one recorded diagnostic event.
type EventCode uint8

const (
	EvPacketDidNotStartWithZero EventCode = iota
	EvParityError
	EvPacketDidNotEndWithOne
	EvSendFrameError
	EvBufferOverflow
	EvClockLineGlitch
	EvIncorrectResponse
	EvNoResponse
	EvStartupFailure
	EvNoTranslationForKey
	// Events above are failures; the two below are traffic records.
	EvSentByte
	EvReceivedByte
)

// Event is one recorded diagnostic event with up to two bytes of
// payload (meaning depends on the code).
type Event struct {
	Code EventCode
	A, B byte
}

// EventRecorder is a Diagnostics implementation that accumulates events
// into a fixed ring for later offline dump. Recording is wait-free and
// callable from both contexts: the slot index is claimed with an atomic
// add, so concurrent recorders never block each other (a burst larger
// than the ring simply overwrites the oldest records).
type EventRecorder struct {
	events   []Event
	nextSlot uint32 // atomic, free-running
	failures uint32 // atomic bitmask over failure EventCodes
}

// NewEventRecorder returns a recorder keeping the last size events; a
// size below 8 is raised to 8.
func NewEventRecorder(size int) *EventRecorder {
	if size < 8 {
		size = 8
	}
	return &EventRecorder{events: make([]Event, size)}
}

func (r *EventRecorder) record(ev Event) {
	if ev.Code < EvSentByte {
		for {
			old := atomic.LoadUint32(&r.failures)
			if old&(1<<ev.Code) != 0 {
				break
			}
			if atomic.CompareAndSwapUint32(&r.failures, old, old|1<<ev.Code) {
				break
			}
		}
	}
	i := atomic.AddUint32(&r.nextSlot, 1) - 1
	r.events[int(i)%len(r.events)] = ev
}

// AnyErrors reports whether any failure event has been recorded since
// the last Reset. Traffic events (SentByte, ReceivedByte) don't count.
func (r *EventRecorder) AnyErrors() bool {
	return atomic.LoadUint32(&r.failures) != 0
}

// Failures returns the sticky bitmask of failure codes seen so far,
// indexed by EventCode.
func (r *EventRecorder) Failures() uint32 {
	return atomic.LoadUint32(&r.failures)
}

// Reset discards all recorded events and clears the failure mask.
func (r *EventRecorder) Reset() {
	atomic.StoreUint32(&r.failures, 0)
	atomic.StoreUint32(&r.nextSlot, 0)
	for i := range r.events {
		r.events[i] = Event{}
	}
}

// Events returns the recorded events, oldest first. Call it from the
// foreground when the wire is quiet; it copies the ring without
// stopping recorders.
func (r *EventRecorder) Events() []Event {
	n := atomic.LoadUint32(&r.nextSlot)
	size := uint32(len(r.events))
	count := n
	start := uint32(0)
	if n > size {
		count = size
		start = n % size
	}
	out := make([]Event, 0, count)
	for i := uint32(0); i < count; i++ {
		out = append(out, r.events[(start+i)%size])
	}
	return out
}

const hexDigits = "0123456789abcdef"

// Dump writes the failure mask and the event ring to w as hex, one
// "code:aabb" triple per line. machine.Serial satisfies io.Writer, so a
// device can dump straight to its console.
func (r *EventRecorder) Dump(w io.Writer) {
	var line [8]byte
	mask := r.Failures()
	line[0] = hexDigits[mask>>12&0xf]
	line[1] = hexDigits[mask>>8&0xf]
	line[2] = hexDigits[mask>>4&0xf]
	line[3] = hexDigits[mask&0xf]
	line[4] = '\n'
	w.Write(line[:5])
	for _, ev := range r.Events() {
		line[0] = hexDigits[ev.Code>>4]
		line[1] = hexDigits[ev.Code&0xf]
		line[2] = ':'
		line[3] = hexDigits[ev.A>>4]
		line[4] = hexDigits[ev.A&0xf]
		line[5] = hexDigits[ev.B>>4]
		line[6] = hexDigits[ev.B&0xf]
		line[7] = '\n'
		w.Write(line[:])
	}
}

// Diagnostics implementation.

func (r *EventRecorder) PacketDidNotStartWithZero() { r.record(Event{Code: EvPacketDidNotStartWithZero}) }
func (r *EventRecorder) ParityError()               { r.record(Event{Code: EvParityError}) }
func (r *EventRecorder) PacketDidNotEndWithOne()    { r.record(Event{Code: EvPacketDidNotEndWithOne}) }
func (r *EventRecorder) SendFrameError()            { r.record(Event{Code: EvSendFrameError}) }
func (r *EventRecorder) BufferOverflow()            { r.record(Event{Code: EvBufferOverflow}) }

func (r *EventRecorder) ClockLineGlitch(bitsReceived uint8) {
	r.record(Event{Code: EvClockLineGlitch, A: bitsReceived})
}

func (r *EventRecorder) IncorrectResponse(got, expected KeyboardOutput) {
	r.record(Event{Code: EvIncorrectResponse, A: byte(got), B: byte(expected)})
}

func (r *EventRecorder) NoResponse(expected KeyboardOutput) {
	r.record(Event{Code: EvNoResponse, A: byte(expected)})
}

func (r *EventRecorder) StartupFailure() { r.record(Event{Code: EvStartupFailure}) }

func (r *EventRecorder) NoTranslationForKey(isExtended bool, code KeyboardOutput) {
	var ext byte
	if isExtended {
		ext = 1
	}
	r.record(Event{Code: EvNoTranslationForKey, A: ext, B: byte(code)})
}

func (r *EventRecorder) SentByte(b byte)     { r.record(Event{Code: EvSentByte, A: b}) }
func (r *EventRecorder) ReceivedByte(b byte) { r.record(Event{Code: EvReceivedByte, A: b}) }
