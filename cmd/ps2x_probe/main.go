//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-ps2x/ps2x"
)

// Bring-up probe for a PS/2 keyboard: checks the lines, walks the
// setup commands one by one, then streams scan codes and periodically
// dumps the diagnostic event ring. Data on GP2, clock on GP3.
var (
	dataPin  = machine.GP2
	clockPin = machine.GP3
)

func main() {
	for i := 5; i > 0; i-- {
		println("probe starting in", i, "seconds")
		time.Sleep(time.Second)
	}

	rec := ps2x.NewEventRecorder(64)
	kbd, err := ps2x.New(ps2x.Config{
		Data:        dataPin,
		Clock:       clockPin,
		Diagnostics: rec,
	})
	if err != nil {
		println("ps2x:", err.Error())
		halt()
	}
	kbd.Begin()

	if !kbd.LinesIdle() {
		println("warning: bus not idle; check wiring and pull-ups")
	}

	println("await startup:", kbd.AwaitStartup(0))
	println("echo:", kbd.Echo())

	id := kbd.ReadID()
	println("id:", uint(id)) // 43907 == 0xab83
	println("scan code set:", int(kbd.GetScanCodeSet()))

	// LED walk: scroll, num, caps, then off.
	for _, leds := range []ps2x.KeyboardLeds{
		ps2x.LedScrollLock, ps2x.LedNumLock, ps2x.LedCapsLock, ps2x.LedNone,
	} {
		if !kbd.SendLedStatus(leds) {
			println("led walk failed at mask", int(leds))
			break
		}
		time.Sleep(250 * time.Millisecond)
	}

	println("typematic fast:", kbd.SetTypematicRateAndDelay(ps2x.RateFastest, ps2x.Delay250ms))
	println("streaming; press keys")

	lastDump := time.Now()
	for {
		code := kbd.ReadScanCode()
		switch code {
		case ps2x.None:
			time.Sleep(time.Millisecond)
		case ps2x.Garbled:
			println("garbled")
		default:
			println("scan", int(code.Byte()))
		}

		if time.Since(lastDump) > 10*time.Second {
			lastDump = time.Now()
			if rec.AnyErrors() {
				println("-- event ring --")
				rec.Dump(machine.Serial)
				rec.Reset()
			}
		}
	}
}

func halt() {
	for {
		time.Sleep(time.Hour)
	}
}
