package serial

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/gpio"
	"github.com/sweeney/rc-ledctrl/internal/timing"
)

func newSim(baud int) (*SoftUART, *gpio.FakeOutput, *timing.SimClock) {
	sim := timing.NewSimClock()
	out := gpio.NewFakeOutput(sim.Now)
	return NewSoftUART(out, sim, baud), out, sim
}

func TestBitInterval(t *testing.T) {
	if got := BitInterval(19200); got != 52083*time.Nanosecond {
		t.Errorf("19200 baud: got %v", got)
	}
	if got := BitInterval(9600); got != 104166*time.Nanosecond {
		t.Errorf("9600 baud: got %v", got)
	}
	if got := ByteTime(19200); got != 520830*time.Nanosecond {
		t.Errorf("byte time: got %v", got)
	}
}

func TestTransmitFrameTiming(t *testing.T) {
	for _, baud := range []int{9600, 19200, 115200} {
		u, out, sim := newSim(baud)
		bit := BitInterval(baud)
		sim.AdvanceTo(time.Millisecond)
		start := sim.Now()

		if err := u.Transmit('A'); err != nil {
			t.Fatalf("baud %d: unexpected error: %v", baud, err)
		}

		// 0x41: start, 1 0 0 0 0 0 1 0 LSB first, stop.
		want := []bool{false, true, false, false, false, false, false, true, false, true}
		if len(out.Transitions) != len(want) {
			t.Fatalf("baud %d: got %d bit writes, want %d", baud, len(out.Transitions), len(want))
		}
		for i, tr := range out.Transitions {
			if tr.High != want[i] {
				t.Errorf("baud %d bit %d: got %v, want %v", baud, i, tr.High, want[i])
			}
			if at := start + time.Duration(i)*bit; tr.At != at {
				t.Errorf("baud %d bit %d: set at %v, want %v", baud, i, tr.At, at)
			}
		}
		if got := sim.Now() - start; got != 10*bit {
			t.Errorf("baud %d: transmit took %v, want %v", baud, got, 10*bit)
		}
		if !out.Level() {
			t.Errorf("baud %d: line not idle high after frame", baud)
		}
	}
}

func TestTransmitDeadlinesDoNotDrift(t *testing.T) {
	u, out, sim := newSim(19200)
	bit := BitInterval(19200)

	// An event in the middle of the frame must not shift later bits.
	sim.At(3*bit+bit/3, func() {})
	if err := u.Transmit(0x55); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, tr := range out.Transitions {
		if tr.At != time.Duration(i)*bit {
			t.Errorf("bit %d at %v, want %v", i, tr.At, time.Duration(i)*bit)
		}
	}
}

func TestPrintRoundTrip(t *testing.T) {
	u, out, _ := newSim(19200)
	line := "3\t1520\t1\r\n"

	if err := u.Print(line); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := Decode(out.Transitions, u.BitInterval())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != line {
		t.Errorf("decoded %q, want %q", got, line)
	}
}

func TestPrintEmptySendsNothing(t *testing.T) {
	u, out, sim := newSim(19200)
	if err := u.Print(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Transitions) != 0 || sim.Now() != 0 {
		t.Error("empty print should not touch the line")
	}
}

func TestTransmitError(t *testing.T) {
	u, out, _ := newSim(19200)
	out.SetError = errors.New("simulated error")

	if err := u.Transmit('A'); err == nil {
		t.Error("expected error")
	}
	if err := u.Print("AB"); err == nil {
		t.Error("expected error from Print")
	}
}

// scriptedOutput fails the Set calls whose 1-based index is in fail.
type scriptedOutput struct {
	calls  int
	fail   map[int]error
	levels []bool
}

func (o *scriptedOutput) Set(high bool) error {
	o.calls++
	if err := o.fail[o.calls]; err != nil {
		return err
	}
	o.levels = append(o.levels, high)
	return nil
}

func TestTransmitErrorReturnsLineToIdle(t *testing.T) {
	errBit := errors.New("bit write failed")
	out := &scriptedOutput{fail: map[int]error{3: errBit}}
	u := NewSoftUART(out, timing.NewSimClock(), 19200)

	err := u.Transmit('A')
	if !errors.Is(err, errBit) {
		t.Fatalf("expected the bit error, got %v", err)
	}
	if n := len(out.levels); n == 0 || !out.levels[n-1] {
		t.Errorf("line should be left idle high, levels %v", out.levels)
	}
}

func TestTransmitErrorReportsFailedIdleRestore(t *testing.T) {
	errBit := errors.New("bit write failed")
	errIdle := errors.New("idle write failed")
	out := &scriptedOutput{fail: map[int]error{1: errBit, 2: errIdle}}
	u := NewSoftUART(out, timing.NewSimClock(), 19200)

	err := u.Transmit('A')
	if !errors.Is(err, errBit) || !errors.Is(err, errIdle) {
		t.Fatalf("expected both errors, got %v", err)
	}
	if !strings.Contains(err.Error(), "return line to idle") {
		t.Errorf("error should name the idle restore: %v", err)
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(nil, BitInterval(19200))
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}
