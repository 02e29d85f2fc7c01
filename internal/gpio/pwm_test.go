package gpio

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
	"time"
)

func newTestPhases(out Output) (*pwmPhases, *[]time.Duration) {
	var slept []time.Duration
	g := newPWMPhases(out, 2550*time.Microsecond)
	g.sleep = func(d time.Duration) { slept = append(slept, d) }
	return g, &slept
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, flags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prev)
		log.SetFlags(flags)
	})
	return &buf
}

func TestPWMPhasesSplitPeriod(t *testing.T) {
	out := NewFakeOutput(nil)
	g, slept := newTestPhases(out)
	g.duty.Store(100)
	g.cycle()

	if len(out.Transitions) != 2 || !out.Transitions[0].High || out.Transitions[1].High {
		t.Fatalf("transitions: got %+v", out.Transitions)
	}
	if len(*slept) != 2 || (*slept)[0] != 1000*time.Microsecond || (*slept)[1] != 1550*time.Microsecond {
		t.Errorf("phases: got %v", *slept)
	}
}

func TestPWMPhasesExtremes(t *testing.T) {
	out := NewFakeOutput(nil)
	g, _ := newTestPhases(out)

	g.cycle() // duty 0: low for the whole period
	g.duty.Store(255)
	g.cycle() // duty 255: high for the whole period

	want := []bool{false, true}
	if len(out.Transitions) != len(want) {
		t.Fatalf("transitions: got %+v", out.Transitions)
	}
	for i, high := range want {
		if out.Transitions[i].High != high {
			t.Errorf("transition %d: got high=%v", i, out.Transitions[i].High)
		}
	}
}

func TestPWMPhasesLogFailuresOnce(t *testing.T) {
	buf := captureLog(t)
	out := NewFakeOutput(nil)
	out.SetError = errors.New("line gone")
	g, slept := newTestPhases(out)
	g.duty.Store(128)

	for i := 0; i < 3; i++ {
		g.cycle()
	}
	if n := strings.Count(buf.String(), "line gone"); n != 1 {
		t.Errorf("expected the failure logged once, got %d times:\n%s", n, buf.String())
	}
	if len(*slept) != 6 {
		t.Errorf("a failing line must keep its timing, got %d phases", len(*slept))
	}

	out.SetError = nil
	g.cycle()
	if !strings.Contains(buf.String(), "recovered after 6 failed writes") {
		t.Errorf("expected recovery logged, got:\n%s", buf.String())
	}

	out.SetError = errors.New("line gone")
	g.cycle()
	if n := strings.Count(buf.String(), "line gone"); n != 2 {
		t.Errorf("a new failure after recovery should be logged, got %d", n)
	}
}
