package gpio

import (
	"errors"
	"testing"
	"time"
)

func TestFakeInputLevel(t *testing.T) {
	f := NewFakeInput(true)

	high, err := f.Level()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !high {
		t.Error("expected high")
	}

	f.SetLevel(false)
	high, err = f.Level()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if high {
		t.Error("expected low after SetLevel(false)")
	}

	if f.Reads() != 2 {
		t.Errorf("expected 2 reads, got %d", f.Reads())
	}
}

func TestFakeInputError(t *testing.T) {
	f := NewFakeInput(true)
	f.ReadError = errors.New("simulated error")

	_, err := f.Level()
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeOutputRecordsTransitions(t *testing.T) {
	now := time.Duration(0)
	f := NewFakeOutput(func() time.Duration { return now })

	if !f.Level() {
		t.Error("fresh output should report idle high")
	}

	f.Set(false)
	now = 52 * time.Microsecond
	f.Set(true)

	if len(f.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(f.Transitions))
	}
	if f.Transitions[0] != (Transition{At: 0, High: false}) {
		t.Errorf("transition 0: got %+v", f.Transitions[0])
	}
	if f.Transitions[1] != (Transition{At: 52 * time.Microsecond, High: true}) {
		t.Errorf("transition 1: got %+v", f.Transitions[1])
	}
	if !f.Level() {
		t.Error("expected level high")
	}

	f.Reset()
	if len(f.Transitions) != 0 {
		t.Error("Reset should clear transitions")
	}
}

func TestFakeOutputError(t *testing.T) {
	f := NewFakeOutput(nil)
	f.SetError = errors.New("simulated error")

	if err := f.Set(true); err == nil {
		t.Error("expected error")
	}
	if len(f.Transitions) != 0 {
		t.Error("failed Set must not be recorded")
	}
}

func TestFakePWM(t *testing.T) {
	f := &FakePWM{}
	if _, err := f.Duty(); err == nil {
		t.Error("expected error before any write")
	}

	f.SetDuty(128)
	f.SetDuty(97)
	d, err := f.Duty()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 97 {
		t.Errorf("expected last duty 97, got %d", d)
	}
	if len(f.Duties) != 2 {
		t.Errorf("expected 2 writes, got %d", len(f.Duties))
	}
}

func TestFakeJumpers(t *testing.T) {
	j := FakeJumpers{CF0: true, CF1: false}
	cf0, cf1, err := j.ReadJumpers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cf0 || cf1 {
		t.Errorf("expected (true, false), got (%v, %v)", cf0, cf1)
	}

	j.ReadError = errors.New("simulated error")
	if _, _, err := j.ReadJumpers(); err == nil {
		t.Error("expected error")
	}
}
