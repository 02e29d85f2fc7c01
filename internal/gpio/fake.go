package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeInput is a test double whose level is set by the test.
type FakeInput struct {
	mu    sync.Mutex
	high  bool
	reads int

	// ReadError, if set, will be returned by Level().
	ReadError error
}

// NewFakeInput creates a FakeInput at the given level.
func NewFakeInput(high bool) *FakeInput {
	return &FakeInput{high: high}
}

// SetLevel changes the line level.
func (f *FakeInput) SetLevel(high bool) {
	f.mu.Lock()
	f.high = high
	f.mu.Unlock()
}

// Level returns the current level.
func (f *FakeInput) Level() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.high, nil
}

// Reads returns how many times Level was called.
func (f *FakeInput) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Transition is one recorded change of an output line.
type Transition struct {
	At   time.Duration
	High bool
}

// FakeOutput records every Set with a timestamp from Now.
type FakeOutput struct {
	// Now supplies timestamps; if nil, transitions are recorded at zero.
	Now func() time.Duration

	// Transitions contains every Set call in order, including repeats of
	// the current level.
	Transitions []Transition

	// SetError, if set, will be returned by Set.
	SetError error
}

// NewFakeOutput creates a FakeOutput stamped by now.
func NewFakeOutput(now func() time.Duration) *FakeOutput {
	return &FakeOutput{Now: now}
}

// Set records the level.
func (f *FakeOutput) Set(high bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	var at time.Duration
	if f.Now != nil {
		at = f.Now()
	}
	f.Transitions = append(f.Transitions, Transition{At: at, High: high})
	return nil
}

// Level returns the last level set, or high (idle) if none.
func (f *FakeOutput) Level() bool {
	if len(f.Transitions) == 0 {
		return true
	}
	return f.Transitions[len(f.Transitions)-1].High
}

// Reset clears recorded transitions.
func (f *FakeOutput) Reset() {
	f.Transitions = nil
	f.SetError = nil
}

// FakePWM records duty cycle writes.
type FakePWM struct {
	// Duties contains every duty written, in order.
	Duties []uint8

	// SetError, if set, will be returned by SetDuty.
	SetError error
}

// SetDuty records the duty.
func (f *FakePWM) SetDuty(duty uint8) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Duties = append(f.Duties, duty)
	return nil
}

// Duty returns the last duty written.
func (f *FakePWM) Duty() (uint8, error) {
	if len(f.Duties) == 0 {
		return 0, errors.New("no duty written")
	}
	return f.Duties[len(f.Duties)-1], nil
}

// FakeJumpers returns fixed jumper pin levels.
type FakeJumpers struct {
	CF0, CF1  bool
	ReadError error
}

// ReadJumpers returns the configured levels.
func (f FakeJumpers) ReadJumpers() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}
	return f.CF0, f.CF1, nil
}
