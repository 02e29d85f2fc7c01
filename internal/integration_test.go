package internal

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/capture"
	"github.com/sweeney/rc-ledctrl/internal/config"
	"github.com/sweeney/rc-ledctrl/internal/control"
	"github.com/sweeney/rc-ledctrl/internal/counter"
	"github.com/sweeney/rc-ledctrl/internal/gpio"
	"github.com/sweeney/rc-ledctrl/internal/irq"
	"github.com/sweeney/rc-ledctrl/internal/logic"
	"github.com/sweeney/rc-ledctrl/internal/mqtt"
	"github.com/sweeney/rc-ledctrl/internal/serial"
	"github.com/sweeney/rc-ledctrl/internal/status"
	"github.com/sweeney/rc-ledctrl/internal/timing"
)

// offset keeps scheduled edges off the overflow boundaries of a 1µs tick.
const offset = 100 * time.Nanosecond

type device struct {
	t         *testing.T
	cfg       *config.Config
	sim       *timing.SimClock
	ctrl      *irq.Controller
	pin       *gpio.FakeInput
	tx        *gpio.FakeOutput
	pwm       *gpio.FakePWM
	tracker   *status.Tracker
	publisher *mqtt.FakePublisher
	forwarder *mqtt.Forwarder
	loop      *control.Loop
}

// newDevice wires the full decoder against simulated hardware, the way the
// daemon wires it against real pins.
func newDevice(t *testing.T, cfgJSON string, mode logic.Mode) *device {
	t.Helper()
	cfg, err := config.Parse([]byte(cfgJSON))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	mc, err := cfg.MapperConfig()
	if err != nil {
		t.Fatalf("mapper config: %v", err)
	}
	policy, err := cfg.ReadPolicy()
	if err != nil {
		t.Fatalf("read policy: %v", err)
	}

	d := &device{t: t, cfg: cfg}
	d.sim = timing.NewSimClock()
	d.ctrl = irq.NewController()
	hw := counter.NewFreeRunning(d.sim, cfg.TickPeriod())
	ticks := counter.New(hw, d.ctrl, policy)
	d.pin = gpio.NewFakeInput(true)
	pulses := capture.New(d.ctrl, ticks, d.pin)
	d.tx = gpio.NewFakeOutput(d.sim.Now)
	d.pwm = &gpio.FakePWM{}

	mapper := logic.NewMapper(mc)
	names := make([]string, len(mc.Bands))
	for i, b := range mc.Bands {
		names[i] = b.Name
	}
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d.tracker = status.NewTracker(start, mode, names, mapper.Duty(), status.Config{BaudRate: cfg.BaudRate})
	d.publisher = mqtt.NewFakePublisher()
	d.forwarder = mqtt.NewForwarder(d.publisher, 64)

	d.loop = control.New(d.ctrl, pulses, mapper, d.pwm, serial.NewSoftUART(d.tx, d.sim, cfg.BaudRate), mode)
	d.loop.Now = func() time.Time { return start.Add(d.sim.Now()) }
	d.loop.Observer = control.Observers{d.tracker, d.forwarder}

	hw.Simulate(d.sim, d.ctrl)
	if err := d.loop.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return d
}

func (d *device) edgeAt(at time.Duration, high bool) {
	d.sim.At(at+offset, func() {
		d.pin.SetLevel(high)
		d.ctrl.Raise(irq.Edge)
	})
}

// feed sends one pulse per width, starting at first and leaving gap between
// the end of each report and the next pulse. The loop steps after each pulse.
func (d *device) feed(first time.Duration, gap time.Duration, widthsUS ...int) {
	d.t.Helper()
	at := first
	for _, w := range widthsUS {
		end := at + time.Duration(w)*time.Microsecond
		d.edgeAt(at, false)
		d.edgeAt(end, true)
		d.sim.AdvanceTo(end + 2*offset)
		handled, err := d.loop.Step()
		if err != nil {
			d.t.Fatalf("step: %v", err)
		}
		if !handled {
			d.t.Fatalf("pulse of %dµs was not reported", w)
		}
		at = d.sim.Now() + gap
	}
}

func (d *device) lines() []string {
	d.t.Helper()
	out, err := serial.Decode(d.tx.Transitions, serial.BitInterval(d.cfg.BaudRate))
	if err != nil {
		d.t.Fatalf("decode: %v", err)
	}
	s := strings.TrimSuffix(string(out), "\r\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\r\n")
}

func (d *device) flushMQTT() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.forwarder.Run(ctx)
}

// TestIntegrationFullFlow runs a stick sweep through every band and out of
// range, checking serial output, PWM and published reports.
func TestIntegrationFullFlow(t *testing.T) {
	d := newDevice(t, `{}`, logic.ModeNormal)
	d.feed(3*time.Millisecond, 10*time.Millisecond, 1100, 1520, 1940, 1300, 2500, 1520)

	want := []string{
		"3\t1100\t0",
		"3\t1520\t1",
		"3\t1940\t2",
		"3\t1300\t-",
		"3\t2500\t-",
		"3\t1520\t1",
	}
	got := d.lines()
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}

	// Startup default, then each band; out-of-range widths hold the output.
	wantDuties := []uint8{128, 39, 97, 193, 97}
	if len(d.pwm.Duties) != len(wantDuties) {
		t.Fatalf("duties: got %v, want %v", d.pwm.Duties, wantDuties)
	}
	for i := range wantDuties {
		if d.pwm.Duties[i] != wantDuties[i] {
			t.Errorf("duty %d: got %d, want %d", i, d.pwm.Duties[i], wantDuties[i])
		}
	}

	snap := d.tracker.Snapshot()
	if snap.Counts.Pulses != 6 || snap.Counts.Bands[1] != 2 || snap.Counts.Gap != 1 || snap.Counts.AboveRange != 1 {
		t.Errorf("counts: %+v", snap.Counts)
	}
	if snap.Duty != 97 || snap.Last == nil || snap.Last.Width != 1520 {
		t.Errorf("snapshot: duty=%d last=%+v", snap.Duty, snap.Last)
	}

	d.flushMQTT()
	if d.publisher.ReportCount() != 6 {
		t.Fatalf("expected 6 published reports, got %d", d.publisher.ReportCount())
	}
	var p mqtt.Payload
	if err := json.Unmarshal(d.publisher.Payloads[2], &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Pulse.Band != "high" || p.Pulse.Width != 1940 || p.Pulse.Duty != 193 || p.Pulse.Mode != "normal" {
		t.Errorf("payload: %+v", p.Pulse)
	}
}

// TestIntegrationCounterWrap measures a pulse that spans the 16-bit tick
// rollover.
func TestIntegrationCounterWrap(t *testing.T) {
	for _, policy := range []string{"windowed", "double-high"} {
		t.Run(policy, func(t *testing.T) {
			d := newDevice(t, `{"clock_read": "`+policy+`"}`, logic.ModeTest1)
			d.feed(65000*time.Microsecond, 10*time.Millisecond, 1520, 1940)

			got := d.lines()
			if len(got) != 2 || got[0] != "1\t1520\t1" || got[1] != "1\t1940\t2" {
				t.Errorf("lines: %q", got)
			}
		})
	}
}

// TestIntegrationPulseTrain feeds a continuous 50Hz train with the loop
// polling. A line fits in the gap between pulses, so none is lost.
func TestIntegrationPulseTrain(t *testing.T) {
	d := newDevice(t, `{}`, logic.ModeNormal)

	period := 20 * time.Millisecond
	for i := 0; i < 10; i++ {
		at := 3*time.Millisecond + time.Duration(i)*period
		d.edgeAt(at, false)
		d.edgeAt(at+1520*time.Microsecond, true)
	}

	reports := 0
	for d.sim.Now() < 3*time.Millisecond+10*period {
		d.sim.Advance(50 * time.Microsecond)
		handled, err := d.loop.Step()
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if handled {
			reports++
		}
	}

	if reports != 10 {
		t.Errorf("expected every pulse of a 50Hz train to be reported, got %d", reports)
	}
	for i, line := range d.lines() {
		if line != "3\t1520\t1" {
			t.Errorf("line %d: got %q", i, line)
		}
	}
}

// TestIntegrationEdgesDuringReportDropped sends a short pulse while a line is
// being transmitted.
func TestIntegrationEdgesDuringReportDropped(t *testing.T) {
	d := newDevice(t, `{}`, logic.ModeNormal)
	d.edgeAt(3*time.Millisecond, false)
	d.edgeAt(4520*time.Microsecond, true)
	// Falls inside the transmission of the first line.
	d.edgeAt(6*time.Millisecond, false)
	d.edgeAt(7100*time.Microsecond, true)

	d.sim.AdvanceTo(4600 * time.Microsecond)
	if handled, _ := d.loop.Step(); !handled {
		t.Fatal("first pulse not reported")
	}
	if handled, _ := d.loop.Step(); handled {
		t.Error("pulse seen while reporting must be dropped")
	}

	d.feed(d.sim.Now()+5*time.Millisecond, 5*time.Millisecond, 1100)

	got := d.lines()
	if len(got) != 2 || got[0] != "3\t1520\t1" || got[1] != "3\t1100\t0" {
		t.Errorf("lines: %q", got)
	}
	if d.tracker.Snapshot().Counts.DroppedEdges != 1 {
		t.Errorf("expected one cycle with dropped edges")
	}
}

// TestIntegrationLinearMapping exercises the continuous variant.
func TestIntegrationLinearMapping(t *testing.T) {
	d := newDevice(t, `{"mapping": "linear"}`, logic.ModeTest2)
	d.feed(3*time.Millisecond, 10*time.Millisecond, 1100, 1940, 900, 2500)

	want := []string{"2\t1100\t0", "2\t1940\t255", "2\t900\t0", "2\t2500\t255"}
	got := d.lines()
	if len(got) != len(want) {
		t.Fatalf("lines: %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

// TestIntegrationDefaultOnOutOfRange snaps to the default output when the
// width is unrecognized.
func TestIntegrationDefaultOnOutOfRange(t *testing.T) {
	d := newDevice(t, `{"out_of_range": "default"}`, logic.ModeNormal)
	d.feed(3*time.Millisecond, 10*time.Millisecond, 1940, 2500)

	if duty, _ := d.pwm.Duty(); duty != 128 {
		t.Errorf("expected default duty 128 after out-of-range, got %d", duty)
	}
}

// TestIntegrationLowerBaudRate uses the slower serial rate.
func TestIntegrationLowerBaudRate(t *testing.T) {
	d := newDevice(t, `{"baud_rate": 9600}`, logic.ModeTest3)
	d.feed(3*time.Millisecond, 10*time.Millisecond, 1520)

	got := d.lines()
	if len(got) != 1 || got[0] != "0\t1520\t1" {
		t.Errorf("lines: %q", got)
	}
}
