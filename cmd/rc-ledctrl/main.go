// Command rc-ledctrl decodes RC servo pulses from a GPIO input, drives a PWM
// output from the decoded band and reports every pulse on a serial line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
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
	"github.com/sweeney/rc-ledctrl/internal/web"
)

type options struct {
	configPath string
	chip       string
	pinIn      int
	pinPWM     int
	pinTX      int
	pinCF0     int
	pinCF1     int
	pwmPeriod  time.Duration
	uart       string
	broker     string
	clientID   string
	heartbeat  time.Duration
	httpAddr   string
	printMode  bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "JSON calibration file (empty for built-in defaults)")
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip")
	flag.IntVar(&o.pinIn, "pin-in", gpio.DefaultPinIn, "Line offset of the pulse input")
	flag.IntVar(&o.pinPWM, "pin-pwm", gpio.DefaultPinOut, "Line offset of the PWM output")
	flag.IntVar(&o.pinTX, "pin-tx", gpio.DefaultPinTX, "Line offset of the serial TX output")
	flag.IntVar(&o.pinCF0, "pin-cf0", gpio.DefaultPinCF0, "Line offset of mode jumper CF0")
	flag.IntVar(&o.pinCF1, "pin-cf1", gpio.DefaultPinCF1, "Line offset of mode jumper CF1")
	flag.DurationVar(&o.pwmPeriod, "pwm-period", 2*time.Millisecond, "PWM period")
	flag.StringVar(&o.uart, "uart", "", "Serial port for reports instead of the GPIO TX line (e.g. /dev/ttyAMA0)")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.StringVar(&o.clientID, "client-id", "rc-ledctrl", "MQTT client ID")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&o.printMode, "print-mode", false, "Print the jumper-selected mode and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	mc, err := cfg.MapperConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	policy, err := cfg.ReadPolicy()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Mode is sampled once at startup
	mode, err := readMode(gpio.Jumpers{Chip: o.chip, CF0: o.pinCF0, CF1: o.pinCF1})
	if err != nil {
		return err
	}
	if o.printMode {
		fmt.Printf("mode: %s (%c)\n", mode, mode.Digit())
		return nil
	}

	// Interrupt model and extended clock
	ctrl := irq.NewController()
	clock := timing.NewSpin()
	hw := counter.NewFreeRunning(clock, cfg.TickPeriod())
	ticks := counter.New(hw, ctrl, policy)

	// Edges are latched by the controller until Start enables delivery
	in, err := gpio.NewEdgeInput(o.chip, o.pinIn, func() { ctrl.Raise(irq.Edge) })
	if err != nil {
		return fmt.Errorf("init input: %w", err)
	}
	defer in.Close()
	pulses := capture.New(ctrl, ticks, in)

	sink, sinkName, closeSink, err := openSink(o, cfg.BaudRate, clock)
	if err != nil {
		return err
	}
	defer closeSink()

	pwm, err := gpio.NewSoftPWM(o.chip, o.pinPWM, o.pwmPeriod)
	if err != nil {
		return fmt.Errorf("init pwm: %w", err)
	}
	defer pwm.Close()
	pwm.Start()

	mapper := logic.NewMapper(mc)
	if lt := control.LineTime(serial.ByteTime(cfg.BaudRate)); lt > cfg.MinPulseGap() {
		log.Printf("warning: a report line takes up to %v to send, longer than the %v pulse gap; pulses will be skipped", lt, cfg.MinPulseGap())
	}

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.Discard{}
	var mqttStatus mqtt.ConnectionStatus
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(o.broker, o.clientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), mode, bandNames(mc), mapper.Duty(), status.Config{
		BaudRate:    cfg.BaudRate,
		Mapping:     cfg.Mapping,
		OutOfRange:  cfg.OutOfRange,
		ClockRead:   cfg.ClockRead,
		Sink:        sinkName,
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
	})

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	forwarder := mqtt.NewForwarder(publisher, 64)
	forwarderDone := make(chan struct{})
	go func() {
		forwarder.Run(ctx)
		close(forwarderDone)
	}()
	go hw.Run(ctx, ctrl)

	loop := control.New(ctrl, pulses, mapper, pwm, sink, mode)
	loop.Observer = control.Observers{tracker, forwarder}
	if err := loop.Start(); err != nil {
		return err
	}
	loopDone := make(chan struct{})
	go func() {
		// The loop busy-polls and times serial bits; keep it on one thread.
		runtime.LockOSThread()
		loop.Run(ctx)
		close(loopDone)
	}()

	log.Printf("started: mode=%s mapping=%s out_of_range=%s baud=%d sink=%s broker=%q heartbeat=%v",
		mode, cfg.Mapping, cfg.OutOfRange, cfg.BaudRate, sinkName, o.broker, o.heartbeat)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	src := sources{capture: pulses.Stats, mqtt: mqttStatus, mqttDropped: forwarder.Dropped}
	err = runLoop(publisher, tracker, src, o.heartbeat, time.Now, ticker.C, sigCh)

	cancel()
	<-loopDone
	<-forwarderDone
	return err
}

// sources are the counters runLoop copies into the tracker. Nil entries are
// skipped.
type sources struct {
	capture     func() capture.Stats
	mqtt        mqtt.ConnectionStatus
	mqttDropped func() uint64
}

// runLoop supervises the daemon: it refreshes the status tracker, publishes
// heartbeats and handles shutdown signals. Pulse handling runs separately in
// the control loop.
func runLoop(publisher mqtt.Publisher, tracker *status.Tracker, src sources, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	refresh := func() {
		if src.capture != nil {
			tracker.SetCaptureStats(src.capture())
		}
		if src.mqtt != nil {
			tracker.SetMQTTConnected(src.mqtt.IsConnected())
		}
		if src.mqttDropped != nil {
			tracker.SetMQTTDropped(src.mqttDropped())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			name := signalName(s)
			refresh()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     name,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", name),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			refresh()

			hb := tracker.CheckHeartbeat(t, heartbeat)
			if hb == nil {
				continue
			}
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v pulses=%d below=%d above=%d gap=%d dropped=%d unpublished=%d",
				hb.Uptime, hb.Counts.Pulses, hb.Counts.BelowRange, hb.Counts.AboveRange, hb.Counts.Gap,
				hb.Counts.DroppedEdges, snap.MQTTDropped)

			hbEvent := mqtt.SystemEvent{
				Timestamp:  hb.Timestamp,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// readMode samples the jumpers once.
func readMode(j gpio.JumperReader) (logic.Mode, error) {
	cf0, cf1, err := j.ReadJumpers()
	if err != nil {
		return 0, fmt.Errorf("read jumpers: %w", err)
	}
	return logic.ModeFromJumpers(cf0, cf1), nil
}

// openSink opens the report transmitter: the host UART if one is named,
// otherwise a bit-banged line on the TX pin.
func openSink(o options, baud int, clock timing.Clock) (serial.Sink, string, func() error, error) {
	if o.uart != "" {
		u, err := serial.OpenUART(o.uart, baud)
		if err != nil {
			return nil, "", nil, fmt.Errorf("init uart: %w", err)
		}
		return u, o.uart, u.Close, nil
	}

	tx, err := gpio.NewOutput(o.chip, o.pinTX, true)
	if err != nil {
		return nil, "", nil, fmt.Errorf("init tx: %w", err)
	}
	return serial.NewSoftUART(tx, clock, baud), "gpio", tx.Close, nil
}

func bandNames(mc logic.MapperConfig) []string {
	names := make([]string, len(mc.Bands))
	for i, b := range mc.Bands {
		names[i] = b.Name
	}
	return names
}
