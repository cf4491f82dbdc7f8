// Command encoder-button reads a rotary encoder with push switch from GPIO,
// classifies its input into events and publishes them to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/encoder-button/encoderbutton"
	"github.com/sweeney/encoder-button/internal/gpio"
	"github.com/sweeney/encoder-button/internal/mqtt"
	"github.com/sweeney/encoder-button/internal/status"
	"github.com/sweeney/encoder-button/internal/web"
)

// config holds the parsed command line.
type config struct {
	chip      string
	pinA      int
	pinB      int
	pinSwitch int

	poll            time.Duration
	debounce        time.Duration
	multiClick      time.Duration
	longClick       time.Duration
	longPressRepeat bool
	rateLimit       time.Duration
	quad            bool
	idle            time.Duration
	userID          uint

	broker    string
	clientID  string
	heartbeat time.Duration
	httpAddr  string
	logLevel  string

	printState bool
}

func parseFlags(fs *flag.FlagSet, args []string) (config, error) {
	var cfg config
	fs.StringVar(&cfg.chip, "chip", gpio.DefaultChip, "GPIO character device")
	fs.IntVar(&cfg.pinA, "pin-a", gpio.DefaultPinA, "BCM pin number for encoder channel A")
	fs.IntVar(&cfg.pinB, "pin-b", gpio.DefaultPinB, "BCM pin number for encoder channel B")
	fs.IntVar(&cfg.pinSwitch, "pin-sw", gpio.DefaultPinSwitch, "BCM pin number for the push switch (-1 for none)")
	fs.DurationVar(&cfg.poll, "poll", 5*time.Millisecond, "Polling interval")
	fs.DurationVar(&cfg.debounce, "debounce", gpio.DefaultDebounce, "Switch debounce interval")
	fs.DurationVar(&cfg.multiClick, "multi-click", encoderbutton.DefaultMultiClickInterval, "Window for joining clicks into one gesture")
	fs.DurationVar(&cfg.longClick, "long-click", encoderbutton.DefaultLongClickDuration, "Hold time for long click and long press")
	fs.BoolVar(&cfg.longPressRepeat, "long-press-repeat", false, "Repeat long press every long-click period while held")
	fs.DurationVar(&cfg.rateLimit, "rate-limit", 0, "Minimum time between encoder events (0 for none)")
	fs.BoolVar(&cfg.quad, "quad", false, "Report every quadrature transition instead of every detent")
	fs.DurationVar(&cfg.idle, "idle", encoderbutton.DefaultIdleTimeout, "Inactivity before an IDLE event")
	fs.UintVar(&cfg.userID, "user-id", 0, "Identifier attached to every published event")
	fs.StringVar(&cfg.broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	fs.StringVar(&cfg.clientID, "client-id", "encoder-button", "MQTT client identifier")
	fs.DurationVar(&cfg.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	fs.StringVar(&cfg.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: error, warn, info, debug")
	fs.BoolVar(&cfg.printState, "print-state", false, "Print current input state and exit")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if cfg.poll <= 0 {
		return config{}, fmt.Errorf("poll interval must be positive, got %v", cfg.poll)
	}
	if cfg.heartbeat < 0 {
		return config{}, fmt.Errorf("heartbeat must not be negative, got %v", cfg.heartbeat)
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	level, err := parseLogLevel(cfg.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	logger := setupLogger(os.Stdout, level)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// configure applies the command line to the classifier.
func configure(eb *encoderbutton.EncoderButton, cfg config) {
	eb.SetDebounceInterval(cfg.debounce)
	eb.SetMultiClickInterval(cfg.multiClick)
	eb.SetLongClickDuration(cfg.longClick)
	eb.SetLongPressRepeat(cfg.longPressRepeat)
	eb.SetRateLimit(cfg.rateLimit)
	eb.UseQuadPrecision(cfg.quad)
	eb.SetIdleTimeout(cfg.idle)
	eb.SetUserID(cfg.userID)
}

func statusConfig(cfg config) status.Config {
	return status.Config{
		Chip:            cfg.chip,
		PinA:            cfg.pinA,
		PinB:            cfg.pinB,
		PinSwitch:       cfg.pinSwitch,
		PollMs:          cfg.poll.Milliseconds(),
		DebounceMs:      cfg.debounce.Milliseconds(),
		MultiClickMs:    cfg.multiClick.Milliseconds(),
		LongClickMs:     cfg.longClick.Milliseconds(),
		RateLimitMs:     cfg.rateLimit.Milliseconds(),
		IdleMs:          cfg.idle.Milliseconds(),
		HeartbeatMs:     cfg.heartbeat.Milliseconds(),
		QuadPrecision:   cfg.quad,
		LongPressRepeat: cfg.longPressRepeat,
		UserID:          cfg.userID,
		Broker:          cfg.broker,
		HTTPAddr:        cfg.httpAddr,
	}
}

func run(cfg config, logger *slog.Logger) error {
	clock := gpio.NewMonotonicClock()

	// Initialize GPIO
	encoder, err := gpio.NewRealEncoder(cfg.chip, cfg.pinA, cfg.pinB)
	if err != nil {
		return fmt.Errorf("init encoder: %w", err)
	}
	defer encoder.Close()

	var button encoderbutton.Debouncer
	var bounce *gpio.Bounce
	if cfg.pinSwitch >= 0 {
		sw, err := gpio.NewRealSwitch(cfg.chip, cfg.pinSwitch)
		if err != nil {
			return fmt.Errorf("init switch: %w", err)
		}
		defer sw.Close()
		bounce = gpio.NewBounce(sw, clock)
		button = bounce
	}

	// Print state mode
	if cfg.printState {
		sw := "none"
		if bounce != nil {
			sw = switchString(bounce.Read())
		}
		fmt.Printf("ticks: %d, switch: %s\n", encoder.Read(), sw)
		return nil
	}

	eb := encoderbutton.New(encoder, button, clock)
	configure(eb, cfg)

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(cfg.broker, cfg.clientID, logger)
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warn("failed to publish startup event", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start HTTP status server
	var hub *web.Hub
	if cfg.httpAddr != "" {
		hub = web.NewHub(logger)
		go hub.Run(ctx)

		srv := web.New(cfg.httpAddr, tracker, hub)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.httpAddr)
	}

	logger.Info("started",
		"chip", cfg.chip, "pin_a", cfg.pinA, "pin_b", cfg.pinB, "pin_sw", cfg.pinSwitch,
		"poll", cfg.poll, "broker", cfg.broker, "heartbeat", cfg.heartbeat)

	ticker := time.NewTicker(cfg.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		eb:         eb,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		hub:        hub,
		heartbeat:  cfg.heartbeat,
		logger:     logger,
		now:        time.Now,
	}
	if bounce != nil {
		l.readErrs = bounce
	}
	return l.run(ticker.C, sigCh)
}

// errReporter exposes the last hardware read error, if any.
type errReporter interface {
	Err() error
}

// loop owns the classifier and everything fed from its handlers. All fields
// are touched only from the goroutine running run.
type loop struct {
	eb         *encoderbutton.EncoderButton
	readErrs   errReporter
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	hub        *web.Hub
	heartbeat  time.Duration
	logger     *slog.Logger
	now        func() time.Time

	tickTime    time.Time
	pending     []mqtt.Event
	readFailing bool
}

func (l *loop) subscribe() {
	for _, e := range encoderbutton.Events() {
		e := e
		l.eb.SetHandler(e, func(eb *encoderbutton.EncoderButton) {
			l.pending = append(l.pending, mqtt.NewEvent(e, eb, l.tickTime))
		})
	}
}

func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	l.subscribe()
	lastHeartbeat := l.now()

	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case <-tick:
			l.tickTime = l.now()
			l.eb.Update()
			l.checkReadErr()

			for _, ev := range l.pending {
				l.dispatch(ev)
			}
			l.pending = l.pending[:0]

			l.updateTracker()

			if l.heartbeat > 0 && l.tickTime.Sub(lastHeartbeat) >= l.heartbeat {
				lastHeartbeat = l.tickTime
				l.sendHeartbeat()
			}
		}
	}
}

func (l *loop) checkReadErr() {
	if l.readErrs == nil {
		return
	}
	err := l.readErrs.Err()
	switch {
	case err != nil && !l.readFailing:
		l.readFailing = true
		l.logger.Warn("gpio read error", "error", err)
	case err == nil && l.readFailing:
		l.readFailing = false
		l.logger.Info("gpio reads recovered")
	}
}

func (l *loop) dispatch(ev mqtt.Event) {
	level := slog.LevelInfo
	if ev.Type == encoderbutton.EventChanged {
		level = slog.LevelDebug
	}
	l.logger.Log(context.Background(), level, "event",
		"type", ev.Type, "position", ev.Position, "pressed_position", ev.PressedPosition,
		"increment", ev.Increment, "clicks", ev.ClickCount)

	if err := l.publisher.Publish(ev); err != nil {
		// Don't crash on publish failure
		l.logger.Warn("publish error", "type", ev.Type, "error", err)
	}

	rec := status.EventRecord{
		Time:            ev.Timestamp,
		Event:           ev.Type,
		Position:        ev.Position,
		PressedPosition: ev.PressedPosition,
		Increment:       ev.Increment,
		ClickCount:      ev.ClickCount,
		LongPressCount:  ev.LongPressCount,
	}
	if l.tracker != nil {
		l.tracker.Record(rec)
	}
	if l.hub != nil {
		l.hub.Publish(rec)
	}
}

func (l *loop) updateTracker() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(status.InputState{
		Position:        l.eb.Position(),
		PressedPosition: l.eb.PressedPosition(),
		Pressed:         l.eb.IsPressed(),
		Enabled:         l.eb.Enabled(),
	})
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) sendHeartbeat() {
	hbEvent := mqtt.SystemEvent{
		Timestamp: l.tickTime,
		Event:     "HEARTBEAT",
	}
	if l.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		snap := l.tracker.Snapshot()
		snap.Now = l.tickTime
		hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
		l.logger.Info("heartbeat", "uptime", snap.Uptime().Truncate(time.Second), "events", snap.Total())
	}
	if err := l.publisher.PublishSystem(hbEvent); err != nil {
		l.logger.Warn("heartbeat publish error", "error", err)
	}
}

func (l *loop) shutdown(s os.Signal) {
	l.logger.Info("shutting down", "signal", s)
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if l.tracker != nil {
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
		snap := l.tracker.Snapshot()
		snap.Now = event.Timestamp
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Warn("failed to publish shutdown event", "error", err)
	} else {
		l.logger.Info("published shutdown event")
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func switchString(released bool) string {
	if released {
		return "RELEASED"
	}
	return "PRESSED"
}
