package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/encoder-button/encoderbutton"
	"github.com/sweeney/encoder-button/internal/gpio"
	"github.com/sweeney/encoder-button/internal/mqtt"
	"github.com/sweeney/encoder-button/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")

	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "")
	t.Setenv(envNetworkWifiSSID, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.Type != "" || info.SSID != "" {
		t.Errorf("expected empty Type and SSID, got %q and %q", info.Type, info.SSID)
	}
}

// --- logger ---

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"error", LogLevelError, false},
		{"warn", LogLevelWarn, false},
		{"warning", LogLevelWarn, false},
		{"INFO", LogLevelInfo, false},
		{"Debug", LogLevelDebug, false},
		{"trace", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q): err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, LogLevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("expected warn line, got %s", out)
	}
}

// --- flags ---

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.chip != gpio.DefaultChip || cfg.pinA != gpio.DefaultPinA || cfg.pinB != gpio.DefaultPinB || cfg.pinSwitch != gpio.DefaultPinSwitch {
		t.Errorf("pins: got %s %d/%d/%d", cfg.chip, cfg.pinA, cfg.pinB, cfg.pinSwitch)
	}
	if cfg.poll != 5*time.Millisecond {
		t.Errorf("poll: got %v", cfg.poll)
	}
	if cfg.multiClick != encoderbutton.DefaultMultiClickInterval || cfg.longClick != encoderbutton.DefaultLongClickDuration {
		t.Errorf("click timing: got %v/%v", cfg.multiClick, cfg.longClick)
	}
	if cfg.idle != encoderbutton.DefaultIdleTimeout {
		t.Errorf("idle: got %v", cfg.idle)
	}
	if cfg.broker != "tcp://localhost:1883" || cfg.clientID != "encoder-button" {
		t.Errorf("mqtt: got %q %q", cfg.broker, cfg.clientID)
	}
	if cfg.heartbeat != 15*time.Minute {
		t.Errorf("heartbeat: got %v", cfg.heartbeat)
	}
	if cfg.rateLimit != 0 || cfg.quad || cfg.longPressRepeat || cfg.printState {
		t.Errorf("unexpected non-default options: %+v", cfg)
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	args := []string{
		"-pin-sw", "-1", "-quad", "-rate-limit", "20ms", "-long-press-repeat",
		"-user-id", "7", "-http", "", "-heartbeat", "0",
	}
	cfg, err := parseFlags(flag.NewFlagSet("test", flag.ContinueOnError), args)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.pinSwitch != -1 {
		t.Errorf("pinSwitch: got %d, want -1", cfg.pinSwitch)
	}
	if !cfg.quad || !cfg.longPressRepeat {
		t.Error("expected quad and long-press-repeat set")
	}
	if cfg.rateLimit != 20*time.Millisecond {
		t.Errorf("rateLimit: got %v", cfg.rateLimit)
	}
	if cfg.userID != 7 {
		t.Errorf("userID: got %d", cfg.userID)
	}
	if cfg.httpAddr != "" || cfg.heartbeat != 0 {
		t.Errorf("expected http and heartbeat disabled, got %q %v", cfg.httpAddr, cfg.heartbeat)
	}
}

func TestParseFlagsRejectsBadIntervals(t *testing.T) {
	for _, args := range [][]string{
		{"-poll", "0"},
		{"-poll", "-5ms"},
		{"-heartbeat", "-1m"},
	} {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		if _, err := parseFlags(fs, args); err == nil {
			t.Errorf("parseFlags(%v): expected error", args)
		}
	}
}

func TestConfigureAppliesSettings(t *testing.T) {
	clock := gpio.NewFakeClock(0)
	button := gpio.NewFakeButton(clock)
	eb := encoderbutton.New(gpio.NewFakeCounter(), button, clock)

	configure(eb, config{
		debounce:   25 * time.Millisecond,
		multiClick: 300 * time.Millisecond,
		longClick:  time.Second,
		quad:       true,
		idle:       time.Minute,
		userID:     42,
	})

	if button.Interval != 25*time.Millisecond {
		t.Errorf("debounce not forwarded: got %v", button.Interval)
	}
	if !eb.QuadPrecision() {
		t.Error("expected quad precision")
	}
	if eb.UserID() != 42 {
		t.Errorf("UserID: got %d, want 42", eb.UserID())
	}
}

func TestStatusConfig(t *testing.T) {
	sc := statusConfig(config{
		chip:      "gpiochip4",
		pinSwitch: -1,
		poll:      5 * time.Millisecond,
		longClick: 750 * time.Millisecond,
		heartbeat: 15 * time.Minute,
		broker:    "tcp://broker:1883",
	})
	if sc.Chip != "gpiochip4" || sc.PinSwitch != -1 {
		t.Errorf("pins: got %+v", sc)
	}
	if sc.PollMs != 5 || sc.LongClickMs != 750 || sc.HeartbeatMs != 900000 {
		t.Errorf("intervals: got poll=%d long=%d hb=%d", sc.PollMs, sc.LongClickMs, sc.HeartbeatMs)
	}
	if sc.Broker != "tcp://broker:1883" {
		t.Errorf("Broker: got %q", sc.Broker)
	}
}

func TestSwitchString(t *testing.T) {
	if switchString(true) != "RELEASED" || switchString(false) != "PRESSED" {
		t.Error("unexpected switch labels")
	}
}

// --- loop tests ---

// rig drives a loop deterministically. Every hardware change happens inside
// now(), which the loop calls from its own goroutine: call 0 at loop start,
// call k at tick k, and the final call at shutdown. Each call also advances
// the classifier clock by step.
type rig struct {
	start time.Time
	step  time.Duration

	clock   *gpio.FakeClock
	counter *gpio.FakeCounter
	button  *gpio.FakeButton

	eb      *encoderbutton.EncoderButton
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	logs    bytes.Buffer

	steps map[int]func()
	calls int
}

func newRig(step time.Duration) *rig {
	r := &rig{
		start:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		step:    step,
		clock:   gpio.NewFakeClock(100000),
		counter: gpio.NewFakeCounter(),
		pub:     mqtt.NewFakePublisher(),
		steps:   make(map[int]func()),
	}
	r.button = gpio.NewFakeButton(r.clock)
	r.eb = encoderbutton.New(r.counter, r.button, r.clock)
	r.tracker = status.NewTracker(r.start, status.Config{PinSwitch: gpio.DefaultPinSwitch})
	return r
}

// at schedules f to run on the k-th call to now.
func (r *rig) at(k int, f func()) { r.steps[k] = f }

func (r *rig) now() time.Time {
	i := r.calls
	r.calls++
	r.clock.Advance(r.step)
	if f := r.steps[i]; f != nil {
		f()
	}
	return r.start.Add(time.Duration(i) * r.step)
}

func (r *rig) newLoop(heartbeat time.Duration) *loop {
	return &loop{
		eb:         r.eb,
		publisher:  r.pub,
		mqttStatus: r.pub,
		tracker:    r.tracker,
		heartbeat:  heartbeat,
		logger:     slog.New(slog.NewTextHandler(&r.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		now:        r.now,
	}
}

// runRunLoop drives l for nTicks and then delivers signal.
func runRunLoop(t *testing.T, l *loop, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.run(tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func eventTypes(events []mqtt.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type.String()
	}
	return out
}

func TestRunLoopNoEventsWhenQuiet(t *testing.T) {
	r := newRig(100 * time.Millisecond)

	if err := runRunLoop(t, r.newLoop(0), 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.Events) != 0 {
		t.Errorf("expected 0 input events, got %v", eventTypes(r.pub.Events))
	}
	if got := r.pub.SystemEventNames(); len(got) != 1 || got[0] != "SHUTDOWN" {
		t.Errorf("system events: got %v, want [SHUTDOWN]", got)
	}
}

func TestRunLoopSingleClick(t *testing.T) {
	r := newRig(100 * time.Millisecond)
	r.at(1, r.button.Press)
	r.at(2, r.button.Release)

	if err := runRunLoop(t, r.newLoop(0), 6, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []string{"CHANGED", "PRESSED", "CHANGED", "RELEASED", "CLICK"}
	got := eventTypes(r.pub.Events)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	if r.pub.Events[4].ClickCount != 1 {
		t.Errorf("ClickCount: got %d, want 1", r.pub.Events[4].ClickCount)
	}
	wantTS := r.start.Add(5 * r.step)
	if !r.pub.Events[4].Timestamp.Equal(wantTS) {
		t.Errorf("CLICK timestamp: got %v, want %v", r.pub.Events[4].Timestamp, wantTS)
	}

	snap := r.tracker.Snapshot()
	if snap.Counts[encoderbutton.EventClick] != 1 || snap.Counts[encoderbutton.EventPressed] != 1 {
		t.Errorf("tracker counts: got %v", snap.Counts)
	}
	if snap.LastEvent == nil || snap.LastEvent.Event != encoderbutton.EventClick {
		t.Errorf("LastEvent: got %+v", snap.LastEvent)
	}
	if snap.Input.Pressed {
		t.Error("expected switch released in tracker")
	}
}

func TestRunLoopDoubleClick(t *testing.T) {
	r := newRig(100 * time.Millisecond)
	r.at(1, r.button.Press)
	r.at(2, r.button.Release)
	r.at(3, r.button.Press)
	r.at(4, r.button.Release)

	if err := runRunLoop(t, r.newLoop(0), 8, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	last := r.pub.Events[len(r.pub.Events)-1]
	if last.Type != encoderbutton.EventDoubleClick || last.ClickCount != 2 {
		t.Errorf("last event: got %s clicks=%d, want DOUBLE_CLICK clicks=2", last.Type, last.ClickCount)
	}
	for _, e := range r.pub.Events {
		if e.Type == encoderbutton.EventClick {
			t.Error("CLICK fired alongside DOUBLE_CLICK")
		}
	}
}

func TestRunLoopEncoderTurn(t *testing.T) {
	r := newRig(100 * time.Millisecond)
	r.at(1, func() { r.counter.Turn(8) })
	r.at(3, func() { r.counter.Turn(-4) })

	if err := runRunLoop(t, r.newLoop(0), 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.Events) != 2 {
		t.Fatalf("expected 2 events, got %v", eventTypes(r.pub.Events))
	}
	first, second := r.pub.Events[0], r.pub.Events[1]
	if first.Type != encoderbutton.EventEncoder || first.Increment != 2 || first.Position != 2 {
		t.Errorf("first: got %s inc=%d pos=%d", first.Type, first.Increment, first.Position)
	}
	if second.Increment != -1 || second.Position != 1 {
		t.Errorf("second: got inc=%d pos=%d", second.Increment, second.Position)
	}
	if got := r.tracker.Snapshot().Input.Position; got != 1 {
		t.Errorf("tracker position: got %d, want 1", got)
	}
}

func TestRunLoopTurnWhilePressed(t *testing.T) {
	r := newRig(100 * time.Millisecond)
	r.at(1, r.button.Press)
	r.at(2, func() { r.counter.Turn(4) })
	r.at(3, r.button.Release)

	if err := runRunLoop(t, r.newLoop(0), 8, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []string{"CHANGED", "PRESSED", "ENCODER_PRESSED", "CHANGED", "ENCODER_RELEASED"}
	got := eventTypes(r.pub.Events)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	if r.pub.Events[2].PressedPosition != 1 || r.pub.Events[2].Position != 0 {
		t.Errorf("ENCODER_PRESSED positions: got pos=%d pressed=%d", r.pub.Events[2].Position, r.pub.Events[2].PressedPosition)
	}
}

func TestRunLoopIdle(t *testing.T) {
	r := newRig(6 * time.Second)

	if err := runRunLoop(t, r.newLoop(0), 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	got := eventTypes(r.pub.Events)
	if len(got) != 1 || got[0] != "IDLE" {
		t.Errorf("events: got %v, want [IDLE]", got)
	}
}

func TestRunLoopGPIOReadError(t *testing.T) {
	r := newRig(100 * time.Millisecond)
	line := gpio.NewFakeLine(1)
	bounce := gpio.NewBounce(line, r.clock)
	r.eb = encoderbutton.New(r.counter, bounce, r.clock)

	fault := errors.New("gpio fault")
	setErr := func(err error) func() {
		return func() {
			line.Set(1)
			line.ReadError = err
		}
	}
	r.at(2, setErr(fault))
	r.at(4, setErr(nil))

	l := r.newLoop(0)
	l.readErrs = bounce
	if err := runRunLoop(t, l, 6, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	logs := r.logs.String()
	if n := strings.Count(logs, "gpio read error"); n != 1 {
		t.Errorf("expected 1 read error log, got %d:\n%s", n, logs)
	}
	if n := strings.Count(logs, "gpio reads recovered"); n != 1 {
		t.Errorf("expected 1 recovery log, got %d:\n%s", n, logs)
	}
	if len(r.pub.Events) != 0 {
		t.Errorf("read errors must not produce input events, got %v", eventTypes(r.pub.Events))
	}
	if got := r.pub.SystemEventNames(); len(got) != 1 || got[0] != "SHUTDOWN" {
		t.Errorf("system events: got %v", got)
	}
}

func TestRunLoopDebouncedPress(t *testing.T) {
	r := newRig(5 * time.Millisecond)
	line := gpio.NewFakeLine(1)
	bounce := gpio.NewBounce(line, r.clock)
	r.eb = encoderbutton.New(r.counter, bounce, r.clock)

	// A 5ms glitch then a held press.
	r.at(1, func() { line.Set(0) })
	r.at(2, func() { line.Set(1) })
	r.at(4, func() { line.Set(0) })

	if err := runRunLoop(t, r.newLoop(0), 10, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var pressed int
	for _, e := range r.pub.Events {
		if e.Type == encoderbutton.EventPressed {
			pressed++
		}
	}
	if pressed != 1 {
		t.Errorf("expected 1 PRESSED, got %v", eventTypes(r.pub.Events))
	}
	if !r.tracker.Snapshot().Input.Pressed {
		t.Error("expected tracker to report the switch pressed")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// Clock calls: t0 at start, then +5m per tick. The 15m heartbeat is due
	// at tick 3 and not again before tick 6.
	r := newRig(5 * time.Minute)

	if err := runRunLoop(t, r.newLoop(15*time.Minute), 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats, shutdowns int
	for i, se := range r.pub.SystemEvents {
		switch se.Event {
		case "HEARTBEAT":
			heartbeats++
			payload := string(r.pub.SystemPayloads[i])
			if !strings.Contains(payload, `"event":"HEARTBEAT"`) {
				t.Errorf("heartbeat payload missing event: %s", payload)
			}
			if !strings.Contains(payload, `"uptime_seconds":900`) {
				t.Errorf("heartbeat payload uptime: %s", payload)
			}
		case "SHUTDOWN":
			shutdowns++
		}
	}
	if heartbeats != 1 {
		t.Errorf("expected 1 HEARTBEAT event, got %d", heartbeats)
	}
	if shutdowns != 1 {
		t.Errorf("expected 1 SHUTDOWN event, got %d", shutdowns)
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	r := newRig(time.Hour)

	if err := runRunLoop(t, r.newLoop(0), 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	for _, name := range r.pub.SystemEventNames() {
		if name == "HEARTBEAT" {
			t.Error("unexpected HEARTBEAT with heartbeat disabled")
		}
	}
}

func TestRunLoopPublishError(t *testing.T) {
	r := newRig(100 * time.Millisecond)
	r.pub.PublishError = fmt.Errorf("broker unavailable")
	r.at(1, func() { r.counter.Turn(4) })

	if err := runRunLoop(t, r.newLoop(0), 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.Events) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(r.pub.Events))
	}
	// Local status still sees the event.
	if got := r.tracker.Snapshot().Counts[encoderbutton.EventEncoder]; got != 1 {
		t.Errorf("tracker ENCODER count: got %d, want 1", got)
	}
	if !strings.Contains(r.logs.String(), "publish error") {
		t.Error("expected publish error to be logged")
	}
	if got := r.pub.SystemEventNames(); len(got) != 1 || got[0] != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN despite publish errors, got %v", got)
	}
}

func TestRunLoopTracksMQTTStatus(t *testing.T) {
	r := newRig(100 * time.Millisecond)
	r.pub.Connected = true

	if err := runRunLoop(t, r.newLoop(0), 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if !r.tracker.Snapshot().MQTTConnected {
		t.Error("expected tracker to report MQTT connected")
	}
}

func TestRunLoopShutdownSignals(t *testing.T) {
	for _, tc := range []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			r := newRig(100 * time.Millisecond)

			if err := runRunLoop(t, r.newLoop(0), 2, tc.sig); err != nil {
				t.Fatalf("runLoop returned error: %v", err)
			}
			if len(r.pub.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(r.pub.SystemEvents))
			}
			se := r.pub.SystemEvents[0]
			if se.Event != "SHUTDOWN" || se.Reason != tc.want || !se.Retained {
				t.Errorf("got %+v", se)
			}
			if !se.Timestamp.Equal(r.start.Add(3 * r.step)) {
				t.Errorf("timestamp: got %v", se.Timestamp)
			}
			payload := string(r.pub.SystemPayloads[0])
			if !strings.Contains(payload, `"reason":"`+tc.want+`"`) {
				t.Errorf("payload missing reason: %s", payload)
			}
		})
	}
}

func TestRunLoopWithoutTracker(t *testing.T) {
	r := newRig(100 * time.Millisecond)
	l := r.newLoop(15 * time.Minute)
	l.tracker = nil
	r.at(1, func() { r.counter.Turn(4) })

	if err := runRunLoop(t, l, 2, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(r.pub.Events) != 1 {
		t.Errorf("expected 1 event, got %v", eventTypes(r.pub.Events))
	}
	if len(r.pub.SystemPayloads) != 1 || !strings.Contains(string(r.pub.SystemPayloads[0]), "SHUTDOWN") {
		t.Errorf("unexpected system payloads: %q", r.pub.SystemPayloads)
	}
}
