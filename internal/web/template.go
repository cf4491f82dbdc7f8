package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/encoder-button/encoderbutton"
	"github.com/sweeney/encoder-button/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"pin": func(p int) string {
		if p < 0 {
			return "none"
		}
		return fmt.Sprintf("GPIO%d", p)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Encoder Button</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pressed { color: green; font-weight: bold; }
.released { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Encoder Button<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Input</h2>
<table>
<tr><th>Position</th><td id="position">{{.Input.Position}}</td></tr>
<tr><th>Pressed position</th><td id="pressed-position">{{.Input.PressedPosition}}</td></tr>
<tr><th>Switch</th><td class="{{if .Input.Pressed}}pressed{{else}}released{{end}}">{{if .Input.Pressed}}pressed{{else}}released{{end}}</td></tr>
<tr><th>Enabled</th><td>{{if .Input.Enabled}}yes{{else}}no{{end}}</td></tr>
<tr><th>Last event</th><td id="last-event">{{if .LastEvent}}{{.LastEvent.Event}}{{else}}none{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
{{range .Counts}}<tr><th>{{.Name}}</th><td>{{.Count}}</td></tr>
{{end}}</table>

<h2>Recent Events</h2>
<table id="recent">
{{range .Events}}<tr><th>{{.Timestamp}}</th><td>{{.Event}} pos={{.Position}} inc={{.Increment}} clicks={{.ClickCount}}</td></tr>
{{else}}<tr><td>none yet</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pins</th><td>{{.Config.Chip}} A={{pin .Config.PinA}} B={{pin .Config.PinB}} SW={{pin .Config.PinSwitch}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Multi click</th><td>{{.Config.MultiClickMs}}ms</td></tr>
<tr><th>Long click</th><td>{{.Config.LongClickMs}}ms{{if .Config.LongPressRepeat}} (repeat){{end}}</td></tr>
<tr><th>Rate limit</th><td>{{if eq .Config.RateLimitMs 0}}off{{else}}{{.Config.RateLimitMs}}ms{{end}}</td></tr>
<tr><th>Idle</th><td>{{.Config.IdleMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/events.json">Events</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var posEl = document.getElementById("position");
  var pressedEl = document.getElementById("pressed-position");
  var lastEl = document.getElementById("last-event");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(m) {
      try {
        var msg = JSON.parse(m.data);
        if (msg.type === "event" && msg.data) {
          posEl.textContent = msg.data.position;
          pressedEl.textContent = msg.data.pressed_position;
          lastEl.textContent = msg.data.event;
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

type countRow struct {
	Name  string
	Count int
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	counts := make([]countRow, 0, len(encoderbutton.Events()))
	for _, e := range encoderbutton.Events() {
		counts = append(counts, countRow{Name: e.String(), Count: snap.Counts[e]})
	}
	events := make([]status.EventJSON, 0, len(snap.Recent))
	for i := len(snap.Recent) - 1; i >= 0; i-- {
		events = append(events, status.NewEventJSON(snap.Recent[i]))
	}

	// Snapshot has Uptime() and Counts, so the template needs fields that shadow them.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Counts []countRow
		Events []status.EventJSON
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Counts:   counts,
		Events:   events,
	}
	indexTmpl.Execute(w, data)
}
