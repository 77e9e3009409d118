package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/gb-reaction/internal/mqtt"
	"github.com/sweeney/gb-reaction/internal/status"
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
	"seconds": func(f float64) string {
		return fmt.Sprintf("%.3fs", f)
	},
	"rounds": func(n int) string {
		if n == 0 {
			return "unlimited"
		}
		return fmt.Sprint(n)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Reaction Host</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.best { color: green; font-weight: bold; }
.error { color: red; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Reaction Host{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Game</h2>
<table>
<tr><th>Phase</th><td>{{.Phase}}</td></tr>
<tr><th>Rounds</th><td>{{.Counts.Rounds}}</td></tr>
<tr><th>Failures</th><td>{{.Counts.Failures}}</td></tr>
<tr><th>Last</th><td id="last-result">{{with .Last}}{{seconds .Seconds}} ({{.Button}}, {{.Ticks}} ticks){{else}}none{{end}}</td></tr>
<tr><th>Best</th><td class="best">{{with .Best}}{{seconds .Seconds}} ({{.Button}}){{else}}none{{end}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="error">{{.LastError}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Round timeout</th><td>{{.Config.RoundTimeoutMs}}ms</td></tr>
<tr><th>Max rounds</th><td>{{rounds .Config.MaxRounds}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
{{if .Config.Pins}}<tr><th>Pins</th><td>{{.Config.Pins}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");
  var lastEl = document.getElementById("last-result");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });
  client.on("connect", function() { setDot("ok", "live"); client.subscribe(topic); });
  client.on("reconnect", function() { setDot("pending", "reconnecting"); });
  client.on("offline", function() { setDot("err", "offline"); });
  client.on("error", function() { setDot("err", "error"); });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.reaction) {
        var r = msg.reaction;
        lastEl.textContent = r.seconds.toFixed(3) + "s (" + r.button + ", " + r.ticks + " ticks)";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

type resultView struct {
	Button  string
	Ticks   uint32
	Seconds float64
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Topic  string
		Last   *resultView
		Best   *resultView
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Topic:    mqtt.Topic,
	}
	if snap.Last != nil {
		data.Last = &resultView{snap.Last.Button.String(), snap.Last.Ticks, snap.Last.Seconds()}
	}
	if snap.Best != nil {
		data.Best = &resultView{snap.Best.Button.String(), snap.Best.Ticks, snap.Best.Seconds()}
	}
	indexTmpl.Execute(w, data)
}
