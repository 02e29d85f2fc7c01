package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/status"
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
	"percent": func(duty uint8) string {
		return fmt.Sprintf("%.1f%%", float64(duty)*100/255)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>RC LED Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.out { color: orange; }
.none { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>RC LED Controller</h1>

<h2>Output</h2>
<table>
<tr><th>Mode</th><td>{{.Mode}} ({{printf "%c" .Mode.Digit}})</td></tr>
<tr><th>Duty</th><td id="duty">{{.Duty}} / 255 ({{percent .Duty}})</td></tr>
{{if .Last}}<tr><th>Last width</th><td id="width">{{.Last.Width}}</td></tr>
<tr><th>Last band</th><td id="band" class="{{if eq .Last.Label "-"}}out{{end}}">{{.Last.Band}} ({{.Last.Label}})</td></tr>
<tr><th>Last seen</th><td>{{.Last.At.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Last width</th><td id="width" class="none">no pulse yet</td></tr>{{end}}
</table>

<h2>Pulse Counts</h2>
<table>
<tr><th>Total</th><td>{{.Counts.Pulses}}</td></tr>
{{range .Bands}}<tr><th>{{.Name}}</th><td>{{.Count}}</td></tr>
{{end}}<tr><th>Below range</th><td>{{.Counts.BelowRange}}</td></tr>
<tr><th>Above range</th><td>{{.Counts.AboveRange}}</td></tr>
<tr><th>Between bands</th><td>{{.Counts.Gap}}</td></tr>
<tr><th>Dropped edges</th><td>{{.Counts.DroppedEdges}}</td></tr>
<tr><th>Resyncs</th><td>{{.Capture.Resyncs}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Reports not published</th><td>{{.MQTTDropped}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Serial</th><td>{{.Config.Sink}} @ {{.Config.BaudRate}} baud</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Mapping</th><td>{{.Config.Mapping}} (out of range: {{.Config.OutOfRange}})</td></tr>
<tr><th>Clock read</th><td>{{.Config.ClockRead}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">Full status (JSON)</a> | <a href="/pulse.json">Last pulse (JSON)</a></p>
</body>
</html>
`

type bandRow struct {
	Name  string
	Count int
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Bands  []bandRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for i, name := range snap.BandNames {
		row := bandRow{Name: name}
		if i < len(snap.Counts.Bands) {
			row.Count = snap.Counts.Bands[i]
		}
		data.Bands = append(data.Bands, row)
	}
	return indexTmpl.Execute(w, data)
}
