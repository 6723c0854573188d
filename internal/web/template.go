package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/fridge-sensor/internal/logic"
	"github.com/sweeney/fridge-sensor/internal/settings"
	"github.com/sweeney/fridge-sensor/internal/status"
)

var funcs = template.FuncMap{
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
	"temp": func(v float64) string {
		return fmt.Sprintf("%.1f°C", v)
	},
	"optTemp": func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"bytes": func(n uint64) string {
		const unit = 1024
		if n < unit {
			return fmt.Sprintf("%d B", n)
		}
		div, exp := uint64(unit), 0
		for m := n / unit; m >= unit; m /= unit {
			div *= unit
			exp++
		}
		return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
	},
}

var pages = template.Must(template.New("pages").Funcs(funcs).Parse(layoutHTML + indexHTML + configHTML + systemHTML))

const layoutHTML = `{{define "head"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Fridge Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
nav a { margin-right: 1em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
input, select { font-family: monospace; width: 100%; box-sizing: border-box; }
input[type=checkbox] { width: auto; }
.asserted { color: red; font-weight: bold; }
.clear { color: green; }
.connected { color: green; }
.disconnected { color: red; }
#result { white-space: pre-wrap; }
</style>
</head>
<body>
<h1>Fridge Sensor</h1>
<nav><a href="/">Status</a><a href="/config">Config</a><a href="/system">System</a></nav>
{{end}}
{{define "foot"}}</body>
</html>
{{end}}`

const indexHTML = `{{define "index"}}{{template "head"}}
<h2>{{.Settings.Hostname}}</h2>
<table>
<tr><th>Temperature</th><td>{{if .HasTemp}}{{temp .Temp}}{{else}}no reading{{end}}</td></tr>
<tr><th>Alarm</th><td class="{{if eq .Alarm "ASSERTED"}}asserted{{else}}clear{{end}}">{{.Alarm}}</td></tr>
<tr><th>Threshold</th><td>{{temp .Thresholds.Target}} (clears below {{temp .Thresholds.ClearBelow}})</td></tr>
{{if .Extrema.HasMin}}<tr><th>Min</th><td>{{temp .Extrema.Min}}</td></tr>{{end}}
{{if .Extrema.HasMax}}<tr><th>Max</th><td>{{temp .Extrema.Max}}</td></tr>{{end}}
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
{{if not .LastSample.IsZero}}<tr><th>Last sample</th><td>{{.LastSample.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Mode}}{{if .Network.SSID}} ({{.Network.SSID}}){{end}}</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Samples</th><td>{{.Counts.Samples}}</td></tr>
<tr><th>Disconnected</th><td>{{.Counts.Disconnected}}</td></tr>
<tr><th>Alarm ON</th><td>{{.Counts.AlarmOn}}</td></tr>
<tr><th>Alarm OFF</th><td>{{.Counts.AlarmOff}}</td></tr>
</table>

<h2>Daemon</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sample</th><td>{{.Config.SampleMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Store</th><td>{{.Config.Store}}</td></tr>
<tr><th>Version</th><td>{{.Config.Version}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{template "foot"}}{{end}}`

const configHTML = `{{define "config"}}{{template "head"}}
<form id="config">
<table>
<tr><th>Mode</th><td><select name="MODE">{{range .Modes}}<option value="{{.}}"{{if eq . $.Config.Mode}} selected{{end}}>{{.}}</option>{{end}}</select></td></tr>
<tr><th>Hostname</th><td><input name="HOSTNAME" value="{{.Config.Hostname}}"></td></tr>
<tr><th>WiFi SSID</th><td><input name="WIFI_STA_SSID" value="{{.Config.WifiSTASSID}}"></td></tr>
<tr><th>WiFi password</th><td><input name="WIFI_STA_PW" type="password" value="{{.Config.WifiSTAPassword}}"></td></tr>
<tr><th>Setup SSID</th><td><input name="WIFI_AP_SSID" value="{{.Config.WifiAPSSID}}"></td></tr>
<tr><th>Target °C</th><td><input name="TARGET_TEMP" value="{{.Config.TargetTemp}}"></td></tr>
<tr><th>Hysteresis °C</th><td><input name="HYSTERESIS" value="{{.Config.Hysteresis}}"></td></tr>
<tr><th>Min °C</th><td><input name="MIN_TEMP" value="{{optTemp .Config.MinTemp}}"></td></tr>
<tr><th>Max °C</th><td><input name="MAX_TEMP" value="{{optTemp .Config.MaxTemp}}"></td></tr>
<tr><th>Reminder (min)</th><td><input name="REMINDER" value="{{.Config.ReminderMinutes}}"></td></tr>
<tr><th>Deep sleep (min)</th><td><input name="DEEP_SLEEP_INTERVAL" value="{{.Config.DeepSleepMinutes}}"></td></tr>
<tr><th>Notifications</th><td><input type="hidden" name="NOTIFICATION" value="false"><input type="checkbox" name="NOTIFICATION" value="true"{{if .Config.Notification}} checked{{end}}></td></tr>
<tr><th>Phone 1</th><td><input name="PHONE_NUMBER_1" value="{{.Config.PhoneNumber1}}"></td></tr>
<tr><th>API key 1</th><td><input name="API_KEY_1" value="{{.Config.APIKey1}}"></td></tr>
<tr><th>Phone 2</th><td><input name="PHONE_NUMBER_2" value="{{.Config.PhoneNumber2}}"></td></tr>
<tr><th>API key 2</th><td><input name="API_KEY_2" value="{{.Config.APIKey2}}"></td></tr>
<tr><th>Phone 3</th><td><input name="PHONE_NUMBER_3" value="{{.Config.PhoneNumber3}}"></td></tr>
<tr><th>API key 3</th><td><input name="API_KEY_3" value="{{.Config.APIKey3}}"></td></tr>
</table>
<button type="submit">Save</button>
</form>
<p id="result"></p>

<h2>Firmware</h2>
<form method="post" action="/update" enctype="multipart/form-data">
<input type="file" name="firmware">
<button type="submit">Upload</button>
</form>
<script>
document.getElementById("config").addEventListener("submit", function(e) {
  e.preventDefault();
  var out = document.getElementById("result");
  fetch("/getdata", { method: "POST", body: new URLSearchParams(new FormData(e.target)) })
    .then(function(r) {
      out.textContent = r.ok ? "Saved." : "Rejected: " + r.headers.get("X-Config-Errors");
    })
    .catch(function(err) { out.textContent = "Error: " + err; });
});
</script>
{{template "foot"}}{{end}}`

const systemHTML = `{{define "system"}}{{template "head"}}
<table>
<tr><th>Chip</th><td>{{.ChipModel}}</td></tr>
<tr><th>Cores</th><td>{{.Cores}}</td></tr>
<tr><th>Go</th><td>{{.GoVersion}}</td></tr>
<tr><th>Heap in use</th><td>{{bytes .HeapInUse}}</td></tr>
<tr><th>Heap total</th><td>{{bytes .HeapTotal}}</td></tr>
<tr><th>Executable</th><td>{{.ExecutableSize}} bytes</td></tr>
<tr><th>Storage</th><td>{{bytes .StorageUsed}} / {{bytes .StorageTotal}}</td></tr>
<tr><th>Network</th><td>{{.NetworkMode}}{{if .SSID}} ({{.SSID}}){{end}}</td></tr>
<tr><th>IP</th><td>{{.IP}}</td></tr>
{{if .RSSI}}<tr><th>RSSI</th><td>{{.RSSI}} dBm</td></tr>{{end}}
<tr><th>Uptime</th><td>{{.UptimeSeconds}}s</td></tr>
<tr><th>Version</th><td>{{.Version}}</td></tr>
</table>
<p><a href="/getsys">JSON</a></p>
{{template "foot"}}{{end}}`

func renderIndex(w io.Writer, snap status.Snapshot, cfg settings.Config) error {
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Settings settings.Config
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Settings: cfg,
	}
	return pages.ExecuteTemplate(w, "index", data)
}

func renderConfig(w io.Writer, cfg settings.Config) error {
	data := struct {
		Config settings.Config
		Modes  []logic.Mode
	}{
		Config: cfg,
		Modes:  []logic.Mode{logic.ModeNormal, logic.ModeConfig, logic.ModeDeepSleep},
	}
	return pages.ExecuteTemplate(w, "config", data)
}

func renderSystem(w io.Writer, info status.SystemInfo) error {
	return pages.ExecuteTemplate(w, "system", info)
}
