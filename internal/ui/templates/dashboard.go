// Package templates holds the server-rendered dashboard shell. Everything
// dynamic arrives over the datastar SSE endpoints; the shell only lays out
// the containers and signals they patch.
package templates

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

type dashboardData struct {
	Timezones []string
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>Transaction Analytics</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.2/bundles/datastar.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #f6f7f9; }
header { display: flex; gap: 1rem; align-items: center; padding: 1rem 2rem; background: #fff; border-bottom: 1px solid #e3e5e8; }
main { padding: 1.5rem 2rem; display: grid; gap: 1.5rem; }
.kpi-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(140px, 1fr)); gap: 1rem; }
.kpi-card { background: #fff; border-radius: 8px; padding: 1rem; display: flex; flex-direction: column; gap: .25rem; }
.kpi-label { color: #6b7280; font-size: .8rem; }
.modern-table { width: 100%; border-collapse: collapse; background: #fff; border-radius: 8px; }
.modern-table th, .modern-table td { padding: .5rem .75rem; text-align: left; border-bottom: 1px solid #eef0f2; }
</style>
</head>
<body data-signals="{countriesData: [], hourlyData: [], dailyData: [], weeklyData: [], monthlyData: [], statusData: [], insightsData: [], countryDetail: null, granularity: 'monthly', timezone: 'UTC'}">
<header>
<h1>Transaction Analytics</h1>
<form id="upload-form" enctype="multipart/form-data" data-on-submit="@post('/api/upload', {contentType: 'form'})">
<input type="file" name="file" accept=".csv"/>
<button type="submit">Upload</button>
</form>
<select id="timezone-select" data-on-change="@put('/api/timezone', {body: {timezone: evt.target.value}})">
{{range .Timezones}}<option value="{{.}}">{{.}}</option>
{{end}}</select>
</header>
<main data-on-load="@get('/sse/dashboard')">
<section id="kpi-content"><p>Upload a file to see metrics.</p></section>
<section id="psp-content"></section>
<section id="country-content" data-show="$countriesData.length > 0"></section>
<section id="timeseries-content"></section>
<section id="insights-content" data-show="$insightsData.length > 0"></section>
</main>
</body>
</html>`))

// Dashboard returns the dashboard shell as a renderable component.
func Dashboard(timezones []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return dashboardTemplate.Execute(w, dashboardData{Timezones: timezones})
	})
}
