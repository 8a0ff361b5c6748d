// Package diagnostics implements a read-only observability dashboard for
// a traversal run: a gorilla/mux server exposing /metrics.json and a
// small HTML page. A mounted filesystem's dashboard would let an
// operator flip long-lived runtime booleans over HTTP; deepwalk's
// traversal is one-shot, so there is nothing to mutate here — this is
// strictly a read surface, gated behind --diagnostics-addr on both
// binaries.
package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"slices"
	"sync/atomic"
	"text/template"
	"time"

	"github.com/deepwalk/deepwalk/internal/logging"
	"github.com/deepwalk/deepwalk/internal/traverse"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
)

// Dashboard serves a traversal [traverse.Engine]'s live metrics.
type Dashboard struct {
	engine  *traverse.Engine
	version string
	started time.Time
}

// New returns a [Dashboard] over engine, labeled with version (shown on
// the HTML page and in /metrics.json).
func New(engine *traverse.Engine, version string) *Dashboard {
	return &Dashboard{engine: engine, version: version, started: time.Now()}
}

// Serve starts an HTTP server on addr in a panic-recovering goroutine.
func (d *Dashboard) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: d.router(), ReadHeaderTimeout: 5 * time.Second} //nolint:mnd

	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "(diagnostics) PANIC: %v\n", r)
				debug.PrintStack()
			}
		}()

		logging.Info("serving diagnostics dashboard on %s", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("diagnostics: %v", err)
		}
	}()

	return srv
}

func (d *Dashboard) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", d.indexHandler)
	r.HandleFunc("/metrics.json", d.metricsHandler)

	return r
}

type metricsData struct {
	Version           string   `json:"version"`
	Uptime            string   `json:"uptime"`
	OpenArchives      int64    `json:"openArchives"`
	TotalOpened       int64    `json:"totalOpened"`
	TotalClosed       int64    `json:"totalClosed"`
	ArchiveCacheHits  int64    `json:"archiveCacheHits"`
	ArchiveCacheMiss  int64    `json:"archiveCacheMiss"`
	TotalExtractBytes string   `json:"totalExtractBytes"`
	AllocBytes        string   `json:"allocBytes"`
	SysBytes          string   `json:"sysBytes"`
	NumGC             uint32   `json:"numGc"`
	Logs              []string `json:"logs"`
}

func (d *Dashboard) collect() metricsData {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	lines := logging.Buffer.Lines()
	slices.Reverse(lines)

	return metricsData{
		Version:           d.version,
		Uptime:            humanize.RelTime(d.started, time.Now(), "ago", "from now"),
		OpenArchives:      loadInt64(&d.engine.Metrics.OpenArchives),
		TotalOpened:       loadInt64(&d.engine.Metrics.TotalOpened),
		TotalClosed:       loadInt64(&d.engine.Metrics.TotalClosed),
		ArchiveCacheHits:  loadInt64(&d.engine.Metrics.ArchiveCacheHits),
		ArchiveCacheMiss:  loadInt64(&d.engine.Metrics.ArchiveCacheMiss),
		TotalExtractBytes: humanize.IBytes(uint64(loadInt64(&d.engine.Metrics.TotalExtractBytes))), //nolint:gosec
		AllocBytes:        humanize.IBytes(m.Alloc),
		SysBytes:          humanize.IBytes(m.Sys),
		NumGC:             m.NumGC,
		Logs:              lines,
	}
}

func loadInt64(v *atomic.Int64) int64 { return v.Load() }

func (d *Dashboard) indexHandler(w http.ResponseWriter, _ *http.Request) {
	data := d.collect()

	if err := indexTemplate.Execute(w, data); err != nil {
		logging.Error("diagnostics: template: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (d *Dashboard) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(d.collect()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// indexTemplate is a small inline template rather than an embedded file:
// a one-shot, read-only traversal dashboard has no branding or
// mount-control markup worth a templates/ directory of its own.
var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html><head><title>deepwalk diagnostics ({{.Version}})</title></head>
<body>
<h1>deepwalk diagnostics</h1>
<p>uptime: {{.Uptime}}</p>
<table>
<tr><td>open archives</td><td>{{.OpenArchives}}</td></tr>
<tr><td>total opened</td><td>{{.TotalOpened}}</td></tr>
<tr><td>total closed</td><td>{{.TotalClosed}}</td></tr>
<tr><td>archive cache hits</td><td>{{.ArchiveCacheHits}}</td></tr>
<tr><td>archive cache misses</td><td>{{.ArchiveCacheMiss}}</td></tr>
<tr><td>bytes extracted</td><td>{{.TotalExtractBytes}}</td></tr>
<tr><td>heap alloc</td><td>{{.AllocBytes}}</td></tr>
<tr><td>sys bytes</td><td>{{.SysBytes}}</td></tr>
<tr><td>GC cycles</td><td>{{.NumGC}}</td></tr>
</table>
<h2>recent log lines</h2>
<pre>{{range .Logs}}{{.}}
{{end}}</pre>
</body></html>
`))
