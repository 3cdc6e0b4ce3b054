package transport

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/scrapetoapi/scrapetoapi/pkg/health"
)

//go:embed web/templates/*.html web/static/*
var webFS embed.FS

var indexTemplate = template.Must(template.ParseFS(webFS, "web/templates/index.html"))

func (t *HTTPTransport) handleRoot(w http.ResponseWriter, r *http.Request) {
	docsURL := "Docs disabled in production"
	if t.debug {
		docsURL = "/docs"
	}
	t.sendJSON(w, http.StatusOK, map[string]interface{}{
		"message":  t.serviceName + " is running!",
		"status":   "healthy",
		"docs_url": docsURL,
	})
}

// handleHealth answers 503 only when a monitored component is unhealthy.
// Components that have not been checked yet do not fail the probe.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := health.StatusHealthy
	httpStatus := http.StatusOK
	if t.health != nil {
		if overall := t.health.GetHealth(); overall.Status == health.StatusUnhealthy {
			status = health.StatusUnhealthy
			httpStatus = http.StatusServiceUnavailable
		}
	}

	t.sendJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"service":   t.serviceName,
		"timestamp": epochSeconds(time.Now()),
	})
}

func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	if t.health == nil {
		t.sendJSON(w, http.StatusOK, health.ReadinessStatus{Ready: true, Timestamp: time.Now(), Checks: []health.ReadinessCheck{}})
		return
	}

	readiness := t.health.GetReadiness()
	status := http.StatusOK
	if !readiness.Ready {
		status = http.StatusServiceUnavailable
	}
	t.sendJSON(w, status, readiness)
}

// handleDebug reports what the process sees of its deployment.
func (t *HTTPTransport) handleDebug(w http.ResponseWriter, r *http.Request) {
	wd, err := os.Getwd()
	if err != nil {
		wd = ""
	}

	var files []string
	if entries, err := os.ReadDir("."); err == nil {
		for _, e := range entries {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	t.sendJSON(w, http.StatusOK, map[string]interface{}{
		"port":              t.port,
		"templates_exist":   embeddedDirExists("web/templates"),
		"static_exist":      embeddedDirExists("web/static"),
		"working_directory": wd,
		"files":             files,
	})
}

func (t *HTTPTransport) handleApp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		ServiceName string
	}{t.serviceName}
	if err := indexTemplate.Execute(w, data); err != nil {
		t.logger.Error().Err(err).Msg("Failed to render index template")
	}
}

func (t *HTTPTransport) staticHandler() http.Handler {
	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(static)))
}

func embeddedDirExists(dir string) bool {
	entries, err := fs.ReadDir(webFS, dir)
	return err == nil && len(entries) > 0
}
