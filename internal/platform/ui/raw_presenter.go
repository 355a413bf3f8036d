// internal/platform/ui/raw_presenter.go
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// RawPresenter escribe el escaneo como líneas planas con marca de tiempo,
// una por evento. Es el presenter de las tuberías y los ficheros: sin
// colores, sin cajas, estable para grep.
type RawPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewRawPresenter crea el presenter de líneas planas sobre w.
func NewRawPresenter(w io.Writer) *RawPresenter {
	return &RawPresenter{w: w}
}

func (r *RawPresenter) emit(level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp := time.Now().UTC().Format(time.RFC3339)
	fmt.Fprintf(r.w, "%s %-5s %s\n", stamp, level, text)
}

// Start escribe la cabecera del escaneo.
func (r *RawPresenter) Start(info ScanInfo) {
	r.emit("INFO", fmt.Sprintf("scan started target=%s scan_id=%d tools=%s pipelines=%s",
		info.Target,
		info.ScanID,
		joinOrNone(info.Individual),
		joinOrNone(info.Pipelines),
	))
}

// Line escribe una línea del feed tal cual.
func (r *RawPresenter) Line(text string) {
	r.emit("FEED", text)
}

// Info escribe un mensaje informativo.
func (r *RawPresenter) Info(msg string) {
	r.emit("INFO", msg)
}

// Warning escribe una advertencia.
func (r *RawPresenter) Warning(msg string) {
	r.emit("WARN", msg)
}

// Error escribe un error.
func (r *RawPresenter) Error(msg string) {
	r.emit("ERROR", msg)
}

// Finish escribe el resumen final en una sola línea parseable.
func (r *RawPresenter) Finish(summary ScanSummary) {
	line := fmt.Sprintf("scan finished status=%s duration=%s subdomains=%d tools=%d/%d",
		summary.Status,
		summary.Duration.Round(time.Millisecond),
		summary.Subdomains,
		summary.ToolsDone,
		summary.ToolsTotal,
	)
	for _, state := range sortedKeys(summary.ByState) {
		line += fmt.Sprintf(" %s=%d", state, summary.ByState[state])
	}
	r.emit("INFO", line)
}

// Close no retiene recursos.
func (r *RawPresenter) Close() error {
	return nil
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
