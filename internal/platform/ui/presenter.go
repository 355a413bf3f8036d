// internal/platform/ui/presenter.go

// Package ui renderiza el progreso de un escaneo en la terminal. El modo
// scan de la CLI consume el mismo feed de líneas que ven los operadores de
// la API; aquí solo se decide cómo pintarlo.
package ui

import (
	"io"
	"os"
	"time"
)

// Presenter pinta el ciclo de vida de un escaneo lanzado desde la CLI.
type Presenter interface {
	// Start pinta la cabecera con los datos del escaneo.
	Start(info ScanInfo)

	// Line pinta una línea del feed de terminal tal como llega.
	Line(text string)

	// Info muestra un mensaje informativo fuera del feed.
	Info(msg string)

	// Warning muestra una advertencia fuera del feed.
	Warning(msg string)

	// Error muestra un error fuera del feed.
	Error(msg string)

	// Finish pinta el resumen final del escaneo.
	Finish(summary ScanSummary)

	// Close libera los recursos del presenter.
	Close() error
}

// ScanInfo contiene los datos iniciales del escaneo.
type ScanInfo struct {
	Target     string
	ScanID     uint
	Individual []string
	Pipelines  []string
	Workers    int
}

// ScanSummary contiene el estado final y los contadores del escaneo.
type ScanSummary struct {
	Status     string
	Duration   time.Duration
	Subdomains int
	ToolsDone  int
	ToolsTotal int

	// ByState cuenta subdominios por estado de liveness. Vacío si las
	// sondas automáticas están apagadas.
	ByState map[string]int
}

// ForWriter elige el presenter adecuado para el destino: pterm cuando es
// una terminal interactiva, líneas planas cuando es una tubería o un
// fichero.
func ForWriter(w io.Writer) Presenter {
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		return NewPTermPresenter()
	}
	return NewRawPresenter(w)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
