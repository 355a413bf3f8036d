// internal/core/domain/scan.go
package domain

import (
	"fmt"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/platform/validator"
)

// ScanStatus define el estado del ciclo de vida de un escaneo.
type ScanStatus string

const (
	// ScanStatusPending escaneo creado, aún sin arrancar
	ScanStatusPending ScanStatus = "pending"

	// ScanStatusRunning escaneo en ejecución
	ScanStatusRunning ScanStatus = "running"

	// ScanStatusCompleted todas las herramientas terminaron
	ScanStatusCompleted ScanStatus = "completed"

	// ScanStatusFailed el escaneo no pudo ejecutarse
	ScanStatusFailed ScanStatus = "failed"

	// ScanStatusStopped detenido por el usuario
	ScanStatusStopped ScanStatus = "stopped"
)

// IsValid verifica si el estado es válido.
func (s ScanStatus) IsValid() bool {
	switch s {
	case ScanStatusPending, ScanStatusRunning, ScanStatusCompleted, ScanStatusFailed, ScanStatusStopped:
		return true
	default:
		return false
	}
}

// Terminal reporta si el estado es final.
func (s ScanStatus) Terminal() bool {
	switch s {
	case ScanStatusCompleted, ScanStatusFailed, ScanStatusStopped:
		return true
	default:
		return false
	}
}

// String retorna la representación string del estado.
func (s ScanStatus) String() string {
	return string(s)
}

// Scan representa una ejecución de enumeración contra un dominio.
type Scan struct {
	ID     uint
	Domain string
	Status ScanStatus

	// CurrentTool es la herramienta en ejecución (nil entre herramientas).
	CurrentTool *string

	// CompletedTools nombres de herramientas que ya terminaron, en orden.
	CompletedTools []string

	// TotalTools herramientas habilitadas al arrancar; fija el denominador
	// del progreso aunque el catálogo cambie a mitad de escaneo.
	TotalTools int

	// SubdomainCount total de subdominios enlazados, recalculado al finalizar.
	SubdomainCount int

	StartedAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// NewScan crea un escaneo en estado pending para un dominio ya normalizado.
func NewScan(domain string) *Scan {
	return &Scan{
		Domain:         validator.NormalizeDomain(domain),
		Status:         ScanStatusPending,
		CompletedTools: []string{},
	}
}

// Validate verifica que el escaneo sea válido.
func (s *Scan) Validate() error {
	if s.Domain == "" {
		return ErrEmptyDomain
	}
	if !validator.IsDomain(s.Domain) {
		return fmt.Errorf("%w: %s", ErrInvalidDomain, s.Domain)
	}
	if !validator.IsRegistrable(s.Domain) {
		return fmt.Errorf("%w: %s", ErrUnregistrableDomain, s.Domain)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidScanStatus, s.Status)
	}
	return nil
}

// Stoppable reporta si el escaneo admite una petición de stop.
func (s *Scan) Stoppable() bool {
	return s.Status == ScanStatusPending || s.Status == ScanStatusRunning
}

// MarkToolDone registra una herramienta terminada sin duplicados.
func (s *Scan) MarkToolDone(tool string) {
	for _, t := range s.CompletedTools {
		if t == tool {
			return
		}
	}
	s.CompletedTools = append(s.CompletedTools, tool)
}

// Duration retorna la duración del escaneo, o cero si sigue en curso.
func (s *Scan) Duration() time.Duration {
	if s.CompletedAt == nil || s.StartedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// String retorna una representación legible del escaneo.
func (s *Scan) String() string {
	return fmt.Sprintf("Scan{id=%d, domain=%s, status=%s, subdomains=%d}",
		s.ID, s.Domain, s.Status, s.SubdomainCount)
}
