// internal/core/domain/errors.go
package domain

import "errors"

// Errores de dominio comunes.
var (
	// Scan errors
	ErrEmptyDomain         = errors.New("domain cannot be empty")
	ErrInvalidDomain       = errors.New("invalid domain format")
	ErrUnregistrableDomain = errors.New("domain has no registrable suffix")
	ErrInvalidScanStatus   = errors.New("invalid scan status")
	ErrScanNotStoppable    = errors.New("scan is not running or pending")
	ErrNoToolsEnabled      = errors.New("no tools enabled for scan")

	// Subdomain errors
	ErrEmptyHostname      = errors.New("hostname cannot be empty")
	ErrInvalidHostname    = errors.New("invalid hostname format")
	ErrInvalidOnlineState = errors.New("invalid online state")

	// Tool errors
	ErrEmptyToolName   = errors.New("tool name cannot be empty")
	ErrInvalidToolKind = errors.New("invalid tool kind")
	ErrInvalidToolSpec = errors.New("invalid tool spec")
	ErrToolNotFound    = errors.New("tool not found")
)
