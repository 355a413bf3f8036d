// internal/core/ports/exporter.go
package ports

import (
	"io"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
)

// Exporter es el port para volcar subdominios en un formato concreto.
type Exporter interface {
	// Name retorna el nombre del formato (ej: "txt", "json", "csv").
	Name() string

	// ContentType retorna el MIME type del formato.
	ContentType() string

	// Export escribe los subdominios en el writer.
	Export(w io.Writer, subs []*domain.Subdomain) error
}

// ExporterFactory es una función que crea una instancia de Exporter.
type ExporterFactory func() Exporter
