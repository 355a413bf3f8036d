// internal/adapters/export/export.go

// Package export implementa los formatos de volcado de subdominios que
// sirve el endpoint de exportación.
package export

import (
	"sort"

	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// factories mapea nombre de formato a su constructor.
var factories = map[string]ports.ExporterFactory{
	"txt":  func() ports.Exporter { return &TextExporter{} },
	"json": func() ports.Exporter { return &JSONExporter{} },
	"csv":  func() ports.Exporter { return &CSVExporter{} },
}

// ForFormat retorna el exporter del formato pedido.
func ForFormat(name string) (ports.Exporter, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown export format %q", name)
	}
	return factory(), nil
}

// Formats lista los formatos soportados, ordenados.
func Formats() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
