// internal/adapters/export/txt.go
package export

import (
	"bufio"
	"io"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// TextExporter escribe un hostname por línea, listo para encadenar con
// otras herramientas.
type TextExporter struct{}

// Name retorna el nombre del formato.
func (e *TextExporter) Name() string { return "txt" }

// ContentType retorna el MIME type del formato.
func (e *TextExporter) ContentType() string { return "text/plain; charset=utf-8" }

// Export escribe los subdominios en el writer.
func (e *TextExporter) Export(w io.Writer, subs []*domain.Subdomain) error {
	bw := bufio.NewWriter(w)
	for _, sub := range subs {
		if _, err := bw.WriteString(sub.Hostname + "\n"); err != nil {
			return errors.Wrap(err, "writing txt export")
		}
	}
	return errors.Wrap(bw.Flush(), "flushing txt export")
}
