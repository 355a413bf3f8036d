// internal/adapters/export/csv.go
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// CSVExporter escribe una fila por subdominio con cabecera.
type CSVExporter struct{}

var csvHeader = []string{
	"hostname", "target_domain", "uri", "online_state",
	"http_status", "resolved_ip", "cname",
	"last_probed_at", "first_seen_at", "last_seen_at",
}

// Name retorna el nombre del formato.
func (e *CSVExporter) Name() string { return "csv" }

// ContentType retorna el MIME type del formato.
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

// Export escribe los subdominios en el writer.
func (e *CSVExporter) Export(w io.Writer, subs []*domain.Subdomain) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}

	for _, sub := range subs {
		if err := cw.Write(csvRow(sub)); err != nil {
			return errors.Wrapf(err, "writing csv row for %s", sub.Hostname)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv export")
}

func csvRow(sub *domain.Subdomain) []string {
	target := ""
	if sub.TargetDomain != nil {
		target = *sub.TargetDomain
	}
	status := ""
	if sub.HTTPStatus != nil {
		status = strconv.Itoa(*sub.HTTPStatus)
	}
	probed := ""
	if sub.LastProbedAt != nil {
		probed = sub.LastProbedAt.Format(time.RFC3339)
	}

	return []string{
		sub.Hostname,
		target,
		sub.URI,
		sub.OnlineState.String(),
		status,
		sub.ResolvedIP,
		sub.CNAME,
		probed,
		sub.FirstSeenAt.Format(time.RFC3339),
		sub.LastSeenAt.Format(time.RFC3339),
	}
}
