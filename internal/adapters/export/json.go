// internal/adapters/export/json.go
package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// JSONExporter escribe un array JSON indentado con los campos públicos de
// cada subdominio.
type JSONExporter struct{}

// jsonRecord es la forma serializada de un subdominio exportado.
type jsonRecord struct {
	Hostname     string     `json:"hostname"`
	TargetDomain *string    `json:"target_domain,omitempty"`
	URI          string     `json:"uri"`
	OnlineState  string     `json:"online_state"`
	HTTPStatus   *int       `json:"http_status,omitempty"`
	ResolvedIP   string     `json:"resolved_ip,omitempty"`
	CNAME        string     `json:"cname,omitempty"`
	LastProbedAt *time.Time `json:"last_probed_at,omitempty"`
	FirstSeenAt  time.Time  `json:"first_seen_at"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
}

// Name retorna el nombre del formato.
func (e *JSONExporter) Name() string { return "json" }

// ContentType retorna el MIME type del formato.
func (e *JSONExporter) ContentType() string { return "application/json" }

// Export escribe los subdominios en el writer.
func (e *JSONExporter) Export(w io.Writer, subs []*domain.Subdomain) error {
	records := make([]jsonRecord, 0, len(subs))
	for _, sub := range subs {
		records = append(records, jsonRecord{
			Hostname:     sub.Hostname,
			TargetDomain: sub.TargetDomain,
			URI:          sub.URI,
			OnlineState:  sub.OnlineState.String(),
			HTTPStatus:   sub.HTTPStatus,
			ResolvedIP:   sub.ResolvedIP,
			CNAME:        sub.CNAME,
			LastProbedAt: sub.LastProbedAt,
			FirstSeenAt:  sub.FirstSeenAt,
			LastSeenAt:   sub.LastSeenAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(records), "encoding json export")
}
