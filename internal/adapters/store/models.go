// internal/adapters/store/models.go
package store

import (
	"encoding/json"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// scanRow es la fila persistida de un escaneo. CompletedTools se guarda
// como array JSON para mantener el esquema portable entre drivers.
type scanRow struct {
	ID             uint    `gorm:"primaryKey"`
	Domain         string  `gorm:"size:253;not null;index"`
	Status         string  `gorm:"size:16;not null;default:pending;index"`
	CurrentTool    *string `gorm:"size:64"`
	CompletedTools string  `gorm:"type:text"`
	TotalTools     int     `gorm:"not null;default:0"`
	SubdomainCount int     `gorm:"not null;default:0"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (scanRow) TableName() string { return "scans" }

func scanToRow(s *domain.Scan) (*scanRow, error) {
	tools := s.CompletedTools
	if tools == nil {
		tools = []string{}
	}
	encoded, err := json.Marshal(tools)
	if err != nil {
		return nil, errors.Wrap(err, "encoding completed tools")
	}

	row := &scanRow{
		ID:             s.ID,
		Domain:         s.Domain,
		Status:         s.Status.String(),
		CurrentTool:    s.CurrentTool,
		CompletedTools: string(encoded),
		TotalTools:     s.TotalTools,
		SubdomainCount: s.SubdomainCount,
		CompletedAt:    s.CompletedAt,
		CreatedAt:      s.CreatedAt,
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		row.StartedAt = &t
	}
	return row, nil
}

func (r *scanRow) toDomain() (*domain.Scan, error) {
	tools := []string{}
	if r.CompletedTools != "" {
		if err := json.Unmarshal([]byte(r.CompletedTools), &tools); err != nil {
			return nil, errors.Wrapf(err, "decoding completed tools for scan %d", r.ID)
		}
	}

	s := &domain.Scan{
		ID:             r.ID,
		Domain:         r.Domain,
		Status:         domain.ScanStatus(r.Status),
		CurrentTool:    r.CurrentTool,
		CompletedTools: tools,
		TotalTools:     r.TotalTools,
		SubdomainCount: r.SubdomainCount,
		CompletedAt:    r.CompletedAt,
		CreatedAt:      r.CreatedAt,
	}
	if r.StartedAt != nil {
		s.StartedAt = *r.StartedAt
	}
	return s, nil
}

// subdomainRow es la fila persistida de un subdominio, único por hostname.
type subdomainRow struct {
	ID           uint    `gorm:"primaryKey"`
	Hostname     string  `gorm:"size:253;not null;uniqueIndex"`
	TargetDomain *string `gorm:"size:253;index"`
	URI          string  `gorm:"size:512"`
	OnlineState  string  `gorm:"size:16;not null;default:unknown;index"`
	HTTPStatus   *int
	ResolvedIP   string `gorm:"size:64"`
	CNAME        string `gorm:"size:253"`
	LastProbedAt *time.Time
	FirstSeenAt  time.Time `gorm:"not null"`
	LastSeenAt   time.Time `gorm:"not null;index"`
}

func (subdomainRow) TableName() string { return "subdomains" }

func subdomainToRow(s *domain.Subdomain) *subdomainRow {
	return &subdomainRow{
		ID:           s.ID,
		Hostname:     s.Hostname,
		TargetDomain: s.TargetDomain,
		URI:          s.URI,
		OnlineState:  s.OnlineState.String(),
		HTTPStatus:   s.HTTPStatus,
		ResolvedIP:   s.ResolvedIP,
		CNAME:        s.CNAME,
		LastProbedAt: s.LastProbedAt,
		FirstSeenAt:  s.FirstSeenAt,
		LastSeenAt:   s.LastSeenAt,
	}
}

func (r *subdomainRow) toDomain() *domain.Subdomain {
	return &domain.Subdomain{
		ID:           r.ID,
		Hostname:     r.Hostname,
		TargetDomain: r.TargetDomain,
		URI:          r.URI,
		OnlineState:  domain.OnlineState(r.OnlineState),
		HTTPStatus:   r.HTTPStatus,
		ResolvedIP:   r.ResolvedIP,
		CNAME:        r.CNAME,
		LastProbedAt: r.LastProbedAt,
		FirstSeenAt:  r.FirstSeenAt,
		LastSeenAt:   r.LastSeenAt,
	}
}

// scanSubdomainRow enlaza un subdominio con el escaneo que lo descubrió.
// La pareja (scan_id, subdomain_id) es única: el segundo intento de enlace
// no inserta fila y así se detecta si el hallazgo es nuevo para el escaneo.
type scanSubdomainRow struct {
	ID           uint      `gorm:"primaryKey"`
	ScanID       uint      `gorm:"not null;uniqueIndex:idx_scan_subdomain;index"`
	SubdomainID  uint      `gorm:"not null;uniqueIndex:idx_scan_subdomain"`
	Source       string    `gorm:"size:64"`
	DiscoveredAt time.Time `gorm:"not null"`
}

func (scanSubdomainRow) TableName() string { return "scan_subdomains" }

// toolRow es la fila persistida de una herramienta. Spec guarda el
// ToolSpec serializado en JSON.
type toolRow struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:64;not null;uniqueIndex"`
	DisplayName string `gorm:"size:128"`
	Kind        string `gorm:"size:16;not null"`
	Enabled     bool   `gorm:"not null;default:true"`
	RunOrder    int    `gorm:"not null;default:0"`
	RunAfter    string `gorm:"size:16;not null;default:''"`
	Spec        string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (toolRow) TableName() string { return "tools" }

func toolToRow(t *domain.Tool) (*toolRow, error) {
	spec, err := t.EncodeSpec()
	if err != nil {
		return nil, errors.Wrapf(err, "encoding spec for tool %s", t.Name)
	}
	return &toolRow{
		ID:          t.ID,
		Name:        t.Name,
		DisplayName: t.DisplayName,
		Kind:        t.Kind.String(),
		Enabled:     t.Enabled,
		RunOrder:    t.RunOrder,
		RunAfter:    t.RunAfter,
		Spec:        spec,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}, nil
}

func (r *toolRow) toDomain() (*domain.Tool, error) {
	t := &domain.Tool{
		ID:          r.ID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Kind:        domain.ToolKind(r.Kind),
		Enabled:     r.Enabled,
		RunOrder:    r.RunOrder,
		RunAfter:    r.RunAfter,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := t.DecodeSpec(r.Spec); err != nil {
		return nil, errors.Wrapf(err, "decoding spec for tool %s", r.Name)
	}
	return t, nil
}

// settingRow es la fila persistida de un ajuste clave/valor.
type settingRow struct {
	Name      string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (settingRow) TableName() string { return "settings" }

func (r *settingRow) toDomain() domain.Setting {
	return domain.Setting{
		Name:      r.Name,
		Value:     r.Value,
		UpdatedAt: r.UpdatedAt,
	}
}
