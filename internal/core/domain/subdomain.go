// internal/core/domain/subdomain.go
package domain

import (
	"fmt"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/platform/validator"
)

// OnlineState define el resultado de liveness de un subdominio.
type OnlineState string

const (
	// OnlineStateUnknown aún sin probar
	OnlineStateUnknown OnlineState = "unknown"

	// OnlineStateBoth responde por HTTP y HTTPS
	OnlineStateBoth OnlineState = "online_both"

	// OnlineStateHTTP responde solo por HTTP
	OnlineStateHTTP OnlineState = "online_http"

	// OnlineStateHTTPS responde solo por HTTPS
	OnlineStateHTTPS OnlineState = "online_https"

	// OnlineStateDNSOnly resuelve en DNS pero no responde HTTP
	OnlineStateDNSOnly OnlineState = "dns_only"

	// OnlineStateOffline no resuelve en DNS
	OnlineStateOffline OnlineState = "offline"
)

// IsValid verifica si el estado es válido.
func (o OnlineState) IsValid() bool {
	switch o {
	case OnlineStateUnknown, OnlineStateBoth, OnlineStateHTTP, OnlineStateHTTPS,
		OnlineStateDNSOnly, OnlineStateOffline:
		return true
	default:
		return false
	}
}

// Alive reporta si el estado indica respuesta HTTP en algún esquema.
func (o OnlineState) Alive() bool {
	switch o {
	case OnlineStateBoth, OnlineStateHTTP, OnlineStateHTTPS:
		return true
	default:
		return false
	}
}

// Resolves reporta si el estado indica al menos resolución DNS.
func (o OnlineState) Resolves() bool {
	return o.Alive() || o == OnlineStateDNSOnly
}

// String retorna la representación string del estado.
func (o OnlineState) String() string {
	return string(o)
}

// Subdomain representa un hostname descubierto, único a nivel global.
// Un mismo subdominio puede estar enlazado a varios escaneos.
type Subdomain struct {
	ID       uint
	Hostname string

	// TargetDomain es el dominio raíz bajo el que se descubrió (nil para
	// registros importados sin contexto).
	TargetDomain *string

	// URI es la URL canónica de acceso.
	URI string

	// Resultado de la última sonda de liveness.
	OnlineState  OnlineState
	HTTPStatus   *int
	ResolvedIP   string
	CNAME        string
	LastProbedAt *time.Time

	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// NewSubdomain crea un subdominio con la URI canónica por defecto.
func NewSubdomain(hostname, targetDomain string) *Subdomain {
	now := time.Now().UTC()
	s := &Subdomain{
		Hostname:    validator.CleanHostname(hostname),
		URI:         "https://" + validator.CleanHostname(hostname),
		OnlineState: OnlineStateUnknown,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	if targetDomain != "" {
		td := targetDomain
		s.TargetDomain = &td
	}
	return s
}

// Validate verifica que el subdominio sea válido.
func (s *Subdomain) Validate() error {
	if s.Hostname == "" {
		return ErrEmptyHostname
	}
	if !validator.IsHostname(s.Hostname) {
		return fmt.Errorf("%w: %s", ErrInvalidHostname, s.Hostname)
	}
	if !s.OnlineState.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidOnlineState, s.OnlineState)
	}
	return nil
}

// ApplyProbe vuelca el resultado de una sonda sobre el subdominio.
func (s *Subdomain) ApplyProbe(r ProbeResult) {
	s.OnlineState = r.State
	s.HTTPStatus = r.HTTPStatus
	s.ResolvedIP = r.ResolvedIP
	s.CNAME = r.CNAME
	t := r.ProbedAt
	s.LastProbedAt = &t
}

// String retorna una representación legible del subdominio.
func (s *Subdomain) String() string {
	return fmt.Sprintf("Subdomain{host=%s, state=%s}", s.Hostname, s.OnlineState)
}

// ProbeResult es el resultado de sondear un único hostname.
type ProbeResult struct {
	Hostname   string
	State      OnlineState
	HTTPStatus *int
	ResolvedIP string
	CNAME      string
	ProbedAt   time.Time
}

// Discovery es un hallazgo de una herramienta pendiente de persistir.
type Discovery struct {
	Hostname     string
	TargetDomain string
	Source       string
}
