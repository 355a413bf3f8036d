// internal/core/ports/probe.go
package ports

import (
	"context"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
)

// Prober es el port para sondear la liveness de un hostname: resolución DNS
// y respuesta HTTP/HTTPS.
type Prober interface {
	// Probe sondea un hostname. Nunca retorna error: un host que no responde
	// es un resultado (offline), no un fallo.
	Probe(ctx context.Context, hostname string) domain.ProbeResult
}

// ProbeProgress recibe el avance de un lote de sondas.
type ProbeProgress func(completed, total int)

// ProbeNotifierFunc adapta una función a ProbeNotifier.
type ProbeNotifierFunc func(hostname string)

func (f ProbeNotifierFunc) ProbeAsync(hostname string) {
	if f != nil {
		f(hostname)
	}
}

// NoopProbeNotifier descarta todas las notificaciones. Útil cuando el
// auto-probing está deshabilitado.
type NoopProbeNotifier struct{}

func (NoopProbeNotifier) ProbeAsync(string) {}
