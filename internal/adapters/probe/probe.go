// internal/adapters/probe/probe.go

// Package probe implementa la sonda de liveness DNS + HTTP/HTTPS de un
// hostname. Sin resolución DNS no se intenta HTTP: el host está offline.
package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/httpclient"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
)

const (
	// DefaultTimeout limita cada petición HTTP de la sonda.
	DefaultTimeout = 8 * time.Second

	// DefaultRetries reintentos tras un fallo de transporte.
	DefaultRetries = 1
)

// Config configura la sonda.
type Config struct {
	Timeout time.Duration
	Retries int

	// Resolvers son servidores DNS "host:puerto". Vacío: los del sistema.
	Resolvers []string

	UserAgent string
}

// DefaultConfig retorna la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
	}
}

// hostResolver resuelve un hostname a su primera IPv4 y su CNAME.
type hostResolver interface {
	resolve(ctx context.Context, hostname string) (ip, cname string)
}

// Prober sondea hostnames individuales. Es seguro para uso concurrente.
type Prober struct {
	client   *httpclient.Client
	resolver hostResolver
	retries  int
	logger   logx.Logger
}

// New crea una sonda con la configuración dada.
func New(cfg Config, logger logx.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	// Certificados rotos o caducados siguen siendo hosts vivos.
	client := httpclient.New(httpclient.Config{
		Timeout:            cfg.Timeout,
		UserAgent:          cfg.UserAgent,
		InsecureSkipVerify: true,
	}, logger)

	return &Prober{
		client:   client,
		resolver: newResolver(cfg.Timeout, cfg.Resolvers),
		retries:  cfg.Retries,
		logger:   logger.With("component", "probe"),
	}
}

// SetTransport reemplaza el transporte HTTP. Los tests inyectan transportes
// guionizados por aquí.
func (p *Prober) SetTransport(rt http.RoundTripper) {
	p.client.SetTransport(rt)
}

// Probe sondea un hostname y retorna siempre un resultado: los fallos se
// expresan como estado, nunca como error.
func (p *Prober) Probe(ctx context.Context, hostname string) domain.ProbeResult {
	result := domain.ProbeResult{
		Hostname: hostname,
		State:    domain.OnlineStateOffline,
		ProbedAt: time.Now().UTC(),
	}

	ip, cname := p.resolver.resolve(ctx, hostname)
	result.CNAME = cname
	if ip == "" {
		p.logger.Debug("host does not resolve", "hostname", hostname)
		return result
	}
	result.ResolvedIP = ip

	httpsOK, httpsStatus := p.tryScheme(ctx, "https", hostname)
	httpOK, httpStatus := p.tryScheme(ctx, "http", hostname)

	switch {
	case httpsOK && httpOK:
		result.State = domain.OnlineStateBoth
		result.HTTPStatus = &httpsStatus
	case httpsOK:
		result.State = domain.OnlineStateHTTPS
		result.HTTPStatus = &httpsStatus
	case httpOK:
		result.State = domain.OnlineStateHTTP
		result.HTTPStatus = &httpStatus
	default:
		result.State = domain.OnlineStateDNSOnly
	}

	p.logger.Debug("probe finished",
		"hostname", hostname,
		"state", result.State.String(),
		"ip", ip,
	)
	return result
}

// tryScheme pide GET <scheme>://<hostname> con reintentos ante fallos de
// transporte. Cualquier status cuenta como vivo salvo 418, la respuesta
// estándar de los muros anti-bot.
func (p *Prober) tryScheme(ctx context.Context, scheme, hostname string) (bool, int) {
	url := scheme + "://" + hostname

	for attempt := 0; attempt <= p.retries; attempt++ {
		if ctx.Err() != nil {
			return false, 0
		}

		resp, err := p.client.Get(ctx, url, nil)
		if err != nil {
			continue
		}
		status := resp.StatusCode
		resp.Body.Close()

		if status == http.StatusTeapot {
			return false, 0
		}
		return true, status
	}
	return false, 0
}
