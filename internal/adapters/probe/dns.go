// internal/adapters/probe/dns.go
package probe

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// defaultServers se usan cuando el sistema no expone resolv.conf.
var defaultServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// resolver consulta registros A contra los nameservers configurados y
// cosecha la cadena CNAME de la misma respuesta. Si todos los servidores
// fallan cae al resolver del sistema.
type resolver struct {
	client  *dns.Client
	servers []string
}

func newResolver(timeout time.Duration, servers []string) *resolver {
	if len(servers) == 0 {
		servers = systemServers()
	}
	return &resolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
	}
}

// systemServers lee los nameservers de resolv.conf.
func systemServers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return defaultServers
	}

	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers
}

// resolve retorna la primera IPv4 del hostname y su CNAME si lo hay.
// Ambos vacíos significa que el host no resuelve.
func (r *resolver) resolve(ctx context.Context, hostname string) (ip, cname string) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), dns.TypeA)

	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil || in == nil {
			continue
		}

		for _, answer := range in.Answer {
			switch record := answer.(type) {
			case *dns.A:
				if ip == "" {
					ip = record.A.String()
				}
			case *dns.CNAME:
				cname = strings.TrimSuffix(record.Target, ".")
			}
		}
		// Respuesta válida de este servidor, aunque sea NXDOMAIN.
		return ip, cname
	}

	// Todos los nameservers fallaron: último intento con el del sistema.
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", hostname)
	if err == nil && len(ips) > 0 {
		ip = ips[0].String()
	}
	return ip, cname
}
