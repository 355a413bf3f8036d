// internal/platform/validator/validator.go
package validator

import (
	"net"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Domain validators

var (
	// Regex para validar dominios
	// Permite dominios internacionales (IDN) y punycode
	domainRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?$`)

	// Los hostnames descubiertos admiten underscore (p.ej. _dmarc.example.com),
	// los targets no.
	hostnameRegex = regexp.MustCompile(`^([a-z0-9_]([a-z0-9_\-]{0,61}[a-z0-9_])?\.)+[a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?$`)

	ansiRegex = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
)

// IsDomain verifica si un string es un dominio válido.
// Soporta dominios internacionales (IDN) y punycode.
func IsDomain(domain string) bool {
	if len(domain) == 0 || len(domain) > 253 {
		return false
	}

	if !domainRegex.MatchString(domain) {
		return false
	}

	// Verificar que no sea una IP
	if net.ParseIP(domain) != nil {
		return false
	}

	return true
}

// IsRegistrable reporta si domain tiene un eTLD+1, es decir, si es un dominio
// registrable y no un TLD pelado como "com" o "co.uk".
func IsRegistrable(domain string) bool {
	_, err := publicsuffix.EffectiveTLDPlusOne(domain)
	return err == nil
}

// IsSubdomain verifica si subdomain es un subdominio válido de baseDomain.
func IsSubdomain(subdomain, baseDomain string) bool {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	baseDomain = strings.ToLower(strings.TrimSpace(baseDomain))

	if subdomain == baseDomain {
		return false
	}

	return strings.HasSuffix(subdomain, "."+baseDomain)
}

// InScope reporta si candidate pertenece al scope de target: el propio target
// o cualquier subdominio suyo.
func InScope(candidate, target string) bool {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	target = strings.ToLower(strings.TrimSpace(target))
	return candidate == target || IsSubdomain(candidate, target)
}

// IsHostname valida la sintaxis de un hostname descubierto (ya limpio y en
// minúsculas). Exige al menos un punto y rechaza IPs.
func IsHostname(host string) bool {
	if len(host) == 0 || len(host) > 253 {
		return false
	}
	if !strings.Contains(host, ".") {
		return false
	}
	if !hostnameRegex.MatchString(host) {
		return false
	}
	return net.ParseIP(host) == nil
}

// NormalizeDomain normaliza un dominio a su forma canónica.
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimSuffix(domain, ".")
	domain = strings.TrimPrefix(domain, "www.")
	return domain
}

// StripANSI quita las secuencias de escape ANSI que algunas herramientas
// imprimen incluso sin TTY.
func StripANSI(raw string) string {
	return ansiRegex.ReplaceAllString(raw, "")
}

// CleanHostname normaliza una línea cruda de salida de herramienta a un
// candidato de hostname: quita escapes ANSI, espacios, mayúsculas y el punto
// final de FQDN.
func CleanHostname(raw string) string {
	s := StripANSI(raw)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSuffix(s, ".")
}

// StripWildcard quita el prefijo comodín "*." que devuelven las fuentes de
// certificate transparency.
func StripWildcard(host string) string {
	return strings.TrimPrefix(host, "*.")
}

// HostWithoutPort quita el sufijo ":puerto" de un host extraído de una URL.
func HostWithoutPort(host string) string {
	if h, _, ok := strings.Cut(host, ":"); ok {
		return h
	}
	return host
}

// Network validators

// IsIP verifica si un string es una dirección IP válida (v4 o v6).
func IsIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

// IsIPv4 verifica si un string es una dirección IPv4 válida.
func IsIPv4(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.To4() != nil
}

// NormalizeIP normaliza una IP a su forma canónica.
// Si la IP es inválida, retorna string vacío.
func NormalizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "" // Invalid IP
	}
	return parsed.String()
}

// Generic validators

// IsEmpty verifica si un string está vacío o solo contiene espacios.
func IsEmpty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}
