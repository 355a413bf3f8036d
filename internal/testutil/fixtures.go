// internal/testutil/fixtures.go
package testutil

// Fixture data para tests (valores primitivos solamente, sin dependencias de domain)

// FixtureHostnames contiene subdominios de prueba válidos.
var FixtureHostnames = []string{
	"example.com",
	"www.example.com",
	"api.example.com",
	"staging.api.example.com",
}

// FixtureInvalidHostnames contiene candidatos que el validador debe rechazar.
var FixtureInvalidHostnames = []string{
	"",
	"not a domain",
	"192.168.1.1",
	"2001:db8::1",
	"-invalid.com",
	"invalid-.com",
	".example.com",
	"example..com",
}

// FixtureToolOutput simula stdout crudo de una herramienta CLI de enumeración,
// incluyendo ruido ANSI, líneas de banner y duplicados.
var FixtureToolOutput = []string{
	"\x1b[36mwww.example.com\x1b[0m",
	"[INF] enumerating example.com",
	"API.example.com",
	"",
	"www.example.com",
	"mail.example.com",
}

// FixtureCrtshJSON es una respuesta recortada del índice de certificados.
var FixtureCrtshJSON = `[
  {"name_value": "www.example.com\n*.example.com", "issuer_name": "C=US, O=Let's Encrypt"},
  {"name_value": "api.example.com", "issuer_name": "C=US, O=Let's Encrypt"}
]`

// FixtureWaybackJSON es una respuesta de archivo de URLs con fila de cabecera.
var FixtureWaybackJSON = `[
  ["original"],
  ["https://www.example.com/index.html"],
  ["https://api.example.com:8443/v1/users"],
  ["http://cdn.example.com/logo.png"]
]`
