// internal/testutil/mocks.go
package testutil

import (
	"net/http"
)

// Nota: los mocks específicos de domain/ports viven en sus respectivos paquetes.
// Este archivo contiene solo utilidades genéricas sin dependencias circulares.

// RoundTripFunc adapta una función a http.RoundTripper para inyectar
// respuestas en clientes HTTP durante tests.
type RoundTripFunc func(req *http.Request) (*http.Response, error)

// RoundTrip implementa http.RoundTripper.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// ScriptedTransport devuelve respuestas en orden y registra las URLs pedidas.
type ScriptedTransport struct {
	Responses []*http.Response
	Errors    []error
	Calls     []string
	idx       int
}

// RoundTrip implementa http.RoundTripper devolviendo la siguiente respuesta
// del guion. Cuando el guion se agota, repite la última entrada.
func (s *ScriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.Calls = append(s.Calls, req.URL.String())
	i := s.idx
	if i >= len(s.Responses) {
		i = len(s.Responses) - 1
	}
	s.idx++
	var err error
	if i < len(s.Errors) {
		err = s.Errors[i]
	}
	if err != nil {
		return nil, err
	}
	return s.Responses[i], nil
}
