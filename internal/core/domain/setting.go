// internal/core/domain/setting.go
package domain

import (
	"strings"
	"time"
)

// Setting es un par clave/valor de configuración persistida: API keys,
// rutas de wordlists, etc.
type Setting struct {
	Name      string
	Value     string
	UpdatedAt time.Time
}

// Prefijos de settings con significado especial para los ejecutores.
const (
	// SettingWordlistPrefix rutas de wordlists referenciables desde comandos
	// como {wordlist_small}.
	SettingWordlistPrefix = "wordlist_"

	// SettingInputFilePrefix rutas de ficheros de entrada referenciables
	// como {input_file_targets}.
	SettingInputFilePrefix = "input_file_"
)

// Secret reporta si el setting contiene credenciales y no debe exponerse
// completo por la API.
func (s Setting) Secret() bool {
	for _, suffix := range []string{"_key", "_token", "_secret", "_auth"} {
		if strings.HasSuffix(s.Name, suffix) {
			return true
		}
	}
	return false
}

// Masked retorna el valor ofuscado para settings secretos.
func (s Setting) Masked() string {
	if !s.Secret() || s.Value == "" {
		return s.Value
	}
	if len(s.Value) <= 4 {
		return "****"
	}
	return "****" + s.Value[len(s.Value)-4:]
}
