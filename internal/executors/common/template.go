// internal/executors/common/template.go

// Package common agrupa la maquinaria compartida por los ejecutores de
// herramientas: expansión de plantillas de comando, el embudo de hallazgos
// hacia el store y el manejo de procesos externos.
package common

import (
	"context"
	"regexp"
	"strings"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// placeholderRegex reconoce los marcadores {nombre} de comandos y URLs.
var placeholderRegex = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Placeholders retorna los nombres de placeholder únicos presentes en los
// argumentos, en orden de aparición.
func Placeholders(args []string) []string {
	var names []string
	seen := make(map[string]bool)

	for _, arg := range args {
		for _, match := range placeholderRegex.FindAllStringSubmatch(arg, -1) {
			name := match[1]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// ExpandString sustituye cada {nombre} por su valor. Un placeholder sin
// valor queda tal cual: la sustitución es total e idempotente, nunca falla.
func ExpandString(s string, vars map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// ExpandMap expande los placeholders de los valores del mapa. Las claves no
// se tocan.
func ExpandMap(m map[string]string, vars map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = ExpandString(v, vars)
	}
	return out
}

// PathVars vuelca en vars las rutas de wordlists y de ficheros de entrada
// guardadas en settings, indexadas por su nombre completo de setting.
func PathVars(ctx context.Context, settings ports.SettingsReader, vars map[string]string) error {
	for _, prefix := range []string{domain.SettingWordlistPrefix, domain.SettingInputFilePrefix} {
		loaded, err := settings.SettingsByPrefix(ctx, prefix)
		if err != nil {
			return errors.Wrapf(err, "loading %s settings", prefix)
		}
		for _, s := range loaded {
			vars[s.Name] = s.Value
		}
	}
	return nil
}

// ExpandArgs expande los placeholders de cada argumento y separa los
// argumentos "-flag valor" escritos como una sola entrada en dos entradas
// de argv.
func ExpandArgs(args []string, vars map[string]string) []string {
	expanded := make([]string, 0, len(args))

	for _, arg := range args {
		value := ExpandString(arg, vars)

		if strings.HasPrefix(value, "-") && strings.Contains(value, " ") {
			parts := strings.SplitN(value, " ", 2)
			expanded = append(expanded, parts[0], parts[1])
			continue
		}
		expanded = append(expanded, value)
	}
	return expanded
}
