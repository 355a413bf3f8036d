// internal/core/domain/tool.go
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ToolKind clasifica herramientas por su tipo de ejecución.
type ToolKind string

const (
	// ToolKindCLI herramientas que ejecutan un binario externo
	ToolKindCLI ToolKind = "cli"

	// ToolKindAPI herramientas que consumen APIs HTTP
	ToolKindAPI ToolKind = "api"

	// ToolKindPipeline herramientas que encadenan varios binarios via pipes
	ToolKindPipeline ToolKind = "pipeline"
)

// IsValid verifica si el tipo de herramienta es válido.
func (k ToolKind) IsValid() bool {
	switch k {
	case ToolKindCLI, ToolKindAPI, ToolKindPipeline:
		return true
	default:
		return false
	}
}

// String retorna la representación string del tipo.
func (k ToolKind) String() string {
	return string(k)
}

// Fases de ejecución. Las herramientas con RunAfter == RunAfterPassive solo
// arrancan cuando todas las pasivas han terminado.
const (
	RunAfterNone    = ""
	RunAfterPassive = "passive"
)

// Tool representa una herramienta de enumeración configurada.
type Tool struct {
	ID          uint
	Name        string
	DisplayName string
	Kind        ToolKind
	Enabled     bool

	// RunOrder ordena la ejecución dentro de su fase (menor = antes).
	RunOrder int

	// RunAfter retrasa la herramienta a la fase activa ("passive") o la
	// deja en la fase inicial ("").
	RunAfter string

	Spec ToolSpec

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate verifica que la herramienta sea coherente con su tipo.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrEmptyToolName
	}
	if !t.Kind.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidToolKind, t.Kind)
	}
	if t.RunAfter != RunAfterNone && t.RunAfter != RunAfterPassive {
		return fmt.Errorf("%w: run_after %q", ErrInvalidToolSpec, t.RunAfter)
	}
	switch t.Kind {
	case ToolKindCLI:
		if len(t.Spec.Command) == 0 {
			return fmt.Errorf("%w: %s has no command", ErrInvalidToolSpec, t.Name)
		}
		if t.Spec.CSVOutput && t.Spec.OutputFile == "" {
			return fmt.Errorf("%w: %s declares csv output without output_file", ErrInvalidToolSpec, t.Name)
		}
	case ToolKindAPI:
		if t.Spec.URL == "" && t.Spec.IndexURL == "" {
			return fmt.Errorf("%w: %s has no url", ErrInvalidToolSpec, t.Name)
		}
		if !t.Spec.ResponseType.IsValid() {
			return fmt.Errorf("%w: %s response_type %q", ErrInvalidToolSpec, t.Name, t.Spec.ResponseType)
		}
		if !t.Spec.Extract.Strategy.IsValid() {
			return fmt.Errorf("%w: %s extract strategy %q", ErrInvalidToolSpec, t.Name, t.Spec.Extract.Strategy)
		}
	case ToolKindPipeline:
		if len(t.Spec.Steps) == 0 {
			return fmt.Errorf("%w: %s has no steps", ErrInvalidToolSpec, t.Name)
		}
		for _, st := range t.Spec.Steps {
			if len(st.Command) == 0 {
				return fmt.Errorf("%w: %s step %q has no command", ErrInvalidToolSpec, t.Name, st.Name)
			}
		}
	}
	return nil
}

// Passive reporta si la herramienta pertenece a la fase inicial.
func (t *Tool) Passive() bool {
	return t.RunAfter == RunAfterNone
}

// Label retorna el nombre visible de la herramienta.
func (t *Tool) Label() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

// String retorna una representación legible de la herramienta.
func (t *Tool) String() string {
	return fmt.Sprintf("Tool{name=%s, kind=%s, enabled=%v}", t.Name, t.Kind, t.Enabled)
}

// ResponseType define el formato de respuesta de una herramienta API.
type ResponseType string

const (
	ResponseTypeJSON  ResponseType = "json"
	ResponseTypeJSONL ResponseType = "jsonl"
	ResponseTypeText  ResponseType = "text"
)

// IsValid verifica si el formato es válido. El valor vacío equivale a json.
func (r ResponseType) IsValid() bool {
	switch r {
	case "", ResponseTypeJSON, ResponseTypeJSONL, ResponseTypeText:
		return true
	default:
		return false
	}
}

// ExtractStrategy define cómo extraer hostnames de una respuesta API.
type ExtractStrategy string

const (
	// ExtractFields lee campos concretos de cada objeto de la respuesta
	ExtractFields ExtractStrategy = "fields"

	// ExtractJSONPath navega un path con puntos, con [*] para listas
	ExtractJSONPath ExtractStrategy = "json_path"

	// ExtractURLHosts extrae los hosts de URLs presentes en la respuesta
	ExtractURLHosts ExtractStrategy = "url_extract"
)

// IsValid verifica si la estrategia es válida. El valor vacío equivale a fields.
func (s ExtractStrategy) IsValid() bool {
	switch s {
	case "", ExtractFields, ExtractJSONPath, ExtractURLHosts:
		return true
	default:
		return false
	}
}

// ToolSpec contiene la configuración específica del ejecutor. Es un superset:
// cada tipo de herramienta usa solo los campos que le aplican.
type ToolSpec struct {
	// CLI: comando con placeholders {domain}, {input_file} o {nombre_de_setting}.
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`

	// CLI: los hallazgos se leen de un fichero CSV al terminar el proceso,
	// no del stdout. OutputFile admite los mismos placeholders que Command.
	CSVOutput  bool   `json:"csv_output,omitempty" yaml:"csv_output,omitempty"`
	CSVColumn  string `json:"csv_column,omitempty" yaml:"csv_column,omitempty"`
	OutputFile string `json:"output_file,omitempty" yaml:"output_file,omitempty"`

	TimeoutS int `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// API: endpoint y petición.
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Params  map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// API: el endpoint real se descubre consultando un índice primero.
	IndexURL string `json:"index_url,omitempty" yaml:"index_url,omitempty"`

	// API: autenticación via settings. APIKeySetting nombra el setting con la
	// clave; BasicAuthSetting nombra un setting con formato "id:secret".
	APIKeySetting    string `json:"api_key_setting,omitempty" yaml:"api_key_setting,omitempty"`
	APIKeyHeader     string `json:"api_key_header,omitempty" yaml:"api_key_header,omitempty"`
	APIKeyParam      string `json:"api_key_param,omitempty" yaml:"api_key_param,omitempty"`
	BasicAuthSetting string `json:"basic_auth_setting,omitempty" yaml:"basic_auth_setting,omitempty"`

	ResponseType ResponseType    `json:"response_type,omitempty" yaml:"response_type,omitempty"`
	Extract      ExtractSpec     `json:"extract,omitempty" yaml:"extract,omitempty"`
	Pagination   *PaginationSpec `json:"pagination,omitempty" yaml:"pagination,omitempty"`

	// Pipeline: pasos encadenados stdout -> stdin.
	Steps []PipelineStep `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Pipeline: origen del fichero de entrada {input_file}. Con
	// "scan_subdomains" se vuelcan los subdominios ya descubiertos del scan.
	Input string `json:"input,omitempty" yaml:"input,omitempty"`

	// Pipeline: ejecutar los pasos con prioridad baja (nice).
	LowPriority bool `json:"low_priority,omitempty" yaml:"low_priority,omitempty"`
}

// ToolInputScanSubdomains indica que el primer paso recibe como {input_file}
// un fichero temporal con los subdominios ya enlazados al escaneo.
const ToolInputScanSubdomains = "scan_subdomains"

// ExtractSpec describe cómo sacar hostnames de la respuesta de una API.
type ExtractSpec struct {
	Strategy ExtractStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// fields: claves a leer de cada objeto.
	Fields         []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	SplitOnNewline bool     `json:"split_on_newline,omitempty" yaml:"split_on_newline,omitempty"`
	StripWildcard  bool     `json:"strip_wildcard,omitempty" yaml:"strip_wildcard,omitempty"`

	// json_path: path con puntos, admite [*] sobre listas.
	JSONPath string `json:"json_path,omitempty" yaml:"json_path,omitempty"`

	// Formato aplicado a cada valor extraído, con {value} como placeholder.
	SubdomainFormat string `json:"subdomain_format,omitempty" yaml:"subdomain_format,omitempty"`

	// url_extract: campo que contiene la URL (vacío = elemento entero o
	// primera columna si el elemento es una lista).
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// url_extract: saltar el primer elemento (fila de cabecera).
	SkipFirst bool `json:"skip_first,omitempty" yaml:"skip_first,omitempty"`
}

// PaginationSpec describe la paginación por cursor de una API.
type PaginationSpec struct {
	// NextPath es el path con puntos hacia la URL de la página siguiente.
	NextPath string `json:"next_path,omitempty" yaml:"next_path,omitempty"`

	// MaxPages limita el número de páginas (0 = sin límite razonable).
	MaxPages int `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
}

// PipelineStep es un paso de una herramienta pipeline. El stdout de cada paso
// alimenta el stdin del siguiente.
type PipelineStep struct {
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Command []string `json:"command" yaml:"command"`
}

// EncodeSpec serializa la spec a JSON para su persistencia.
func (t *Tool) EncodeSpec() (string, error) {
	data, err := json.Marshal(t.Spec)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToolSpec, err)
	}
	return string(data), nil
}

// DecodeSpec carga la spec desde su forma JSON persistida.
func (t *Tool) DecodeSpec(raw string) error {
	if raw == "" {
		t.Spec = ToolSpec{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &t.Spec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToolSpec, err)
	}
	return nil
}
