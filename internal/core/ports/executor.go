// internal/core/ports/executor.go
package ports

import (
	"context"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/cache"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
)

// Executor es el port primario para ejecutar herramientas de enumeración.
// Hay un ejecutor por tipo de herramienta (cli, api, pipeline); la herramienta
// concreta llega como dato en el ExecJob.
type Executor interface {
	// Kind retorna el tipo de herramienta que este ejecutor sabe correr.
	Kind() domain.ToolKind

	// Run ejecuta la herramienta del job hasta terminar o hasta que el
	// contexto se cancele. Los problemas propios de la herramienta (binario
	// ausente, credenciales inválidas, HTTP 429) se reportan como error y no
	// deben tumbar el resto del escaneo.
	Run(ctx context.Context, job ExecJob) error
}

// ExecJob agrupa todo lo que un ejecutor necesita para correr una herramienta
// contra un escaneo.
type ExecJob struct {
	Scan *domain.Scan
	Tool *domain.Tool

	// Batch recibe los hallazgos; el ejecutor decide cuándo hacer Flush.
	Batch DiscoveryBatch

	// Output recibe las líneas del feed de terminal del escaneo.
	Output LineWriter

	// Settings da acceso de solo lectura a API keys y rutas de wordlists.
	Settings SettingsReader

	// Stop se consulta cooperativamente entre unidades de trabajo.
	Stop StopChecker

	// Lister enumera los subdominios ya enlazados al escaneo (entrada para
	// herramientas pipeline).
	Lister HostnameLister

	// Notify dispara sondas de liveness para enlaces nuevos.
	Notify ProbeNotifier
}

// ExecutorDeps son las dependencias compartidas con las que se construye un
// ejecutor.
type ExecutorDeps struct {
	Logger logx.Logger

	// Cache memoiza descubrimientos de endpoints (index_url) entre escaneos.
	Cache cache.Cache
}

// ExecutorMetadata describe un ejecutor registrado.
type ExecutorMetadata struct {
	Kind        domain.ToolKind
	Description string
	Version     string
}

// LineWriter recibe líneas del feed de terminal de un escaneo concreto.
// ErrLine marca la línea como procedente de un stream de error, para que
// el feed distinga stdout de stderr.
type LineWriter interface {
	WriteLine(line string)
	ErrLine(line string)
}

// StopChecker expone el flag cooperativo de stop de un escaneo concreto.
type StopChecker interface {
	Stopped() bool
}

// SettingsReader da acceso de solo lectura a los settings persistidos.
type SettingsReader interface {
	// Setting retorna el valor de un setting, o errors.ErrNotFound.
	Setting(ctx context.Context, name string) (string, error)

	// SettingsByPrefix retorna los settings cuyo nombre empieza por prefix.
	SettingsByPrefix(ctx context.Context, prefix string) ([]domain.Setting, error)
}

// HostnameLister enumera los hostnames enlazados a un escaneo.
type HostnameLister interface {
	ScanHostnames(ctx context.Context, scanID uint) ([]string, error)
}

// ProbeNotifier dispara sondas de liveness de forma asíncrona.
type ProbeNotifier interface {
	// ProbeAsync encola una sonda para el hostname sin bloquear.
	ProbeAsync(hostname string)
}
