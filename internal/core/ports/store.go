// internal/core/ports/store.go
package ports

import (
	"context"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
)

// Store es el port de persistencia del motor. Una única implementación
// (GORM sobre Postgres o SQLite) lo cubre entero; la separación en
// sub-interfaces permite a los usecases declarar solo lo que usan.
type Store interface {
	ScanStore
	SubdomainStore
	ToolStore
	SettingStore

	// Close cierra la conexión subyacente.
	Close() error
}

// ScanStore maneja la persistencia de escaneos.
type ScanStore interface {
	// CreateScan persiste un escaneo nuevo y rellena su ID.
	CreateScan(ctx context.Context, scan *domain.Scan) error

	// Scan recupera un escaneo por ID, o errors.ErrNotFound.
	Scan(ctx context.Context, id uint) (*domain.Scan, error)

	// Scans lista escaneos de más reciente a más antiguo.
	Scans(ctx context.Context, limit, offset int) ([]*domain.Scan, error)

	// UpdateScan persiste el estado completo de un escaneo existente.
	UpdateScan(ctx context.Context, scan *domain.Scan) error

	// DeleteScan elimina un escaneo, sus enlaces y los subdominios que
	// queden huérfanos.
	DeleteScan(ctx context.Context, id uint) error

	// CountScanSubdomains cuenta los subdominios enlazados a un escaneo.
	CountScanSubdomains(ctx context.Context, scanID uint) (int64, error)
}

// SubdomainStore maneja la persistencia de subdominios y sus sondas.
type SubdomainStore interface {
	// SaveDiscovery hace upsert del hostname, lo enlaza al escaneo y reporta
	// si el enlace es nuevo para ese escaneo.
	SaveDiscovery(ctx context.Context, scanID uint, d domain.Discovery) (newLink bool, err error)

	// OpenBatch abre un lote transaccional de hallazgos para un escaneo.
	OpenBatch(ctx context.Context, scanID uint) (DiscoveryBatch, error)

	// Subdomain recupera un subdominio por ID, o errors.ErrNotFound.
	Subdomain(ctx context.Context, id uint) (*domain.Subdomain, error)

	// SubdomainByHostname recupera un subdominio por hostname exacto.
	SubdomainByHostname(ctx context.Context, hostname string) (*domain.Subdomain, error)

	// Subdomains lista subdominios según el filtro.
	Subdomains(ctx context.Context, f SubdomainFilter) ([]*domain.Subdomain, error)

	// CountSubdomains cuenta subdominios según el filtro.
	CountSubdomains(ctx context.Context, f SubdomainFilter) (int64, error)

	// ScanHostnames retorna los hostnames enlazados a un escaneo, ordenados.
	ScanHostnames(ctx context.Context, scanID uint) ([]string, error)

	// AllHostnames retorna todos los hostnames almacenados, ordenados.
	AllHostnames(ctx context.Context) ([]string, error)

	// RecordProbe vuelca el resultado de una sonda sobre el subdominio.
	RecordProbe(ctx context.Context, r domain.ProbeResult) error
}

// DiscoveryBatch acumula hallazgos dentro de una transacción y los publica
// por lotes. No es seguro para uso concurrente.
type DiscoveryBatch interface {
	// Add hace upsert y enlace dentro de la transacción abierta. Reporta si
	// el enlace al escaneo es nuevo.
	Add(d domain.Discovery) (newLink bool, err error)

	// Flush confirma la transacción en curso y abre la siguiente.
	Flush() error

	// Close confirma lo pendiente y libera la transacción.
	Close() error
}

// SubdomainFilter define filtros para listar subdominios.
type SubdomainFilter struct {
	// ScanID limita a los subdominios enlazados a ese escaneo (0 = todos).
	ScanID uint

	// Target limita a los subdominios descubiertos bajo ese dominio raíz.
	Target string

	// Search filtra por substring del hostname.
	Search string

	// OnlineState filtra por estado exacto de liveness.
	OnlineState domain.OnlineState

	// AliveOnly limita a estados con respuesta HTTP.
	AliveOnly bool

	Limit  int
	Offset int
}

// ToolStore maneja el catálogo de herramientas.
type ToolStore interface {
	// Tools lista todas las herramientas ordenadas por run_order.
	Tools(ctx context.Context) ([]*domain.Tool, error)

	// EnabledTools lista las herramientas habilitadas ordenadas por run_order.
	EnabledTools(ctx context.Context) ([]*domain.Tool, error)

	// ToolByName recupera una herramienta por nombre, o errors.ErrNotFound.
	ToolByName(ctx context.Context, name string) (*domain.Tool, error)

	// CreateTool persiste una herramienta nueva y rellena su ID.
	CreateTool(ctx context.Context, tool *domain.Tool) error

	// UpdateTool persiste una herramienta existente.
	UpdateTool(ctx context.Context, tool *domain.Tool) error

	// SetToolEnabled conmuta el flag enabled de una herramienta.
	SetToolEnabled(ctx context.Context, id uint, enabled bool) error

	// DeleteTool elimina una herramienta por ID.
	DeleteTool(ctx context.Context, id uint) error

	// SeedTools inserta el catálogo inicial solo si la tabla está vacía.
	SeedTools(ctx context.Context, tools []*domain.Tool) error
}

// SettingStore maneja los settings persistidos.
type SettingStore interface {
	SettingsReader

	// Settings lista todos los settings por nombre.
	Settings(ctx context.Context) ([]domain.Setting, error)

	// PutSetting crea o actualiza un setting.
	PutSetting(ctx context.Context, name, value string) error

	// DeleteSetting elimina un setting por nombre.
	DeleteSetting(ctx context.Context, name string) error
}
