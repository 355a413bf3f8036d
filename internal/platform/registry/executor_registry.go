// internal/platform/registry/executor_registry.go
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
)

// ExecutorRegistry gestiona el registro y construcción de ejecutores por tipo
// de herramienta. Implementa el patrón Registry + Factory para desacoplar la
// creación de ejecutores del código de aplicación.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	factories map[domain.ToolKind]ExecutorFactory
	metadata  map[domain.ToolKind]ports.ExecutorMetadata
	logger    logx.Logger
}

// ExecutorFactory es una función que crea una instancia de Executor.
type ExecutorFactory func(deps ports.ExecutorDeps) (ports.Executor, error)

// globalRegistry es la instancia global del registry.
var globalRegistry *ExecutorRegistry
var once sync.Once

// Global retorna la instancia global del registry.
func Global() *ExecutorRegistry {
	once.Do(func() {
		globalRegistry = NewExecutorRegistry(logx.New())
	})
	return globalRegistry
}

// NewExecutorRegistry crea un nuevo registry de ejecutores.
func NewExecutorRegistry(logger logx.Logger) *ExecutorRegistry {
	return &ExecutorRegistry{
		factories: make(map[domain.ToolKind]ExecutorFactory),
		metadata:  make(map[domain.ToolKind]ports.ExecutorMetadata),
		logger:    logger.With("component", "executor-registry"),
	}
}

// Register registra una executor factory con su metadata.
// Típicamente llamado desde init() de cada package de ejecutor.
func (r *ExecutorRegistry) Register(kind domain.ToolKind, factory ExecutorFactory, meta ports.ExecutorMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !kind.IsValid() {
		return fmt.Errorf("invalid executor kind %q", kind)
	}

	if factory == nil {
		return fmt.Errorf("factory cannot be nil for executor %s", kind)
	}

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("executor %s is already registered", kind)
	}

	r.factories[kind] = factory
	r.metadata[kind] = meta
	r.logger.Debug("executor registered", "kind", kind)

	return nil
}

// Build construye el ejecutor para un tipo de herramienta.
func (r *ExecutorRegistry) Build(kind domain.ToolKind, deps ports.ExecutorDeps) (ports.Executor, error) {
	r.mu.RLock()
	factory, exists := r.factories[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no executor registered for kind %s", kind)
	}

	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	exec, err := factory(deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build executor %s: %w", kind, err)
	}

	r.logger.Debug("executor built", "kind", kind)
	return exec, nil
}

// List retorna los tipos de ejecutor registrados, ordenados.
func (r *ExecutorRegistry) List() []domain.ToolKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]domain.ToolKind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// GetMetadata retorna el metadata de un ejecutor.
func (r *ExecutorRegistry) GetMetadata(kind domain.ToolKind) (ports.ExecutorMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[kind]
	return meta, exists
}

// IsRegistered verifica si un tipo de ejecutor está registrado.
func (r *ExecutorRegistry) IsRegistered(kind domain.ToolKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[kind]
	return exists
}

// Clear elimina todos los ejecutores registrados (útil para testing).
func (r *ExecutorRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = make(map[domain.ToolKind]ExecutorFactory)
	r.metadata = make(map[domain.ToolKind]ports.ExecutorMetadata)
}
