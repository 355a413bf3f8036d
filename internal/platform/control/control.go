// internal/platform/control/control.go

// Package control mantiene los flags cooperativos de stop de los escaneos en
// curso. Los ejecutores consultan el flag entre unidades de trabajo (líneas,
// páginas, lotes) y abandonan limpiamente cuando está levantado.
package control

import "sync"

// Controller registra peticiones de stop por escaneo. Seguro para uso
// concurrente.
type Controller struct {
	mu   sync.RWMutex
	stop map[uint]bool
}

// NewController crea un controller vacío.
func NewController() *Controller {
	return &Controller{
		stop: make(map[uint]bool),
	}
}

// RequestStop levanta el flag de stop de un escaneo.
func (c *Controller) RequestStop(scanID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop[scanID] = true
}

// StopRequested consulta el flag de stop de un escaneo.
func (c *Controller) StopRequested(scanID uint) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stop[scanID]
}

// Clear baja el flag de stop una vez consumido por el secuenciador.
func (c *Controller) Clear(scanID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stop, scanID)
}

// Handle retorna una vista ligada a un escaneo concreto.
func (c *Controller) Handle(scanID uint) Handle {
	return Handle{ctl: c, scanID: scanID}
}

// Handle es la vista de un escaneo sobre el controller. Implementa el
// StopChecker que consumen los ejecutores.
type Handle struct {
	ctl    *Controller
	scanID uint
}

// Stopped reporta si alguien pidió detener el escaneo.
func (h Handle) Stopped() bool {
	if h.ctl == nil {
		return false
	}
	return h.ctl.StopRequested(h.scanID)
}
