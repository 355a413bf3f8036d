// internal/platform/ui/progress.go
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pterm/pterm"
)

// ProgressBar pinta el avance de un lote de sondas. Sobre una terminal usa
// la barra de pterm; sobre una tubería emite una línea por decil para no
// inundar el destino. Los callbacks de progreso llegan serializados, pero
// el mutex cubre también el Finish desde otra goroutine.
type ProgressBar struct {
	mu      sync.Mutex
	total   int
	current int
	decile  int

	bar *pterm.ProgressbarPrinter
	w   io.Writer
}

// NewProgressBar crea la barra para un lote de total elementos.
func NewProgressBar(w io.Writer, title string, total int) *ProgressBar {
	p := &ProgressBar{total: total, decile: -1, w: w}

	if f, ok := w.(*os.File); ok && isTerminal(f) {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(title).
			Start()
		if err == nil {
			p.bar = bar
			return p
		}
	}

	fmt.Fprintf(w, "%s: 0/%d\n", title, total)
	return p
}

// Set avanza la barra hasta done elementos completados.
func (p *ProgressBar) Set(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if done <= p.current {
		return
	}
	delta := done - p.current
	p.current = done

	if p.bar != nil {
		p.bar.Add(delta)
		return
	}

	if p.total <= 0 {
		return
	}
	decile := done * 10 / p.total
	if decile > p.decile {
		p.decile = decile
		fmt.Fprintf(p.w, "probed %d/%d\n", done, p.total)
	}
}

// Finish cierra la barra.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Stop()
		p.bar = nil
		return
	}
	if p.current < p.total {
		fmt.Fprintf(p.w, "probed %d/%d\n", p.current, p.total)
	}
}
