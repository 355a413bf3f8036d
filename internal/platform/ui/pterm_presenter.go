// internal/platform/ui/pterm_presenter.go
package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// PTermPresenter pinta el escaneo con pterm: cabecera con los datos del
// objetivo, el feed coloreado por tipo de línea y un panel final con los
// contadores. Las líneas del feed llegan ya formadas por el secuenciador;
// aquí solo se reconoce su forma para elegir el estilo.
type PTermPresenter struct {
	mu sync.Mutex
}

// NewPTermPresenter crea el presenter interactivo.
func NewPTermPresenter() *PTermPresenter {
	return &PTermPresenter{}
}

// Start pinta la cabecera del escaneo.
func (p *PTermPresenter) Start(info ScanInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("SubSentry - Subdomain Enumeration")

	pterm.Println()

	box := pterm.DefaultBox.
		WithTitle("Scan").
		WithTitleTopCenter().
		WithRightPadding(4).
		WithLeftPadding(4).
		WithBoxStyle(pterm.NewStyle(pterm.FgCyan))

	content := fmt.Sprintf("Target: %s\n", pterm.Cyan(info.Target))
	content += fmt.Sprintf("Scan ID: %d\n", info.ScanID)
	if len(info.Individual) > 0 {
		content += fmt.Sprintf("Tools: %s\n", strings.Join(info.Individual, ", "))
	}
	if len(info.Pipelines) > 0 {
		content += fmt.Sprintf("Pipelines: %s\n", strings.Join(info.Pipelines, ", "))
	}
	content += fmt.Sprintf("Probe workers: %d", info.Workers)

	box.Println(content)
	pterm.Println()
}

// Line pinta una línea del feed con el estilo de su forma: los hitos de
// herramienta en cian y verde, los errores en rojo, los stops en amarillo
// y la salida cruda de las herramientas en gris.
func (p *PTermPresenter) Line(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch classifyLine(text) {
	case lineToolStart:
		pterm.Println(pterm.Cyan(text))
	case lineToolDone:
		pterm.Println(pterm.Green("✓ " + text))
	case lineError:
		pterm.Println(pterm.Red("✗ " + text))
	case lineStop:
		pterm.Println(pterm.Yellow("⚠ " + text))
	case lineMilestone:
		pterm.Println(pterm.Bold.Sprint(text))
	default:
		pterm.Println(pterm.Gray("  " + text))
	}
}

// Info muestra un mensaje informativo.
func (p *PTermPresenter) Info(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pterm.Info.Println(msg)
}

// Warning muestra una advertencia.
func (p *PTermPresenter) Warning(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pterm.Warning.Println(msg)
}

// Error muestra un error.
func (p *PTermPresenter) Error(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pterm.Error.Println(msg)
}

// Finish pinta el panel de cierre y, si hay sondas, la tabla de estados.
func (p *PTermPresenter) Finish(summary ScanSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pterm.Println()

	bg := pterm.BgGreen
	title := "Scan Completed"
	switch summary.Status {
	case "failed":
		bg = pterm.BgRed
		title = "Scan Failed"
	case "stopped":
		bg = pterm.BgYellow
		title = "Scan Stopped"
	}

	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(bg)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println(title)

	pterm.Println()

	box := pterm.DefaultBox.
		WithTitle("Results").
		WithTitleTopCenter().
		WithRightPadding(4).
		WithLeftPadding(4).
		WithBoxStyle(pterm.NewStyle(pterm.FgGreen))

	content := fmt.Sprintf("Duration: %s\n", pterm.Green(formatDuration(summary.Duration)))
	content += fmt.Sprintf("Subdomains: %s\n", pterm.Cyan(fmt.Sprintf("%d", summary.Subdomains)))
	content += fmt.Sprintf("Tools: %d/%d", summary.ToolsDone, summary.ToolsTotal)

	box.Println(content)

	if len(summary.ByState) > 0 {
		pterm.Println()
		data := pterm.TableData{{"Online State", "Count"}}
		for _, state := range sortedKeys(summary.ByState) {
			data = append(data, []string{state, fmt.Sprintf("%d", summary.ByState[state])})
		}
		pterm.DefaultTable.
			WithHasHeader().
			WithBoxed().
			WithData(data).
			Render()
	}

	pterm.Println()
}

// Close no retiene recursos.
func (p *PTermPresenter) Close() error {
	return nil
}

// lineKind clasifica una línea del feed por su forma.
type lineKind int

const (
	lineOutput lineKind = iota
	lineToolStart
	lineToolDone
	lineError
	lineStop
	lineMilestone
)

func classifyLine(text string) lineKind {
	switch {
	case strings.HasPrefix(text, "Error "):
		return lineError
	case strings.HasPrefix(text, "Stop request"):
		return lineStop
	case strings.HasPrefix(text, "[") && strings.HasSuffix(text, "completed"):
		return lineToolDone
	case strings.HasPrefix(text, "["):
		return lineToolStart
	case strings.HasPrefix(text, "Starting scan"),
		strings.HasPrefix(text, "All "),
		strings.HasPrefix(text, "Scan "),
		strings.HasPrefix(text, "No tools enabled"):
		return lineMilestone
	case strings.HasPrefix(text, "Individual tools:"),
		strings.HasPrefix(text, "Pipeline tools:"),
		strings.HasPrefix(text, "Running tools sequentially"):
		return lineMilestone
	default:
		return lineOutput
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
