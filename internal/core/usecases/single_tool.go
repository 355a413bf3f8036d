// internal/core/usecases/single_tool.go
package usecases

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
	"github.com/lcalzada-xor/subsentry/internal/platform/registry"
)

// SingleToolOptions configura la ejecución de una herramienta suelta.
type SingleToolOptions struct {
	Store SequencerStore

	// Out recibe el feed de terminal, una línea por escritura. En modo
	// exec-tool es el stdout del proceso, que el padre drena.
	Out io.Writer

	// Registry de ejecutores; nil usa el registro global.
	Registry *registry.ExecutorRegistry

	Deps   ports.ExecutorDeps
	Logger logx.Logger
}

// RunSingleTool ejecuta una única herramienta de un escaneo existente. Es
// el lado hijo del ProcessLauncher: el progreso del escaneo lo lleva el
// padre, aquí solo se corre el ejecutor y se vuelca su feed. Las sondas
// pendientes se emiten como líneas de control "@probe <host>" para que el
// padre las encole en su pool.
func RunSingleTool(ctx context.Context, opts SingleToolOptions, scanID uint, toolName string) error {
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	if opts.Registry == nil {
		opts.Registry = registry.Global()
	}
	if opts.Deps.Logger == nil {
		opts.Deps.Logger = opts.Logger
	}

	scan, err := opts.Store.Scan(ctx, scanID)
	if err != nil {
		return errors.Wrapf(err, "loading scan %d", scanID)
	}
	tool, err := opts.Store.ToolByName(ctx, toolName)
	if err != nil {
		return errors.Wrapf(err, "loading tool %s", toolName)
	}

	exec, err := opts.Registry.Build(tool.Kind, opts.Deps)
	if err != nil {
		return errors.Wrapf(err, "building %s executor", tool.Kind)
	}

	batch, err := opts.Store.OpenBatch(ctx, scanID)
	if err != nil {
		return errors.Wrapf(err, "opening batch for %s", toolName)
	}
	defer batch.Close()

	feed := &feedWriter{w: opts.Out}
	return exec.Run(ctx, ports.ExecJob{
		Scan:     scan,
		Tool:     tool,
		Batch:    batch,
		Output:   feed,
		Settings: opts.Store,
		Stop:     contextStop{ctx},
		Lister:   opts.Store,
		Notify:   probeLineNotifier{feed},
	})
}

// contextStop trata la cancelación del contexto como un stop cooperativo.
// En el proceso hijo el SIGTERM del padre cancela el contexto, y de ahí
// baja hasta los bucles de lectura del ejecutor.
type contextStop struct {
	ctx context.Context
}

func (c contextStop) Stopped() bool {
	return c.ctx.Err() != nil
}

// feedWriter serializa las líneas del feed sobre un io.Writer. Los
// drenajes de stderr escriben desde sus propias goroutines. Las líneas de
// error viajan por el mismo stream con su marcador de control, y el padre
// las reetiqueta al volcarlas al broadcaster.
type feedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (f *feedWriter) WriteLine(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintln(f.w, line)
}

func (f *feedWriter) ErrLine(line string) {
	f.WriteLine(errMarker + line)
}

// probeLineNotifier emite cada sonda pendiente como línea de control por
// el feed, en lugar de sondear desde el hijo: el pool acotado vive en el
// proceso padre.
type probeLineNotifier struct {
	feed *feedWriter
}

func (p probeLineNotifier) ProbeAsync(hostname string) {
	p.feed.WriteLine(probeMarker + hostname)
}
