// internal/platform/termlog/termlog.go

// Package termlog retiene la salida de terminal de cada escaneo en memoria y
// permite tailearla por timestamp desde la API. Cada escaneo tiene un buffer
// acotado; al llenarse se descartan las líneas más antiguas.
package termlog

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity es el máximo de líneas retenidas por escaneo.
const DefaultCapacity = 10000

// Kinds de línea según el stream de origen.
const (
	KindStdout = "stdout"
	KindStderr = "stderr"
)

// Line es una línea del feed con su instante de emisión y el stream del
// que procede.
type Line struct {
	Timestamp time.Time
	Text      string
	Kind      string
}

// Broadcaster acumula líneas por escaneo. Seguro para uso concurrente.
//
// Los timestamps son estrictamente crecientes dentro de un escaneo: dos
// líneas nunca comparten instante, de forma que el cursor "since" (filtro
// estrictamente posterior) no pierde ni repite líneas entre polls.
type Broadcaster struct {
	mu       sync.RWMutex
	lines    map[uint][]Line
	last     map[uint]time.Time
	capacity int
}

// New crea un broadcaster con la capacidad dada por escaneo.
func New(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Broadcaster{
		lines:    make(map[uint][]Line),
		last:     make(map[uint]time.Time),
		capacity: capacity,
	}
}

// Append añade una línea al feed de un escaneo. Una línea vacía se ignora.
func (b *Broadcaster) Append(scanID uint, text, kind string) {
	if text == "" {
		return
	}
	if kind == "" {
		kind = KindStdout
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	if last, ok := b.last[scanID]; ok && !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	b.last[scanID] = now

	buf := append(b.lines[scanID], Line{Timestamp: now, Text: text, Kind: kind})
	if len(buf) > b.capacity {
		// Copia para no retener el array subyacente completo.
		trimmed := make([]Line, b.capacity)
		copy(trimmed, buf[len(buf)-b.capacity:])
		buf = trimmed
	}
	b.lines[scanID] = buf
}

// Appendf añade una línea formateada al feed de un escaneo, como stdout.
func (b *Broadcaster) Appendf(scanID uint, format string, args ...any) {
	b.Append(scanID, fmt.Sprintf(format, args...), KindStdout)
}

// All retorna una copia de todas las líneas retenidas de un escaneo.
func (b *Broadcaster) All(scanID uint) []Line {
	return b.Since(scanID, time.Time{})
}

// Since retorna las líneas estrictamente posteriores a since, en orden.
func (b *Broadcaster) Since(scanID uint, since time.Time) []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	buf := b.lines[scanID]

	// Búsqueda binaria del primer índice posterior a since.
	lo, hi := 0, len(buf)
	for lo < hi {
		mid := (lo + hi) / 2
		if buf[mid].Timestamp.After(since) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	out := make([]Line, len(buf)-lo)
	copy(out, buf[lo:])
	return out
}

// Len retorna el número de líneas retenidas de un escaneo.
func (b *Broadcaster) Len(scanID uint) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines[scanID])
}

// Drop libera el buffer de un escaneo.
func (b *Broadcaster) Drop(scanID uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lines, scanID)
	delete(b.last, scanID)
}

// Feed retorna un escritor de líneas ligado a un escaneo.
func (b *Broadcaster) Feed(scanID uint) *Feed {
	return &Feed{b: b, scanID: scanID}
}

// Feed es la vista de escritura de un escaneo sobre el broadcaster.
// Implementa el LineWriter que consumen los ejecutores.
type Feed struct {
	b      *Broadcaster
	scanID uint
	echo   io.Writer
}

// WithEcho duplica cada línea hacia w (p.ej. stdout en modo CLI).
func (f *Feed) WithEcho(w io.Writer) *Feed {
	f.echo = w
	return f
}

// WriteLine añade una línea al feed del escaneo.
func (f *Feed) WriteLine(line string) {
	f.write(line, KindStdout)
}

// ErrLine añade una línea procedente de un stream de error.
func (f *Feed) ErrLine(line string) {
	f.write(line, KindStderr)
}

func (f *Feed) write(line, kind string) {
	if f == nil || f.b == nil {
		return
	}
	f.b.Append(f.scanID, line, kind)
	if f.echo != nil {
		fmt.Fprintln(f.echo, line)
	}
}

// maxPartial acota el fragmento sin terminador retenido por un Capture.
const maxPartial = 64 * 1024

// Capture adapta un io.Writer al broadcaster: registra cada línea completa
// del stream en el feed de un escaneo y reenvía los bytes originales al
// escritor de abajo, si lo hay. Capturar dos veces el mismo escaneo sobre
// el mismo broadcaster no duplica líneas: el constructor devuelve la
// captura ya existente.
type Capture struct {
	mu         sync.Mutex
	b          *Broadcaster
	scanID     uint
	kind       string
	downstream io.Writer
	partial    []byte
}

// NewCapture crea un capturador de stream para un escaneo.
func NewCapture(b *Broadcaster, scanID uint, kind string, downstream io.Writer) *Capture {
	if existing, ok := downstream.(*Capture); ok && existing.b == b && existing.scanID == scanID {
		return existing
	}
	return &Capture{b: b, scanID: scanID, kind: kind, downstream: downstream}
}

// Write registra las líneas completas de p y lo reenvía sin modificar.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.partial = append(c.partial, p...)
	for {
		i := bytes.IndexByte(c.partial, '\n')
		if i < 0 {
			break
		}
		c.b.Append(c.scanID, strings.TrimRight(string(c.partial[:i]), "\r"), c.kind)
		c.partial = c.partial[i+1:]
	}
	if len(c.partial) > maxPartial {
		c.b.Append(c.scanID, string(c.partial), c.kind)
		c.partial = nil
	}
	c.mu.Unlock()

	if c.downstream != nil {
		if _, err := c.downstream.Write(p); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Close vuelca el fragmento final sin terminador como última línea.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.partial) > 0 {
		c.b.Append(c.scanID, strings.TrimRight(string(c.partial), "\r"), c.kind)
		c.partial = nil
	}
	return nil
}
