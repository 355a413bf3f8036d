// internal/executors/common/sink.go
package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/platform/validator"
)

// maxSampleLen corta las líneas muestreadas hacia el feed de terminal.
const maxSampleLen = 200

// SinkConfig configura el embudo de hallazgos de una herramienta.
type SinkConfig struct {
	// Source etiqueta los hallazgos con el nombre de la herramienta.
	Source string

	// TargetDomain limita los candidatos al alcance del escaneo.
	TargetDomain string

	// CommitEvery confirma el lote cada N enlaces nuevos (0 = solo al cierre).
	CommitEvery int

	// SampleEvery ecoa al feed una de cada N líneas crudas (0 = sin eco).
	SampleEvery int

	// ProgressEvery escribe una línea de avance cada N enlaces nuevos.
	ProgressEvery int

	// MaxSeen acota la memoria del dedup local; superado el tope se deja de
	// crecer y el dedup queda en manos de la base (0 = sin tope).
	MaxSeen int

	// FlushPause duerme tras cada commit periódico para no acaparar la base
	// durante barridos largos (0 = sin pausa). El cierre final no pausa.
	FlushPause time.Duration
}

// Sink canaliza los candidatos de una herramienta hacia el lote de
// persistencia: limpia, valida alcance, deduplica en memoria y dispara las
// sondas de los enlaces nuevos tras cada commit. No es seguro para uso
// concurrente.
type Sink struct {
	batch  ports.DiscoveryBatch
	out    ports.LineWriter
	notify ports.ProbeNotifier
	cfg    SinkConfig

	seen       map[string]struct{}
	pending    []string
	total      int
	raw        int
	sinceFlush int
}

// NewSink crea un embudo sobre el lote dado.
func NewSink(batch ports.DiscoveryBatch, out ports.LineWriter, notify ports.ProbeNotifier, cfg SinkConfig) *Sink {
	if notify == nil {
		notify = ports.NoopProbeNotifier{}
	}
	return &Sink{
		batch:  batch,
		out:    out,
		notify: notify,
		cfg:    cfg,
		seen:   make(map[string]struct{}),
	}
}

// Preload siembra el dedup local con hostnames ya conocidos.
func (s *Sink) Preload(hostnames []string) {
	for _, h := range hostnames {
		if s.cfg.MaxSeen > 0 && len(s.seen) >= s.cfg.MaxSeen {
			return
		}
		s.seen[h] = struct{}{}
	}
}

// Total retorna el número de enlaces nuevos aceptados.
func (s *Sink) Total() int {
	return s.total
}

// Sample ecoa una de cada SampleEvery líneas crudas al feed, recortada.
func (s *Sink) Sample(raw string) {
	s.raw++
	if s.cfg.SampleEvery <= 0 || s.raw%s.cfg.SampleEvery != 0 {
		return
	}

	line := strings.TrimSpace(raw)
	if len(line) > maxSampleLen {
		line = line[:maxSampleLen]
	}
	s.writeLine("  " + line)
}

// Offer procesa un candidato. Retorna true solo cuando produce un enlace
// nuevo para el escaneo.
func (s *Sink) Offer(candidate string) (bool, error) {
	host := validator.CleanHostname(candidate)
	if host == "" || !validator.IsHostname(host) {
		return false, nil
	}
	if s.cfg.TargetDomain != "" && !validator.InScope(host, s.cfg.TargetDomain) {
		return false, nil
	}

	if _, dup := s.seen[host]; dup {
		return false, nil
	}
	if s.cfg.MaxSeen == 0 || len(s.seen) < s.cfg.MaxSeen {
		s.seen[host] = struct{}{}
	}

	newLink, err := s.batch.Add(domain.Discovery{
		Hostname:     host,
		TargetDomain: s.cfg.TargetDomain,
		Source:       s.cfg.Source,
	})
	if err != nil {
		return false, err
	}
	if !newLink {
		return false, nil
	}

	s.total++
	s.pending = append(s.pending, host)
	s.sinceFlush++

	if s.cfg.ProgressEvery > 0 && s.total%s.cfg.ProgressEvery == 0 {
		s.writeLine(fmt.Sprintf("  found %d new subdomains so far...", s.total))
	}
	if s.cfg.CommitEvery > 0 && s.sinceFlush >= s.cfg.CommitEvery {
		return true, s.Flush()
	}
	return true, nil
}

// Flush confirma el lote en curso y dispara las sondas de lo confirmado.
// Las sondas van después del commit para que vean filas ya visibles.
func (s *Sink) Flush() error {
	if err := s.batch.Flush(); err != nil {
		return err
	}
	s.firePending()
	if s.cfg.FlushPause > 0 {
		time.Sleep(s.cfg.FlushPause)
	}
	return nil
}

// Close confirma lo pendiente y dispara las últimas sondas.
func (s *Sink) Close() error {
	if err := s.batch.Close(); err != nil {
		return err
	}
	s.firePending()
	return nil
}

func (s *Sink) firePending() {
	for _, host := range s.pending {
		s.notify.ProbeAsync(host)
	}
	s.pending = s.pending[:0]
	s.sinceFlush = 0
}

func (s *Sink) writeLine(line string) {
	if s.out != nil {
		s.out.WriteLine(line)
	}
}
