// internal/server/scans.go
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/termlog"
	"github.com/lcalzada-xor/subsentry/internal/platform/validator"
)

// scanJSON es la forma serializada de un escaneo. completed_tools expone
// el contador, no los nombres: es lo que consume la barra de progreso.
type scanJSON struct {
	ID             uint       `json:"id"`
	TargetDomain   string     `json:"target_domain"`
	Status         string     `json:"status"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	SubdomainCount int        `json:"subdomain_count"`
	CurrentTool    *string    `json:"current_tool"`
	TotalTools     int        `json:"total_tools"`
	CompletedTools int        `json:"completed_tools"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toScanJSON(s *domain.Scan) scanJSON {
	out := scanJSON{
		ID:             s.ID,
		TargetDomain:   s.Domain,
		Status:         s.Status.String(),
		CompletedAt:    s.CompletedAt,
		SubdomainCount: s.SubdomainCount,
		CurrentTool:    s.CurrentTool,
		TotalTools:     s.TotalTools,
		CompletedTools: len(s.CompletedTools),
		CreatedAt:      s.CreatedAt,
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		out.StartedAt = &started
	}
	return out
}

// lineJSON es una línea del feed de terminal; el timestamp sirve de cursor
// para el siguiente poll y kind distingue stdout de stderr.
type lineJSON struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
}

func toLineJSON(lines []termlog.Line) []lineJSON {
	out := make([]lineJSON, 0, len(lines))
	for _, line := range lines {
		out = append(out, lineJSON{Timestamp: line.Timestamp, Text: line.Text, Kind: line.Kind})
	}
	return out
}

type createScanRequest struct {
	TargetDomain string `json:"target_domain"`
}

func (s *Server) createScan(c *gin.Context) {
	var req createScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Target domain is required")
		return
	}

	target := strings.ToLower(strings.TrimSpace(req.TargetDomain))
	if target == "" {
		fail(c, http.StatusBadRequest, "Target domain is required")
		return
	}
	if !strings.Contains(target, ".") || !validator.IsDomain(target) || !validator.IsRegistrable(target) {
		fail(c, http.StatusBadRequest, "Invalid domain format")
		return
	}

	enabled, err := s.store.EnabledTools(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if len(enabled) == 0 {
		fail(c, http.StatusBadRequest, "No enumeration tools are enabled. Please enable at least one tool in Settings.")
		return
	}

	scan := domain.NewScan(target)
	if err := s.store.CreateScan(c.Request.Context(), scan); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.seq.Launch(scan.ID, scan.Domain)

	c.JSON(http.StatusCreated, toScanJSON(scan))
}

func (s *Server) listScans(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	offset := queryInt(c, "offset", 0)

	scans, err := s.store.Scans(c.Request.Context(), limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]scanJSON, 0, len(scans))
	for _, scan := range scans {
		out = append(out, toScanJSON(scan))
	}
	c.JSON(http.StatusOK, gin.H{"scans": out})
}

func (s *Server) getScan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	scan, err := s.store.Scan(c.Request.Context(), id)
	if err != nil {
		s.notFoundOr(c, err, "Scan not found")
		return
	}
	c.JSON(http.StatusOK, toScanJSON(scan))
}

func (s *Server) deleteScan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.store.DeleteScan(c.Request.Context(), id); err != nil {
		s.notFoundOr(c, err, "Scan not found")
		return
	}

	// El feed y un posible flag de stop pendiente mueren con el escaneo.
	s.output.Drop(id)
	s.control.Clear(id)

	c.JSON(http.StatusOK, gin.H{"message": "Scan deleted successfully"})
}

// stopScan marca el flag de stop y refleja el estado stopped de inmediato
// para que el operador lo vea sin esperar al secuenciador, que converge al
// mismo estado en su siguiente punto de consulta.
func (s *Server) stopScan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	scan, err := s.store.Scan(c.Request.Context(), id)
	if err != nil {
		s.notFoundOr(c, err, "Scan not found")
		return
	}
	if !scan.Stoppable() {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Scan is not running (current status: %s)", scan.Status))
		return
	}

	s.control.RequestStop(id)
	s.output.Appendf(id, "Stop request received for scan %d", id)

	now := time.Now().UTC()
	scan.Status = domain.ScanStatusStopped
	scan.CurrentTool = nil
	scan.CompletedAt = &now
	if err := s.store.UpdateScan(c.Request.Context(), scan); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scan stop requested",
		"scan":    toScanJSON(scan),
	})
}

// scanTerminal sirve el feed de terminal como poll con cursor: el cliente
// repite la consulta con el timestamp de la última línea recibida y sigue
// un periodo de gracia tras el estado terminal para no perder el cierre.
func (s *Server) scanTerminal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	scan, err := s.store.Scan(c.Request.Context(), id)
	if err != nil {
		s.notFoundOr(c, err, "Scan not found")
		return
	}

	var lines []termlog.Line
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid since timestamp")
			return
		}
		lines = s.output.Since(id, since)
	} else {
		lines = s.output.All(id)
	}

	c.JSON(http.StatusOK, gin.H{
		"lines":  toLineJSON(lines),
		"status": scan.Status.String(),
	})
}

func (s *Server) scanSubdomains(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if _, err := s.store.Scan(c.Request.Context(), id); err != nil {
		s.notFoundOr(c, err, "Scan not found")
		return
	}

	filter := subdomainFilter(c)
	filter.ScanID = id
	subs, err := s.store.Subdomains(c.Request.Context(), filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, toSubdomainJSONs(subs))
}
