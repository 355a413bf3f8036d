// internal/server/export.go
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lcalzada-xor/subsentry/internal/adapters/export"
)

// exportSubdomains descarga los subdominios que pasan el filtro en el
// formato pedido, como adjunto.
func (s *Server) exportSubdomains(c *gin.Context) {
	format := c.DefaultQuery("format", "txt")
	exporter, err := export.ForFormat(format)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	filter := subdomainFilter(c)
	if scanID := queryInt(c, "scan", 0); scanID > 0 {
		filter.ScanID = uint(scanID)
	}

	subs, err := s.store.Subdomains(c.Request.Context(), filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Type", exporter.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=subdomains.%s", exporter.Name()))
	c.Status(http.StatusOK)

	if err := exporter.Export(c.Writer, subs); err != nil {
		// Las cabeceras ya salieron; solo queda dejar constancia.
		s.logger.Err(err, "op", "export", "format", format)
	}
}
