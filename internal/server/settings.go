// internal/server/settings.go
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// getSettings retorna todos los ajustes como mapa plano nombre → valor.
// Los valores van sin enmascarar; la vista de credenciales enmascaradas
// vive en /api/tools/api-keys.
func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.store.Settings(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	out := make(map[string]string, len(settings))
	for _, setting := range settings {
		out[setting.Name] = setting.Value
	}
	c.JSON(http.StatusOK, out)
}

// putSettings hace upsert de cada par del cuerpo. Acepta valores de
// cualquier tipo escalar y los persiste como texto.
func (s *Server) putSettings(c *gin.Context) {
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
		fail(c, http.StatusBadRequest, "No data provided")
		return
	}

	for name, value := range req {
		if err := s.store.PutSetting(c.Request.Context(), name, fmt.Sprint(value)); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Settings updated successfully"})
}
