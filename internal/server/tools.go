// internal/server/tools.go
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// toolSummaryJSON es la entrada del listado de herramientas.
type toolSummaryJSON struct {
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	Kind           string `json:"kind"`
	Enabled        bool   `json:"enabled"`
	RunOrder       int    `json:"run_order"`
	RunAfter       string `json:"run_after"`
	RequiresAPIKey bool   `json:"requires_api_key"`
}

// toolYAML es la vista YAML de una herramienta, con la misma forma que una
// entrada del catálogo para que la edición y el seed hablen el mismo formato.
type toolYAML struct {
	Name        string          `yaml:"name"`
	DisplayName string          `yaml:"display_name,omitempty"`
	Kind        string          `yaml:"kind"`
	Enabled     *bool           `yaml:"enabled,omitempty"`
	RunOrder    int             `yaml:"run_order,omitempty"`
	RunAfter    string          `yaml:"run_after,omitempty"`
	Spec        domain.ToolSpec `yaml:"spec"`
}

// credentialSetting retorna el setting que guarda la credencial de la
// herramienta, o cadena vacía si no necesita ninguna.
func credentialSetting(tool *domain.Tool) string {
	if tool.Spec.APIKeySetting != "" {
		return tool.Spec.APIKeySetting
	}
	return tool.Spec.BasicAuthSetting
}

func (s *Server) listTools(c *gin.Context) {
	tools, err := s.store.Tools(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]toolSummaryJSON, 0, len(tools))
	for _, tool := range tools {
		out = append(out, toolSummaryJSON{
			Name:           tool.Name,
			DisplayName:    tool.Label(),
			Kind:           tool.Kind.String(),
			Enabled:        tool.Enabled,
			RunOrder:       tool.RunOrder,
			RunAfter:       tool.RunAfter,
			RequiresAPIKey: credentialSetting(tool) != "",
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getTool(c *gin.Context) {
	name := c.Param("name")

	tool, err := s.store.ToolByName(c.Request.Context(), name)
	if err != nil {
		s.notFoundOr(c, err, fmt.Sprintf("Tool %s not found", name))
		return
	}

	enabled := tool.Enabled
	raw, err := yaml.Marshal(toolYAML{
		Name:        tool.Name,
		DisplayName: tool.DisplayName,
		Kind:        tool.Kind.String(),
		Enabled:     &enabled,
		RunOrder:    tool.RunOrder,
		RunAfter:    tool.RunAfter,
		Spec:        tool.Spec,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":         tool.Name,
		"display_name": tool.DisplayName,
		"kind":         tool.Kind.String(),
		"enabled":      tool.Enabled,
		"run_order":    tool.RunOrder,
		"run_after":    tool.RunAfter,
		"spec":         tool.Spec,
		"yaml":         string(raw),
	})
}

type updateToolRequest struct {
	DisplayName *string          `json:"display_name"`
	Enabled     *bool            `json:"enabled"`
	RunOrder    *int             `json:"run_order"`
	RunAfter    *string          `json:"run_after"`
	Spec        *domain.ToolSpec `json:"spec"`
	YAML        *string          `json:"yaml"`
}

func (r *updateToolRequest) empty() bool {
	return r.DisplayName == nil && r.Enabled == nil && r.RunOrder == nil &&
		r.RunAfter == nil && r.Spec == nil && r.YAML == nil
}

// updateTool aplica cambios parciales sobre una herramienta. Acepta campos
// estructurados o un nodo yaml completo con la forma del catálogo; el nombre
// viene siempre de la ruta, nunca del cuerpo.
func (s *Server) updateTool(c *gin.Context) {
	name := c.Param("name")

	var req updateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.empty() {
		fail(c, http.StatusBadRequest, "No data provided")
		return
	}

	tool, err := s.store.ToolByName(c.Request.Context(), name)
	if err != nil {
		s.notFoundOr(c, err, fmt.Sprintf("Tool %s not found", name))
		return
	}

	if req.YAML != nil {
		var node toolYAML
		if err := yaml.Unmarshal([]byte(*req.YAML), &node); err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid YAML: %s", err))
			return
		}
		if node.DisplayName != "" {
			tool.DisplayName = node.DisplayName
		}
		if node.Kind != "" {
			tool.Kind = domain.ToolKind(node.Kind)
		}
		if node.Enabled != nil {
			tool.Enabled = *node.Enabled
		}
		tool.RunOrder = node.RunOrder
		tool.RunAfter = node.RunAfter
		tool.Spec = node.Spec
	} else {
		if req.DisplayName != nil {
			tool.DisplayName = strings.TrimSpace(*req.DisplayName)
		}
		if req.Enabled != nil {
			tool.Enabled = *req.Enabled
		}
		if req.RunOrder != nil {
			tool.RunOrder = *req.RunOrder
		}
		if req.RunAfter != nil {
			tool.RunAfter = *req.RunAfter
		}
		if req.Spec != nil {
			tool.Spec = *req.Spec
		}
	}

	if err := tool.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpdateTool(c.Request.Context(), tool); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Tool %s updated successfully", tool.Name)})
}

func (s *Server) toggleTool(c *gin.Context) {
	name := c.Param("name")

	tool, err := s.store.ToolByName(c.Request.Context(), name)
	if err != nil {
		s.notFoundOr(c, err, fmt.Sprintf("Tool %s not found", name))
		return
	}

	next := !tool.Enabled
	if err := s.store.SetToolEnabled(c.Request.Context(), tool.ID, next); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	verb := "disabled"
	if next {
		verb = "enabled"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Tool %s %s", tool.Name, verb),
		"enabled": next,
	})
}

// apiKeyJSON describe el estado de la credencial de una herramienta sin
// exponer el valor completo.
type apiKeyJSON struct {
	Tool        string `json:"tool"`
	SettingKey  string `json:"setting_key"`
	HasKey      bool   `json:"has_key"`
	MaskedValue string `json:"masked_value"`
}

func maskValue(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

func (s *Server) listAPIKeys(c *gin.Context) {
	tools, err := s.store.Tools(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]apiKeyJSON, 0, len(tools))
	for _, tool := range tools {
		key := credentialSetting(tool)
		if key == "" {
			continue
		}

		value, err := s.store.Setting(c.Request.Context(), key)
		if err != nil && !errors.IsNotFound(err) {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		value = strings.TrimSpace(value)

		out = append(out, apiKeyJSON{
			Tool:        tool.Name,
			SettingKey:  key,
			HasKey:      value != "",
			MaskedValue: maskValue(value),
		})
	}
	c.JSON(http.StatusOK, out)
}
