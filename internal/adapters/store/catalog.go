// internal/adapters/store/catalog.go
package store

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// catalogFile es el formato del fichero YAML con el catálogo inicial de
// herramientas.
type catalogFile struct {
	Tools []catalogTool `yaml:"tools"`
}

type catalogTool struct {
	Name        string          `yaml:"name"`
	DisplayName string          `yaml:"display_name"`
	Kind        string          `yaml:"kind"`
	Enabled     *bool           `yaml:"enabled"`
	RunOrder    int             `yaml:"run_order"`
	RunAfter    string          `yaml:"run_after"`
	Spec        domain.ToolSpec `yaml:"spec"`
}

// LoadCatalog lee y valida el catálogo de herramientas desde un YAML.
// Las entradas sin campo enabled quedan habilitadas.
func LoadCatalog(path string) ([]*domain.Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading tool catalog %s", path)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parsing tool catalog %s", path)
	}
	if len(file.Tools) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "tool catalog %s is empty", path)
	}

	tools := make([]*domain.Tool, 0, len(file.Tools))
	for i := range file.Tools {
		entry := &file.Tools[i]

		tool := &domain.Tool{
			Name:        entry.Name,
			DisplayName: entry.DisplayName,
			Kind:        domain.ToolKind(entry.Kind),
			Enabled:     true,
			RunOrder:    entry.RunOrder,
			RunAfter:    entry.RunAfter,
			Spec:        entry.Spec,
		}
		if entry.Enabled != nil {
			tool.Enabled = *entry.Enabled
		}
		if tool.DisplayName == "" {
			tool.DisplayName = tool.Name
		}

		if err := tool.Validate(); err != nil {
			return nil, errors.Wrapf(err, "tool catalog entry %q", entry.Name)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}
