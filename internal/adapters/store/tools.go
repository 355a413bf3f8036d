// internal/adapters/store/tools.go
package store

import (
	"context"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// Tools lista todas las herramientas ordenadas por run_order.
func (s *Store) Tools(ctx context.Context) ([]*domain.Tool, error) {
	return s.listTools(ctx, false)
}

// EnabledTools lista las herramientas habilitadas ordenadas por run_order.
func (s *Store) EnabledTools(ctx context.Context) ([]*domain.Tool, error) {
	return s.listTools(ctx, true)
}

func (s *Store) listTools(ctx context.Context, enabledOnly bool) ([]*domain.Tool, error) {
	q := s.db.WithContext(ctx).Order("run_order, id")
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}

	var rows []toolRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing tools")
	}

	tools := make([]*domain.Tool, 0, len(rows))
	for i := range rows {
		tool, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// ToolByName recupera una herramienta por nombre.
func (s *Store) ToolByName(ctx context.Context, name string) (*domain.Tool, error) {
	var row toolRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if err != nil {
		return nil, notFound(err, "tool %s", name)
	}
	return row.toDomain()
}

// CreateTool persiste una herramienta nueva y rellena su ID.
func (s *Store) CreateTool(ctx context.Context, tool *domain.Tool) error {
	row, err := toolToRow(tool)
	if err != nil {
		return err
	}
	row.ID = 0
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrapf(err, "creating tool %s", tool.Name)
	}

	tool.ID = row.ID
	tool.CreatedAt = row.CreatedAt
	tool.UpdatedAt = row.UpdatedAt
	return nil
}

// UpdateTool persiste una herramienta existente.
func (s *Store) UpdateTool(ctx context.Context, tool *domain.Tool) error {
	if tool.ID == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "updating tool without id")
	}

	row, err := toolToRow(tool)
	if err != nil {
		return err
	}
	row.UpdatedAt = time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&toolRow{}).
		Where("id = ?", tool.ID).
		Select("*").Omit("id", "created_at").
		Updates(row)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "updating tool %s", tool.Name)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "tool %d", tool.ID)
	}
	tool.UpdatedAt = row.UpdatedAt
	return nil
}

// SetToolEnabled conmuta el flag enabled de una herramienta.
func (s *Store) SetToolEnabled(ctx context.Context, id uint, enabled bool) error {
	res := s.db.WithContext(ctx).Model(&toolRow{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "toggling tool %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "tool %d", id)
	}
	return nil
}

// DeleteTool elimina una herramienta por ID.
func (s *Store) DeleteTool(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&toolRow{}, id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "deleting tool %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "tool %d", id)
	}
	return nil
}

// SeedTools inserta el catálogo inicial solo si la tabla está vacía, para
// no pisar ajustes hechos desde la API en arranques posteriores.
func (s *Store) SeedTools(ctx context.Context, tools []*domain.Tool) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&toolRow{}).Count(&count).Error; err != nil {
		return errors.Wrap(err, "counting tools")
	}
	if count > 0 {
		s.logger.Debug("tool catalog already seeded", "tools", count)
		return nil
	}

	for _, tool := range tools {
		if err := tool.Validate(); err != nil {
			return errors.Wrapf(err, "seeding tool %s", tool.Name)
		}
		if err := s.CreateTool(ctx, tool); err != nil {
			return err
		}
	}
	s.logger.Info("tool catalog seeded", "tools", len(tools))
	return nil
}
