// internal/adapters/store/settings.go
package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// Setting recupera el valor de un ajuste por nombre.
func (s *Store) Setting(ctx context.Context, name string) (string, error) {
	var row settingRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if err != nil {
		return "", notFound(err, "setting %s", name)
	}
	return row.Value, nil
}

// SettingsByPrefix lista los ajustes cuyo nombre empieza por el prefijo.
func (s *Store) SettingsByPrefix(ctx context.Context, prefix string) ([]domain.Setting, error) {
	var rows []settingRow
	err := s.db.WithContext(ctx).
		Where("name LIKE ?", prefix+"%").
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "listing settings with prefix %s", prefix)
	}

	settings := make([]domain.Setting, 0, len(rows))
	for i := range rows {
		settings = append(settings, rows[i].toDomain())
	}
	return settings, nil
}

// Settings lista todos los ajustes por nombre.
func (s *Store) Settings(ctx context.Context) ([]domain.Setting, error) {
	return s.SettingsByPrefix(ctx, "")
}

// PutSetting crea o actualiza un ajuste.
func (s *Store) PutSetting(ctx context.Context, name, value string) error {
	if name == "" {
		return errors.Wrap(errors.ErrInvalidInput, "setting without name")
	}

	row := &settingRow{Name: name, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return errors.Wrapf(err, "saving setting %s", name)
	}
	return nil
}

// DeleteSetting elimina un ajuste por nombre.
func (s *Store) DeleteSetting(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&settingRow{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "deleting setting %s", name)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "setting %s", name)
	}
	return nil
}
