// internal/adapters/store/scans.go
package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// CreateScan persiste un escaneo nuevo y rellena su ID.
func (s *Store) CreateScan(ctx context.Context, scan *domain.Scan) error {
	row, err := scanToRow(scan)
	if err != nil {
		return err
	}
	row.ID = 0
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrapf(err, "creating scan for %s", scan.Domain)
	}

	scan.ID = row.ID
	scan.CreatedAt = row.CreatedAt
	return nil
}

// Scan recupera un escaneo por ID.
func (s *Store) Scan(ctx context.Context, id uint) (*domain.Scan, error) {
	var row scanRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err, "scan %d", id)
	}
	return row.toDomain()
}

// Scans lista escaneos de más reciente a más antiguo.
func (s *Store) Scans(ctx context.Context, limit, offset int) ([]*domain.Scan, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var rows []scanRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing scans")
	}

	scans := make([]*domain.Scan, 0, len(rows))
	for i := range rows {
		scan, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

// UpdateScan persiste el estado completo de un escaneo existente.
// Usa Select("*") para que los campos a nil (current_tool, completed_at)
// se escriban como NULL en vez de ignorarse.
func (s *Store) UpdateScan(ctx context.Context, scan *domain.Scan) error {
	if scan.ID == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "updating scan without id")
	}

	row, err := scanToRow(scan)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&scanRow{}).
		Where("id = ?", scan.ID).
		Select("*").Omit("id", "created_at").
		Updates(row)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "updating scan %d", scan.ID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "scan %d", scan.ID)
	}
	return nil
}

// DeleteScan elimina un escaneo, sus enlaces y los subdominios que quedan
// huérfanos (sin enlace a ningún otro escaneo).
func (s *Store) DeleteScan(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&scanRow{}, id)
		if res.Error != nil {
			return errors.Wrapf(res.Error, "deleting scan %d", id)
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(errors.ErrNotFound, "scan %d", id)
		}

		if err := tx.Where("scan_id = ?", id).Delete(&scanSubdomainRow{}).Error; err != nil {
			return errors.Wrapf(err, "deleting links for scan %d", id)
		}

		err := tx.Exec(
			"DELETE FROM subdomains WHERE id NOT IN (SELECT DISTINCT subdomain_id FROM scan_subdomains)",
		).Error
		if err != nil {
			return errors.Wrapf(err, "deleting orphaned subdomains for scan %d", id)
		}
		return nil
	})
}

// CountScanSubdomains cuenta los subdominios enlazados a un escaneo.
func (s *Store) CountScanSubdomains(ctx context.Context, scanID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&scanSubdomainRow{}).
		Where("scan_id = ?", scanID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrapf(err, "counting subdomains for scan %d", scanID)
	}
	return count, nil
}
