// internal/adapters/store/subdomains.go
package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// upsertSubdomain inserta el hostname o, si ya existe, conserva la fila y
// solo avanza last_seen_at y rellena target_domain si estaba a NULL. El ID
// que deja el driver tras un conflicto no es fiable, así que siempre se
// recupera por hostname.
func upsertSubdomain(db *gorm.DB, d domain.Discovery) (uint, error) {
	sub := domain.NewSubdomain(d.Hostname, d.TargetDomain)
	if err := sub.Validate(); err != nil {
		return 0, err
	}

	row := subdomainToRow(sub)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "hostname"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_seen_at": gorm.Expr(
				"CASE WHEN subdomains.last_seen_at >= excluded.last_seen_at" +
					" THEN subdomains.last_seen_at ELSE excluded.last_seen_at END"),
			"target_domain": gorm.Expr("COALESCE(subdomains.target_domain, excluded.target_domain)"),
		}),
	}).Create(row).Error
	if err != nil {
		return 0, errors.Wrapf(err, "upserting subdomain %s", sub.Hostname)
	}

	var existing subdomainRow
	if err := db.Select("id").Where("hostname = ?", sub.Hostname).First(&existing).Error; err != nil {
		return 0, errors.Wrapf(err, "resolving id for subdomain %s", sub.Hostname)
	}
	return existing.ID, nil
}

// linkSubdomain enlaza el subdominio al escaneo. Reporta true solo si el
// enlace no existía.
func linkSubdomain(db *gorm.DB, scanID, subdomainID uint, source string) (bool, error) {
	link := &scanSubdomainRow{
		ScanID:       scanID,
		SubdomainID:  subdomainID,
		Source:       source,
		DiscoveredAt: time.Now().UTC(),
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(link)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "linking subdomain %d to scan %d", subdomainID, scanID)
	}
	return res.RowsAffected > 0, nil
}

// SaveDiscovery hace upsert del hostname y lo enlaza al escaneo en una
// transacción propia.
func (s *Store) SaveDiscovery(ctx context.Context, scanID uint, d domain.Discovery) (bool, error) {
	var newLink bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := upsertSubdomain(tx, d)
		if err != nil {
			return err
		}
		newLink, err = linkSubdomain(tx, scanID, id, d.Source)
		return err
	})
	return newLink, err
}

// discoveryBatch acumula hallazgos en una transacción que se confirma por
// lotes desde el ejecutor.
type discoveryBatch struct {
	store  *Store
	ctx    context.Context
	scanID uint
	tx     *gorm.DB
	closed bool
}

// OpenBatch abre un lote transaccional de hallazgos para un escaneo.
func (s *Store) OpenBatch(ctx context.Context, scanID uint) (ports.DiscoveryBatch, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "opening discovery batch")
	}
	return &discoveryBatch{store: s, ctx: ctx, scanID: scanID, tx: tx}, nil
}

// Add hace upsert y enlace dentro de la transacción abierta.
func (b *discoveryBatch) Add(d domain.Discovery) (bool, error) {
	if b.closed {
		return false, errors.Wrap(errors.ErrInvalidInput, "discovery batch closed")
	}
	id, err := upsertSubdomain(b.tx, d)
	if err != nil {
		return false, err
	}
	return linkSubdomain(b.tx, b.scanID, id, d.Source)
}

// Flush confirma la transacción en curso y abre la siguiente.
func (b *discoveryBatch) Flush() error {
	if b.closed {
		return nil
	}
	if err := b.tx.Commit().Error; err != nil {
		return errors.Wrap(err, "committing discovery batch")
	}
	b.tx = b.store.db.WithContext(b.ctx).Begin()
	return errors.Wrap(b.tx.Error, "reopening discovery batch")
}

// Close confirma lo pendiente y libera la transacción.
func (b *discoveryBatch) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return errors.Wrap(b.tx.Commit().Error, "closing discovery batch")
}

// aliveStates son los estados con respuesta HTTP en algún esquema.
var aliveStates = []string{
	domain.OnlineStateBoth.String(),
	domain.OnlineStateHTTP.String(),
	domain.OnlineStateHTTPS.String(),
}

// subdomainQuery construye la consulta base según el filtro, sin orden.
func (s *Store) subdomainQuery(ctx context.Context, f ports.SubdomainFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&subdomainRow{})
	if f.ScanID != 0 {
		// Select explícito: el JOIN duplica la columna id y el scan de la
		// fila tomaría el id del enlace.
		q = q.Select("subdomains.*").
			Joins("JOIN scan_subdomains ON scan_subdomains.subdomain_id = subdomains.id").
			Where("scan_subdomains.scan_id = ?", f.ScanID)
	}
	if f.Target != "" {
		q = q.Where("subdomains.target_domain = ?", f.Target)
	}
	if f.Search != "" {
		q = q.Where("subdomains.hostname LIKE ?", "%"+f.Search+"%")
	}
	if f.OnlineState != "" {
		q = q.Where("subdomains.online_state = ?", f.OnlineState.String())
	}
	if f.AliveOnly {
		q = q.Where("subdomains.online_state IN ?", aliveStates)
	}
	return q
}

// Subdomain recupera un subdominio por ID.
func (s *Store) Subdomain(ctx context.Context, id uint) (*domain.Subdomain, error) {
	var row subdomainRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err, "subdomain %d", id)
	}
	return row.toDomain(), nil
}

// SubdomainByHostname recupera un subdominio por hostname exacto.
func (s *Store) SubdomainByHostname(ctx context.Context, hostname string) (*domain.Subdomain, error) {
	var row subdomainRow
	err := s.db.WithContext(ctx).Where("hostname = ?", hostname).First(&row).Error
	if err != nil {
		return nil, notFound(err, "subdomain %s", hostname)
	}
	return row.toDomain(), nil
}

// Subdomains lista subdominios según el filtro, ordenados por hostname.
func (s *Store) Subdomains(ctx context.Context, f ports.SubdomainFilter) ([]*domain.Subdomain, error) {
	q := s.subdomainQuery(ctx, f).Order("subdomains.hostname")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []subdomainRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing subdomains")
	}

	subs := make([]*domain.Subdomain, 0, len(rows))
	for i := range rows {
		subs = append(subs, rows[i].toDomain())
	}
	return subs, nil
}

// CountSubdomains cuenta subdominios según el filtro.
func (s *Store) CountSubdomains(ctx context.Context, f ports.SubdomainFilter) (int64, error) {
	var count int64
	if err := s.subdomainQuery(ctx, f).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "counting subdomains")
	}
	return count, nil
}

// ScanHostnames retorna los hostnames enlazados a un escaneo, ordenados.
func (s *Store) ScanHostnames(ctx context.Context, scanID uint) ([]string, error) {
	var hostnames []string
	err := s.db.WithContext(ctx).Model(&subdomainRow{}).
		Joins("JOIN scan_subdomains ON scan_subdomains.subdomain_id = subdomains.id").
		Where("scan_subdomains.scan_id = ?", scanID).
		Order("subdomains.hostname").
		Pluck("subdomains.hostname", &hostnames).Error
	if err != nil {
		return nil, errors.Wrapf(err, "listing hostnames for scan %d", scanID)
	}
	return hostnames, nil
}

// AllHostnames retorna todos los hostnames almacenados, ordenados.
func (s *Store) AllHostnames(ctx context.Context) ([]string, error) {
	var hostnames []string
	err := s.db.WithContext(ctx).Model(&subdomainRow{}).
		Order("hostname").
		Pluck("hostname", &hostnames).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing hostnames")
	}
	return hostnames, nil
}

// RecordProbe vuelca el resultado de una sonda sobre la fila del hostname.
func (s *Store) RecordProbe(ctx context.Context, r domain.ProbeResult) error {
	probedAt := r.ProbedAt
	if probedAt.IsZero() {
		probedAt = time.Now().UTC()
	}

	updates := map[string]interface{}{
		"online_state":   r.State.String(),
		"http_status":    r.HTTPStatus,
		"resolved_ip":    r.ResolvedIP,
		"cname":          r.CNAME,
		"last_probed_at": probedAt,
	}
	res := s.db.WithContext(ctx).Model(&subdomainRow{}).
		Where("hostname = ?", r.Hostname).
		Updates(updates)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "recording probe for %s", r.Hostname)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "subdomain %s", r.Hostname)
	}
	return nil
}
