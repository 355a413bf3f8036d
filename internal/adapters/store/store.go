// internal/adapters/store/store.go

// Package store implementa la persistencia del motor sobre GORM. Soporta
// Postgres en producción y SQLite para despliegues ligeros y tests.
package store

import (
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
)

// Config configura la conexión a la base de datos.
type Config struct {
	// Driver: "postgres" o "sqlite".
	Driver string

	// DSN de conexión (keyword DSN de Postgres o ruta de fichero SQLite).
	DSN string
}

// Store implementa ports.Store sobre una conexión GORM.
type Store struct {
	db     *gorm.DB
	logger logx.Logger
}

// Open abre la conexión según el driver y ejecuta las migraciones.
func Open(cfg Config, logger logx.Logger) (*Store, error) {
	var dial gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dial = postgres.Open(cfg.DSN)
	case "sqlite":
		dial = sqlite.Open(cfg.DSN)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", cfg.Driver)
	}

	return New(db, logger)
}

// New envuelve una conexión GORM ya abierta y ejecuta las migraciones.
func New(db *gorm.DB, logger logx.Logger) (*Store, error) {
	if logger == nil {
		logger = logx.New()
	}

	if err := db.AutoMigrate(
		&scanRow{},
		&subdomainRow{},
		&scanSubdomainRow{},
		&toolRow{},
		&settingRow{},
	); err != nil {
		return nil, errors.Wrap(err, "running migrations")
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// DB expone la conexión subyacente (útil para tests).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close cierra la conexión subyacente.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "getting underlying connection")
	}
	return sqlDB.Close()
}

// notFound mapea el sentinel de GORM al de la plataforma.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(errors.ErrNotFound, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}
