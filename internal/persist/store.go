package persist

import (
	"context"
	"embed"
	"io/fs"
	"time"

	"github.com/innernet/server/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedded embed.FS

// schema is the migration set with the directory prefix stripped, so goose
// sees 00001_init.sql at its root.
func schema() (fs.FS, error) {
	return fs.Sub(embedded, "migrations")
}

// connectAttempts bounds how often Open pings a database that is still
// starting up.
const connectAttempts = 5

// Store owns the event database pool.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Open builds a pool for cfg.DSN and waits until the server answers a ping.
// Failed pings are retried with a growing pause until ctx ends.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "parse dsn")
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	s := &Store{pool: pool, log: log.Named("store")}
	if err := s.waitReady(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s.log.Info("database connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return s, nil
}

func (s *Store) waitReady(ctx context.Context) error {
	pause := 250 * time.Millisecond
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = s.pool.Ping(ctx); err == nil {
			return nil
		}
		s.log.Warn("database not ready",
			zap.Int("attempt", attempt), zap.Duration("retry_in", pause), zap.Error(err))
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait for database")
		case <-time.After(pause):
		}
		pause *= 2
	}
	return errors.Wrapf(err, "ping database after %d attempts", connectAttempts)
}

// Migrate brings the schema up to date and returns the version it ends at.
func (s *Store) Migrate(ctx context.Context) (int64, error) {
	fsys, err := schema()
	if err != nil {
		return 0, errors.Wrap(err, "open schema")
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return 0, errors.Wrap(err, "migration provider")
	}
	results, err := p.Up(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "apply migrations")
	}
	for _, r := range results {
		s.log.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
	version, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read schema version")
	}
	return version, nil
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
	s.log.Debug("database closed")
}
