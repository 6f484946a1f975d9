package database

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kevgathuku/server/internal/config"
	"github.com/kevgathuku/server/internal/logging"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// NewDatabase opens the share database, retrying with backoff while the
// server comes up before the database does.
func NewDatabase(cfg *config.ServerCmdConfig) (*gorm.DB, error) {
	lvl, err := zapcore.ParseLevel(cfg.DB.LogLevel)
	if err != nil {
		lvl = zapcore.WarnLevel
	}
	gormLogger := NewLogger(time.Second, true, lvl)

	var db *gorm.DB
	open := func() error {
		var err error
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DB.DataSource,
			PreferSimpleProtocol: !cfg.DB.PrepareStmt,
		}), &gorm.Config{
			Logger: gormLogger,
			NamingStrategy: schema.NamingStrategy{
				TablePrefix:   "server.",
				SingularTable: false,
			},
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		if err != nil {
			logging.DefaultLogger().Sugar().Warnf("failed to open database: %v", err)
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 5)
	if err := backoff.Retry(open, policy); err != nil {
		return nil, err
	}

	if cfg.DB.Pool.Enable {
		rawDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		rawDB.SetMaxOpenConns(cfg.DB.Pool.MaxOpenConnections)
		rawDB.SetMaxIdleConns(cfg.DB.Pool.MaxIdleConnections)
		rawDB.SetConnMaxLifetime(cfg.DB.Pool.MaxLifetime)
	}

	return db, nil
}
