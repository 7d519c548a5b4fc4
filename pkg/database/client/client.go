package client

import (
	"database/sql"
	"os"
	"sync"
	"time"

	sqltrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/database/sql"
)

var registerOnce sync.Map

// Open registers a named driver for cfg and returns a pooled handle.
func Open(name string, cfg *Database) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	drv := NewDriver(cfg)
	if cfg.TracingEnabled {
		if _, loaded := registerOnce.LoadOrStore("trace:"+name, struct{}{}); !loaded {
			sqltrace.Register(name, drv, sqltrace.WithServiceName(os.Getenv("DD_SERVICE")))
		}
		db, err = sqltrace.Open(name, "", sqltrace.WithServiceName(os.Getenv("DD_SERVICE")))
	} else {
		if _, loaded := registerOnce.LoadOrStore(name, struct{}{}); !loaded {
			sql.Register(name, drv)
		}
		db, err = sql.Open(name, "")
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(int(cfg.MaxIdleConns))
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxOpenConns))
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}
	if cfg.ConnMaxLifeTime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeTime) * time.Minute)
	}
	return db, nil
}
