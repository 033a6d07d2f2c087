package kv

import (
	"context"
	"database/sql"
	"fmt"
)

// Config selects and parameterizes a storage driver.
type Config struct {
	Driver Driver   `yaml:"driver"`
	Secret string   `yaml:"secret"`
	S3     S3Config `yaml:"s3"`
}

// Open returns the Storage described by cfg. db is only consulted by the
// sqlite driver. A non-empty Secret wraps the result in Sealed.
func Open(ctx context.Context, cfg Config, db *sql.DB) (Storage, error) {
	var (
		st  Storage
		err error
	)

	switch cfg.Driver {
	case DriverSQLite, "":
		if db == nil {
			return nil, fmt.Errorf("sqlite driver requires a database")
		}
		st = NewSQLite(db)
	case DriverMemory:
		st = NewMemory()
	case DriverS3:
		st, err = NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	if cfg.Secret != "" {
		return NewSealed(st, []byte(cfg.Secret))
	}
	return st, nil
}
