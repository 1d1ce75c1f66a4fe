package store

import (
	"context"
	"fmt"
)

type Options struct {
	Backend       string
	RedisURL      string
	DatabaseURL   string
	MigrationsDir string
	GitDir        string
}

// Open builds the backend named by opts.Backend. The postgres backend applies
// pending migrations before returning.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(opts.RedisURL)
	case "postgres":
		db, err := OpenDB(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		migrations, err := Migrations(opts.MigrationsDir)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := ApplyMigrations(ctx, db, migrations); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewPostgres(db), nil
	case "git":
		return NewGit(opts.GitDir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
