package pg

import (
	"context"
	"io/fs"

	_ "github.com/lib/pq"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

// Migrate runs a goose command ("up", "down", "status", "redo", "version")
// against the write database using migrations found in dir of fsys.
// A nil fsys reads dir from disk.
func Migrate(ctx context.Context, cfg Config, fsys fs.FS, dir string, command string, args ...string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "goose dialect")
	}
	if fsys != nil {
		goose.SetBaseFS(fsys)
		defer goose.SetBaseFS(nil)
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("running migrations", "command", command, "dir", dir)
	if err = goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return errors.Wrapf(err, "goose %s", command)
	}
	return nil
}
