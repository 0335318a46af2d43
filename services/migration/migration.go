package migration

import (
	"github.com/go-pg/migrations/v8"
	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	migrationsDirFlag = "migrations-dir"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   migrationsDirFlag,
			Usage:  "directory with sql migrations",
			Value:  "migrations",
			EnvVar: "MIGRATIONS_DIR",
		},
	)
}

type dbProvider interface {
	Get() *pg.DB
}

type PGMigration struct {
	db  dbProvider
	col *migrations.Collection
	dir string
}

func New(c *cli.Context, db dbProvider, col *migrations.Collection) *PGMigration {
	return NewWithDir(db, col, c.String(migrationsDirFlag))
}

func NewWithDir(db dbProvider, col *migrations.Collection, dir string) *PGMigration {
	return &PGMigration{
		db:  db,
		col: col,
		dir: dir,
	}
}

func (s *PGMigration) Run(a ...string) error {
	db := s.db.Get()
	if db == nil {
		log.Info("db not initialized, skipping migration")
		return nil
	}
	if err := s.col.DiscoverSQLMigrations(s.dir); err != nil {
		return errors.Wrapf(err, "failed to discover migrations in %v", s.dir)
	}
	_, _, err := s.col.Run(db, "init")
	if err != nil {
		return errors.Wrap(err, "failed to init db migrations")
	}
	oldVersion, newVersion, err := s.col.Run(db, a...)
	if err != nil {
		return errors.Wrapf(err, "failed to migrate from %v to %v", oldVersion, newVersion)
	}
	l := log.WithField("dir", s.dir)
	if newVersion != oldVersion {
		l.Infof("db migrated from version %d to %d", oldVersion, newVersion)
	} else {
		l.Infof("db version is %d", oldVersion)
	}
	return nil
}
