//go:build integration

package movie

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-pg/migrations/v8"
	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/webtor-io/movie-top/models"
	"github.com/webtor-io/movie-top/services/migration"
	"github.com/webtor-io/movie-top/services/tmdb"
)

type staticDB struct {
	db *pg.DB
}

func (s *staticDB) Get() *pg.DB {
	return s.db
}

type PGStoreIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *pg.DB
	migrDir   string
	store     *PGStore
	svc       *Service
}

func (s *PGStoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	opt, err := pg.ParseURL(connStr)
	s.Require().NoError(err)
	s.db = pg.Connect(opt)
	s.Require().NoError(s.db.Ping(s.ctx))

	s.migrDir = migrationsPath
	s.Require().NoError(s.migrate("up"))

	s.store = NewPGStore(&staticDB{db: s.db})
	s.svc = New(s.store, "")
}

func (s *PGStoreIntegrationSuite) migrate(a ...string) error {
	return migration.NewWithDir(&staticDB{db: s.db}, migrations.NewCollection(), s.migrDir).Run(a...)
}

func (s *PGStoreIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PGStoreIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM movie")
}

func (s *PGStoreIntegrationSuite) create(id int, title string) {
	_, err := s.svc.Create(s.ctx, &tmdb.Movie{ID: id, Title: title, ReleaseDate: "2020-05-01", PosterPath: "/p.jpg"})
	s.Require().NoError(err)
}

func (s *PGStoreIntegrationSuite) TestCreateAndGet() {
	s.create(42, "X")

	m, err := s.store.Get(s.ctx, 42)
	s.Require().NoError(err)
	s.Equal("X", m.Title)
	s.Equal(2020, m.GetIntYear())
	s.Equal("https://image.tmdb.org/t/p//p.jpg", m.ImgURL)
	s.Nil(m.Rating)
	s.Nil(m.Review)
	s.Equal(0, m.Ranking)
	s.False(m.CreatedAt.IsZero())
}

func (s *PGStoreIntegrationSuite) TestCreateDuplicate() {
	s.create(42, "X")
	_, err := s.svc.Create(s.ctx, &tmdb.Movie{ID: 42, Title: "Y"})
	s.True(errors.Is(err, ErrDuplicateID))

	m, err := s.store.Get(s.ctx, 42)
	s.Require().NoError(err)
	s.Equal("X", m.Title)
}

func (s *PGStoreIntegrationSuite) TestGetNotFound() {
	_, err := s.store.Get(s.ctx, 1)
	s.True(errors.Is(err, ErrNotFound))
}

func (s *PGStoreIntegrationSuite) TestRateKeepsReview() {
	s.create(1, "A")
	s.Require().NoError(s.svc.Rate(s.ctx, 1, 6, "fine"))
	s.Require().NoError(s.svc.Rate(s.ctx, 1, 7.5, ""))

	m, err := s.store.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(7.5, m.GetRating())
	s.Equal("fine", m.GetReview())
}

func (s *PGStoreIntegrationSuite) TestRatingCheckConstraint() {
	s.create(1, "A")
	r := 11.0
	err := s.store.Update(s.ctx, 1, &models.MovieUpdate{Rating: &r})
	s.Error(err)
}

func (s *PGStoreIntegrationSuite) TestDelete() {
	s.create(1, "A")
	s.Require().NoError(s.store.Delete(s.ctx, 1))
	s.True(errors.Is(s.store.Delete(s.ctx, 1), ErrNotFound))
}

func (s *PGStoreIntegrationSuite) TestRecalculate() {
	s.create(1, "A")
	s.create(2, "B")
	s.create(3, "C")
	s.create(4, "D")
	s.Require().NoError(s.svc.Rate(s.ctx, 1, 5, ""))
	s.Require().NoError(s.svc.Rate(s.ctx, 3, 9, ""))
	s.Require().NoError(s.svc.Rate(s.ctx, 4, 5, ""))

	_, err := s.svc.Recalculate(s.ctx)
	s.Require().NoError(err)

	ms, err := s.store.ListByRatingDesc(s.ctx)
	s.Require().NoError(err)
	var ids []int
	for i, m := range ms {
		ids = append(ids, m.MovieID)
		s.Equal(i+1, m.Ranking)
	}
	s.Equal([]int{3, 1, 4, 2}, ids)
}

func (s *PGStoreIntegrationSuite) TestMigrateDownAndUp() {
	s.Require().NoError(s.migrate("down"))
	var exists bool
	_, err := s.db.QueryOneContext(s.ctx, pg.Scan(&exists), "SELECT to_regclass('movie') IS NOT NULL")
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(s.migrate("up"))
	_, err = s.db.QueryOneContext(s.ctx, pg.Scan(&exists), "SELECT to_regclass('movie') IS NOT NULL")
	s.Require().NoError(err)
	s.True(exists)

	s.create(1, "A")
	_, err = s.store.Get(s.ctx, 1)
	s.NoError(err)
}

func TestPGStoreIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PGStoreIntegrationSuite))
}
