package movie

import (
	"context"

	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	"github.com/webtor-io/movie-top/models"
)

// Store persists movies. Every mutation is committed immediately.
type Store interface {
	Create(ctx context.Context, m *models.Movie) error
	Get(ctx context.Context, id int) (*models.Movie, error)
	Update(ctx context.Context, id int, u *models.MovieUpdate) error
	Delete(ctx context.Context, id int) error
	ListByRatingDesc(ctx context.Context) ([]*models.Movie, error)
	SetRanking(ctx context.Context, id int, ranking int) error
}

type dbProvider interface {
	Get() *pg.DB
}

type PGStore struct {
	pg dbProvider
}

func NewPGStore(pg dbProvider) *PGStore {
	return &PGStore{
		pg: pg,
	}
}

func (s *PGStore) db() (*pg.DB, error) {
	db := s.pg.Get()
	if db == nil {
		return nil, errors.New("no db")
	}
	return db, nil
}

func (s *PGStore) Create(ctx context.Context, m *models.Movie) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	ok, err := models.CreateMovie(ctx, db, m)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrDuplicateID, "movie %v", m.MovieID)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id int) (*models.Movie, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	m, err := models.GetMovieByID(ctx, db, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get movie %v", id)
	}
	if m == nil {
		return nil, errors.Wrapf(ErrNotFound, "movie %v", id)
	}
	return m, nil
}

func (s *PGStore) Update(ctx context.Context, id int, u *models.MovieUpdate) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	ok, err := models.UpdateMovie(ctx, db, id, u)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "movie %v", id)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id int) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	ok, err := models.DeleteMovie(ctx, db, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "movie %v", id)
	}
	return nil
}

func (s *PGStore) ListByRatingDesc(ctx context.Context) ([]*models.Movie, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	ms, err := models.GetMoviesByRating(ctx, db)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list movies")
	}
	return ms, nil
}

func (s *PGStore) SetRanking(ctx context.Context, id int, ranking int) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	ok, err := models.SetMovieRanking(ctx, db, id, ranking)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "movie %v", id)
	}
	return nil
}

var _ Store = (*PGStore)(nil)
