package movie

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/movie-top/models"
	"github.com/webtor-io/movie-top/services/tmdb"
)

var (
	ErrNotFound            = errors.New("movie not found")
	ErrDuplicateID         = errors.New("movie already exists")
	ErrValidationFailed    = errors.New("validation failed")
	ErrRankingUpdateFailed = errors.New("ranking update failed")
)

type Service struct {
	store    Store
	imageURL string
}

func New(store Store, imageURL string) *Service {
	if imageURL == "" {
		imageURL = tmdb.DefaultImageURL
	}
	return &Service{
		store:    store,
		imageURL: imageURL,
	}
}

// NewMovieFromCandidate maps a search candidate to an unrated movie.
func NewMovieFromCandidate(c *tmdb.Movie, imageURL string) *models.Movie {
	return &models.Movie{
		MovieID:     c.ID,
		Title:       models.TruncateString(c.Title, models.MovieTitleMaxLength),
		Year:        models.YearFromReleaseDate(c.ReleaseDate),
		Description: models.TruncateString(c.Overview, models.MovieDescriptionMaxLength),
		ImgURL:      models.PosterURL(imageURL, c.PosterPath),
	}
}

func (s *Service) Create(ctx context.Context, c *tmdb.Movie) (*models.Movie, error) {
	if c == nil || c.ID <= 0 {
		return nil, errors.Wrap(ErrValidationFailed, "invalid movie id")
	}
	m := NewMovieFromCandidate(c, s.imageURL)
	if m.Title == "" {
		return nil, errors.Wrap(ErrValidationFailed, "empty title")
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"movie_id": m.MovieID,
		"title":    m.Title,
	}).Info("movie added")
	return m, nil
}

func (s *Service) Get(ctx context.Context, id int) (*models.Movie, error) {
	return s.store.Get(ctx, id)
}

// Rate sets the rating. An empty review keeps the previous one.
func (s *Service) Rate(ctx context.Context, id int, rating float64, review string) error {
	if !models.IsValidRating(rating) {
		return errors.Wrapf(ErrValidationFailed, "rating %v out of range", rating)
	}
	review = strings.TrimSpace(review)
	if utf8.RuneCountInString(review) > models.MovieReviewMaxLength {
		return errors.Wrapf(ErrValidationFailed, "review longer than %v", models.MovieReviewMaxLength)
	}
	u := &models.MovieUpdate{
		Rating: &rating,
	}
	if review != "" {
		u.Review = &review
	}
	return s.store.Update(ctx, id, u)
}

func (s *Service) Delete(ctx context.Context, id int) error {
	err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	log.WithField("movie_id", id).Info("movie removed")
	return nil
}

// List returns movies in ranking order without touching stored rankings.
func (s *Service) List(ctx context.Context) ([]*models.Movie, error) {
	return s.store.ListByRatingDesc(ctx)
}

// Recalculate assigns dense rankings 1..N in rating order and persists
// each of them. Rows written before a failure stay written.
func (s *Service) Recalculate(ctx context.Context) ([]*models.Movie, error) {
	ms, err := s.store.ListByRatingDesc(ctx)
	if err != nil {
		return nil, err
	}
	for i, m := range ms {
		ranking := i + 1
		err = s.store.SetRanking(ctx, m.MovieID, ranking)
		if err != nil {
			return nil, errors.Wrapf(ErrRankingUpdateFailed, "movie %v after %v of %v updated: %v", m.MovieID, i, len(ms), err)
		}
		m.Ranking = ranking
	}
	return ms, nil
}
