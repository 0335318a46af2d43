package movie

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/webtor-io/movie-top/models"
	ms "github.com/webtor-io/movie-top/services/movie"
	"github.com/webtor-io/movie-top/services/tmdb"
)

func (s *Handler) create(c *gin.Context) {
	id, ok := bindID(c, "movie_id")
	if !ok {
		s.renderError(c, http.StatusBadRequest, "Wrong movie selected", nil)
		return
	}
	m, err := s.createFromCandidate(c, c.Query("ref"), id)
	switch {
	case errors.Is(err, ms.ErrDuplicateID):
		s.renderError(c, http.StatusConflict, "Movie is already in the list", err)
	case errors.Is(err, ms.ErrNotFound):
		s.renderError(c, http.StatusNotFound, "Movie not found", err)
	case errors.Is(err, ms.ErrValidationFailed):
		s.renderError(c, http.StatusBadRequest, "Wrong movie selected", err)
	case errors.Is(err, tmdb.ErrSearchUnavailable), errors.Is(err, tmdb.ErrMalformedResponse):
		s.renderError(c, http.StatusServiceUnavailable, "Movie search is unavailable", err)
	case err != nil:
		s.renderError(c, http.StatusInternalServerError, "Failed to add movie", err)
	default:
		s.renderEdit(c, http.StatusOK, &EditData{
			Movie: m,
		})
	}
}

func (s *Handler) createFromCandidate(c *gin.Context, ref string, id int) (*models.Movie, error) {
	ctx := c.Request.Context()
	cand, err := s.candidates.Resolve(ctx, ref, id)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, errors.Wrapf(ms.ErrNotFound, "candidate %v", id)
	}
	return s.movies.Create(ctx, cand)
}
