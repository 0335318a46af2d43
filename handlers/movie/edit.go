package movie

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/pkg/errors"
	"github.com/webtor-io/movie-top/models"
	ms "github.com/webtor-io/movie-top/services/movie"
	"github.com/webtor-io/movie-top/services/web"
)

type EditForm struct {
	Rating *float64 `form:"rating" binding:"required,gte=1,lte=10"`
	Review string   `form:"review" binding:"max=250"`
}

type EditData struct {
	Movie  *models.Movie
	Rating string
	Review string
	Errors map[string]string
}

func (s *Handler) renderEdit(c *gin.Context, code int, d *EditData) {
	s.tb.Build("movies/edit").HTML(code, web.NewContext(c).WithData(d))
}

func (s *Handler) getMovie(c *gin.Context) (*models.Movie, bool) {
	id, ok := bindID(c, "id")
	if !ok {
		s.renderError(c, http.StatusNotFound, "Movie not found", nil)
		return nil, false
	}
	m, err := s.movies.Get(c.Request.Context(), id)
	if errors.Is(err, ms.ErrNotFound) {
		s.renderError(c, http.StatusNotFound, "Movie not found", err)
		return nil, false
	} else if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to get movie", err)
		return nil, false
	}
	return m, true
}

func (s *Handler) edit(c *gin.Context) {
	m, ok := s.getMovie(c)
	if !ok {
		return
	}
	s.renderEdit(c, http.StatusOK, &EditData{
		Movie: m,
	})
}

func (s *Handler) editPost(c *gin.Context) {
	m, ok := s.getMovie(c)
	if !ok {
		return
	}
	var form EditForm
	if err := c.ShouldBindWith(&form, binding.FormPost); err != nil {
		s.renderEdit(c, http.StatusUnprocessableEntity, &EditData{
			Movie:  m,
			Rating: c.PostForm("rating"),
			Review: c.PostForm("review"),
			Errors: formErrors(err, &form, "rating"),
		})
		return
	}
	err := s.movies.Rate(c.Request.Context(), m.MovieID, *form.Rating, form.Review)
	if errors.Is(err, ms.ErrValidationFailed) {
		s.renderEdit(c, http.StatusUnprocessableEntity, &EditData{
			Movie:  m,
			Rating: c.PostForm("rating"),
			Review: c.PostForm("review"),
			Errors: map[string]string{"rating": "is invalid"},
		})
		return
	} else if errors.Is(err, ms.ErrNotFound) {
		s.renderError(c, http.StatusNotFound, "Movie not found", err)
		return
	} else if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to save rating", err)
		return
	}
	web.RedirectWithMessage(c, "/", "Rating saved")
}
