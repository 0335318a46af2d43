package movie

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	ms "github.com/webtor-io/movie-top/services/movie"
	"github.com/webtor-io/movie-top/services/web"
)

func (s *Handler) delete(c *gin.Context) {
	id, ok := bindID(c, "id")
	if !ok {
		s.renderError(c, http.StatusNotFound, "Movie not found", nil)
		return
	}
	err := s.movies.Delete(c.Request.Context(), id)
	if errors.Is(err, ms.ErrNotFound) {
		s.renderError(c, http.StatusNotFound, "Movie not found", err)
		return
	} else if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to remove movie", err)
		return
	}
	web.RedirectWithMessage(c, "/", "Movie removed")
}
