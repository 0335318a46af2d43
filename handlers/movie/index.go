package movie

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webtor-io/movie-top/models"
	"github.com/webtor-io/movie-top/services/web"
)

type IndexData struct {
	Movies []*models.Movie
}

func (s *Handler) index(c *gin.Context) {
	movies, err := s.movies.Recalculate(c.Request.Context())
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to update rankings", err)
		return
	}
	s.tb.Build("movies/index").HTML(http.StatusOK, web.NewContext(c).WithData(&IndexData{
		Movies: movies,
	}))
}
