package movie

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webtor-io/movie-top/models"
	"github.com/webtor-io/movie-top/services/web"
)

type MovieJSON struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Year        *int16   `json:"year"`
	Description string   `json:"description"`
	Rating      *float64 `json:"rating"`
	Rank        int      `json:"rank"`
	Review      *string  `json:"review"`
	ImgURL      string   `json:"img_url"`
	PosterURL   string   `json:"poster_url,omitempty"`
}

type ListJSON struct {
	Movies []*MovieJSON `json:"movies"`
}

func makeMovieJSON(m *models.Movie, rank int) *MovieJSON {
	mj := &MovieJSON{
		ID:          m.MovieID,
		Title:       m.Title,
		Year:        m.Year,
		Description: m.Description,
		Rating:      m.Rating,
		Rank:        rank,
		Review:      m.Review,
		ImgURL:      m.ImgURL,
	}
	if m.ImgURL != "" {
		mj.PosterURL = fmt.Sprintf("/poster/%v/300.jpg", m.MovieID)
	}
	return mj
}

// list derives ranks from the current order and does not store them.
func (s *Handler) list(c *gin.Context) {
	movies, err := s.movies.List(c.Request.Context())
	if err != nil {
		web.Logger(c).WithError(err).Error("failed to list movies")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list movies"})
		return
	}
	res := &ListJSON{
		Movies: make([]*MovieJSON, 0, len(movies)),
	}
	for i, m := range movies {
		res.Movies = append(res.Movies, makeMovieJSON(m, i+1))
	}
	c.JSON(http.StatusOK, res)
}
