package movie

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/pkg/errors"
	"github.com/webtor-io/movie-top/services/tmdb"
	"github.com/webtor-io/movie-top/services/web"
)

type AddForm struct {
	Title string `form:"movie_title" binding:"required,max=250"`
}

type AddData struct {
	Title       string
	Errors      map[string]string
	Unavailable bool
}

type SelectData struct {
	Title      string
	Ref        string
	Candidates []*tmdb.Movie
}

func (s *Handler) add(c *gin.Context) {
	s.tb.Build("movies/add").HTML(http.StatusOK, web.NewContext(c).WithData(&AddData{}))
}

func (s *Handler) addPost(c *gin.Context) {
	var form AddForm
	err := c.ShouldBindWith(&form, binding.FormPost)
	form.Title = strings.TrimSpace(form.Title)
	if err == nil && form.Title == "" {
		err = errors.New("empty title")
	}
	if err != nil {
		errs := formErrors(err, &form, "movie_title")
		if form.Title == "" {
			errs["movie_title"] = "is required"
		}
		s.tb.Build("movies/add").HTML(http.StatusUnprocessableEntity, web.NewContext(c).WithData(&AddData{
			Title:  c.PostForm("movie_title"),
			Errors: errs,
		}))
		return
	}

	sd, err := s.searchCandidates(c, form.Title)
	if errors.Is(err, tmdb.ErrSearchUnavailable) || errors.Is(err, tmdb.ErrMalformedResponse) {
		web.Logger(c).WithError(err).Warn("movie search failed")
		s.tb.Build("movies/add").HTML(http.StatusServiceUnavailable, web.NewContext(c).WithData(&AddData{
			Title:       form.Title,
			Unavailable: true,
		}))
		return
	} else if err != nil {
		s.renderError(c, http.StatusInternalServerError, "Failed to search movies", err)
		return
	}
	s.tb.Build("movies/select").HTML(http.StatusOK, web.NewContext(c).WithData(sd))
}

func (s *Handler) searchCandidates(c *gin.Context, title string) (*SelectData, error) {
	if s.search == nil {
		return nil, errors.Wrap(tmdb.ErrSearchUnavailable, "no search api configured")
	}
	ctx := c.Request.Context()
	movies, err := s.search.Search(ctx, title)
	if err != nil {
		return nil, err
	}
	ref, err := s.candidates.Put(ctx, movies)
	if err != nil {
		// selection still works by re-fetching the movie by id
		web.Logger(c).WithError(err).Warn("failed to cache candidates")
		ref = ""
	}
	return &SelectData{
		Title:      title,
		Ref:        ref,
		Candidates: movies,
	}, nil
}
