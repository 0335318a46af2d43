package movie

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli"
	ms "github.com/webtor-io/movie-top/services/movie"
	"github.com/webtor-io/movie-top/services/template"
	"github.com/webtor-io/movie-top/services/tmdb"
	"github.com/webtor-io/movie-top/services/web"
)

const (
	apiAllowOriginsFlag = "api-allow-origins"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringSliceFlag{
			Name:   apiAllowOriginsFlag,
			Usage:  "origins allowed to read json api",
			EnvVar: "API_ALLOW_ORIGINS",
		},
	)
}

type Searcher interface {
	Search(ctx context.Context, title string) ([]*tmdb.Movie, error)
}

type Candidates interface {
	Put(ctx context.Context, movies []*tmdb.Movie) (string, error)
	Resolve(ctx context.Context, ref string, id int) (*tmdb.Movie, error)
}

type Handler struct {
	tb         template.Builder[*web.Context]
	movies     *ms.Service
	search     Searcher
	candidates Candidates
}

func RegisterHandler(c *cli.Context, r *gin.Engine, tm *template.Manager[*web.Context], movies *ms.Service, search Searcher, candidates Candidates) {
	h := newHandler(tm, movies, search, candidates)
	h.register(r, makeCORSConfig(c.StringSlice(apiAllowOriginsFlag)))
}

func newHandler(tm *template.Manager[*web.Context], movies *ms.Service, search Searcher, candidates Candidates) *Handler {
	return &Handler{
		tb:         tm.MustRegisterViews("movies/*").WithLayout("main"),
		movies:     movies,
		search:     search,
		candidates: candidates,
	}
}

func makeCORSConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

func (s *Handler) register(r *gin.Engine, cfg cors.Config) {
	r.GET("/", s.index)
	r.GET("/add-movie", s.add)
	r.POST("/add-movie", s.addPost)
	r.GET("/create_movie_list", s.create)
	r.GET("/edit_rating/", s.edit)
	r.POST("/edit_rating/", s.editPost)
	r.GET("/delete", s.delete)
	r.POST("/delete", s.delete)

	api := r.Group("/api")
	api.Use(cors.New(cfg))
	api.GET("/movies", s.list)
}

func bindID(c *gin.Context, key string) (int, bool) {
	id, err := strconv.Atoi(c.Query(key))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
