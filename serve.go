package main

import (
	"net/http"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
	hm "github.com/webtor-io/movie-top/handlers/movie"
	"github.com/webtor-io/movie-top/handlers/poster"
	sess "github.com/webtor-io/movie-top/handlers/session"
	"github.com/webtor-io/movie-top/handlers/sitemap"
	"github.com/webtor-io/movie-top/services/candidate"
	"github.com/webtor-io/movie-top/services/common"
	"github.com/webtor-io/movie-top/services/migration"
	"github.com/webtor-io/movie-top/services/movie"
	"github.com/webtor-io/movie-top/services/template"
	"github.com/webtor-io/movie-top/services/tmdb"
	w "github.com/webtor-io/movie-top/services/web"
)

func makeServeCMD() cli.Command {
	serveCMD := cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serves web server",
		Action:  serve,
	}
	configureServe(&serveCMD)
	return serveCMD
}

func configureServe(c *cli.Command) {
	c.Flags = cs.RegisterPGFlags(c.Flags)
	c.Flags = cs.RegisterProbeFlags(c.Flags)
	c.Flags = cs.RegisterS3ClientFlags(c.Flags)
	c.Flags = cs.RegisterRedisClientFlags(c.Flags)
	c.Flags = migration.RegisterFlags(c.Flags)
	c.Flags = w.RegisterFlags(c.Flags)
	c.Flags = common.RegisterFlags(c.Flags)
	c.Flags = sess.RegisterFlags(c.Flags)
	c.Flags = tmdb.RegisterFlags(c.Flags)
	c.Flags = candidate.RegisterFlags(c.Flags)
	c.Flags = hm.RegisterFlags(c.Flags)
	c.Flags = poster.RegisterFlags(c.Flags)
}

func serve(c *cli.Context) error {
	// Setting HTTP Client
	cl := http.DefaultClient

	// Setting DB
	pg := cs.NewPG(c)
	defer pg.Close()

	// Setting Migrations
	err := pgMigrate(c, "up")
	if err != nil {
		return err
	}

	// Setting template renderer
	re := multitemplate.NewRenderer()

	// Setting TemplateManager
	tm := template.NewManager[*w.Context](re).
		WithHelper(w.NewHelper(c))

	var servers []cs.Servable
	// Setting Probe
	probe := cs.NewProbe(c)
	if probe != nil {
		servers = append(servers, probe)
		defer probe.Close()
	}

	// Setting Gin
	r := gin.Default()
	r.RedirectTrailingSlash = false
	r.HTMLRender = re
	r.Use(w.RequestID())

	// Setting Web
	web, err := w.New(c, r)
	if err != nil {
		return err
	}
	servers = append(servers, web)
	defer web.Close()

	// Setting Session
	err = sess.RegisterHandler(c, r, []string{
		"/api/",
		"/poster/",
		"/sitemap.xml",
	})
	if err != nil {
		return err
	}

	// Setting Redis
	redis := cs.NewRedisClient(c)
	defer redis.Close()

	// Setting S3 Client
	s3Cl := cs.NewS3Client(c, cl)

	// Setting TMDB API
	var search hm.Searcher
	var fetcher candidate.Fetcher
	api := tmdb.New(c, cl)
	imageURL := tmdb.DefaultImageURL
	if api != nil {
		search = api
		fetcher = api
		imageURL = api.ImageURL()
	} else {
		log.Warn("tmdb api key not set, movie search disabled")
	}

	// Setting Candidates
	cands := candidate.New(c, redis.Get(), fetcher)

	// Setting Movies
	movies := movie.New(movie.NewPGStore(pg), imageURL)

	// Setting MovieHandler
	hm.RegisterHandler(c, r, tm, movies, search, cands)

	// Setting PosterHandler
	poster.RegisterHandler(c, r, cl, movies, s3Cl)

	// Setting SitemapHandler
	sitemap.RegisterHandler(c, r, movies)

	// Render templates
	err = tm.Init()
	if err != nil {
		return err
	}

	// Setting Serve
	serve := cs.NewServe(servers...)

	// And SERVE!
	err = serve.Serve()
	if err != nil {
		log.WithError(err).Error("got server error")
	}
	return err
}
