package poster

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
	"github.com/webtor-io/movie-top/models"
	ms "github.com/webtor-io/movie-top/services/movie"
	"github.com/webtor-io/movie-top/services/web"
)

const (
	posterCacheS3BucketFlag = "poster-cache-s3-bucket"
)

type PosterFormat string

const (
	PosterFormatJPEG PosterFormat = "jpg"
)

const (
	PosterJPEGQuality  = 85
	PosterMinWidth     = 16
	PosterMaxWidth     = 1000
	PosterFetchTimeout = 10 * time.Second
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   posterCacheS3BucketFlag,
			Usage:  "s3 bucket for resized posters",
			EnvVar: "POSTER_CACHE_S3_BUCKET",
		},
	)
}

type movieGetter interface {
	Get(ctx context.Context, id int) (*models.Movie, error)
}

type cache interface {
	Get(ctx context.Context, key string) (*bytes.Buffer, error)
	Put(ctx context.Context, key string, b *bytes.Buffer) error
}

type Handler struct {
	cl      *http.Client
	movies  movieGetter
	cache   cache
	timeout time.Duration
}

func RegisterHandler(c *cli.Context, r *gin.Engine, cl *http.Client, movies *ms.Service, s3Cl *cs.S3Client) {
	var pc cache
	if bucket := c.String(posterCacheS3BucketFlag); bucket != "" && s3Cl != nil {
		pc = newS3Cache(s3Cl.Get(), bucket)
	}
	h := &Handler{
		cl:      cl,
		movies:  movies,
		cache:   pc,
		timeout: PosterFetchTimeout,
	}
	h.register(r)
}

func (s *Handler) register(r *gin.Engine) {
	r.GET("/poster/:movie_id/:file", s.poster)
}

type PosterArgs struct {
	movieID int
	width   int
	format  PosterFormat
}

func (s *PosterArgs) Key() string {
	return fmt.Sprintf("movie/%v/%v.%v", s.movieID, s.width, s.format)
}

func (s *Handler) bindPosterArgs(c *gin.Context) (*PosterArgs, error) {
	id, err := strconv.Atoi(c.Param("movie_id"))
	if err != nil || id <= 0 {
		return nil, errors.Errorf("wrong movie id %v", c.Param("movie_id"))
	}
	file := c.Param("file")
	fileParts := strings.Split(file, ".")
	if len(fileParts) != 2 {
		return nil, errors.Errorf("wrong file format %v", file)
	}
	width, err := strconv.Atoi(fileParts[0])
	if err != nil {
		return nil, errors.Errorf("wrong width %v", fileParts[0])
	}
	if width < PosterMinWidth || width > PosterMaxWidth {
		return nil, errors.Errorf("width %v out of range", width)
	}
	f := PosterFormat(fileParts[1])
	if f != PosterFormatJPEG {
		return nil, errors.Errorf("wrong format %v", f)
	}
	return &PosterArgs{
		movieID: id,
		width:   width,
		format:  f,
	}, nil
}

func (s *Handler) poster(c *gin.Context) {
	pa, err := s.bindPosterArgs(c)
	if err != nil {
		web.Logger(c).WithError(err).Warn("failed to bind poster args")
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()

	m, err := s.movies.Get(ctx, pa.movieID)
	if errors.Is(err, ms.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	} else if err != nil {
		web.Logger(c).WithError(err).Error("failed to get movie")
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if m.ImgURL == "" {
		c.Status(http.StatusNotFound)
		return
	}

	b, err := s.getResizedJPEGPosterWithCache(ctx, m.ImgURL, pa)
	if err != nil {
		web.Logger(c).WithError(err).Error("failed to get resized image")
		_ = c.AbortWithError(http.StatusBadGateway, err)
		return
	}

	etag := s.generateETag(b.Bytes())

	if match := c.Request.Header.Get("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Content-Type", "image/jpeg")
	c.Header("Content-Length", strconv.Itoa(b.Len()))
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)

	_, _ = io.Copy(c.Writer, b)
}

func (s *Handler) generateETag(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf(`"%x"`, sum[:])
}

func (s *Handler) getResizedJPEGPosterWithCache(ctx context.Context, u string, args *PosterArgs) (*bytes.Buffer, error) {
	if s.cache == nil {
		return s.getResizedJPEGPoster(ctx, u, args)
	}
	b, err := s.cache.Get(ctx, args.Key())
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	b, err = s.getResizedJPEGPoster(ctx, u, args)
	if err != nil {
		return nil, err
	}
	err = s.cache.Put(ctx, args.Key(), b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Handler) getResizedJPEGPoster(ctx context.Context, u string, args *PosterArgs) (*bytes.Buffer, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.cl.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected poster status code %v", resp.StatusCode)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode poster")
	}

	resized := imaging.Resize(srcImg, args.width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: PosterJPEGQuality})
	if err != nil {
		return nil, err
	}
	return &buf, nil
}
