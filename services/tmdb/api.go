package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/time/rate"
)

const (
	tmdbApiKeyFlag       = "tmdb-api-key"
	tmdbApiSecureFlag    = "tmdb-api-secure"
	tmdbApiHostFlag      = "tmdb-api-host"
	tmdbApiPortFlag      = "tmdb-api-port"
	tmdbApiTimeoutFlag   = "tmdb-api-timeout"
	tmdbApiRateLimitFlag = "tmdb-api-rate-limit"
	tmdbSearchPageFlag   = "tmdb-search-page"
	tmdbImageURLFlag     = "tmdb-image-url"
)

const DefaultImageURL = "https://image.tmdb.org/t/p/"

var (
	ErrSearchUnavailable = errors.New("search unavailable")
	ErrMalformedResponse = errors.New("malformed search response")
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   tmdbApiHostFlag,
			Usage:  "tmdb api host",
			EnvVar: "TMDB_API_HOST",
			Value:  "api.themoviedb.org",
		},
		cli.IntFlag{
			Name:   tmdbApiPortFlag,
			Usage:  "tmdb api port",
			EnvVar: "TMDB_API_PORT",
			Value:  443,
		},
		cli.BoolTFlag{
			Name:   tmdbApiSecureFlag,
			Usage:  "tmdb api secure (https)",
			EnvVar: "TMDB_API_SECURE",
		},
		cli.StringFlag{
			Name:   tmdbApiKeyFlag,
			Usage:  "tmdb api key",
			Value:  "",
			EnvVar: "TMDB_API_KEY,API_KEY",
		},
		cli.DurationFlag{
			Name:   tmdbApiTimeoutFlag,
			Usage:  "tmdb api request timeout",
			EnvVar: "TMDB_API_TIMEOUT",
			Value:  10 * time.Second,
		},
		cli.Float64Flag{
			Name:   tmdbApiRateLimitFlag,
			Usage:  "tmdb api requests per second",
			EnvVar: "TMDB_API_RATE_LIMIT",
			Value:  20,
		},
		cli.IntFlag{
			Name:   tmdbSearchPageFlag,
			Usage:  "tmdb search results page",
			EnvVar: "TMDB_SEARCH_PAGE",
			Value:  10,
		},
		cli.StringFlag{
			Name:   tmdbImageURLFlag,
			Usage:  "tmdb poster url prefix",
			EnvVar: "TMDB_IMAGE_URL",
			Value:  DefaultImageURL,
		},
	)
}

// Movie is a single TMDB movie record. Raw keeps the whole object as it
// was received.
type Movie struct {
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	ReleaseDate string         `json:"release_date"`
	Overview    string         `json:"overview"`
	PosterPath  string         `json:"poster_path"`
	Raw         map[string]any `json:"-"`
}

func ParseMovie(data []byte) (*Movie, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	if raw == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "movie is not an object")
	}
	m := &Movie{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	m.Raw = raw
	return m, nil
}

func (s *Movie) MarshalRaw() ([]byte, error) {
	if s.Raw != nil {
		return json.Marshal(s.Raw)
	}
	return json.Marshal(s)
}

type Api struct {
	url            string
	cl             *http.Client
	timeout        time.Duration
	page           int
	imageURL       string
	limiter        *rate.Limiter
	prepareRequest func(r *http.Request) (*http.Request, error)
}

func New(c *cli.Context, cl *http.Client) *Api {
	host := c.String(tmdbApiHostFlag)
	port := c.Int(tmdbApiPortFlag)
	secure := c.BoolT(tmdbApiSecureFlag)
	key := c.String(tmdbApiKeyFlag)
	if key == "" {
		return nil
	}
	protocol := "http"
	if secure {
		protocol = "https"
	}
	u := fmt.Sprintf("%v://%v:%v", protocol, host, port)
	log.Infof("tmdb api endpoint %v", u)
	return NewWithURL(u, key, cl).
		WithTimeout(c.Duration(tmdbApiTimeoutFlag)).
		WithRateLimit(c.Float64(tmdbApiRateLimitFlag)).
		WithPage(c.Int(tmdbSearchPageFlag)).
		WithImageURL(c.String(tmdbImageURLFlag))
}

func NewWithURL(u string, key string, cl *http.Client) *Api {
	prepareRequest := func(r *http.Request) (*http.Request, error) {
		q := r.URL.Query()
		q.Set("api_key", key)
		r.URL.RawQuery = q.Encode()
		return r, nil
	}
	return &Api{
		url:            strings.TrimSuffix(u, "/"),
		cl:             cl,
		timeout:        10 * time.Second,
		page:           10,
		imageURL:       DefaultImageURL,
		prepareRequest: prepareRequest,
	}
}

func (api *Api) WithTimeout(d time.Duration) *Api {
	api.timeout = d
	return api
}

func (api *Api) WithRateLimit(rps float64) *Api {
	if rps > 0 {
		api.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	} else {
		api.limiter = nil
	}
	return api
}

func (api *Api) WithPage(page int) *Api {
	api.page = page
	return api
}

func (api *Api) WithImageURL(u string) *Api {
	api.imageURL = u
	return api
}

func (api *Api) ImageURL() string {
	return api.imageURL
}

// Search returns the results of a single search page, no pagination.
func (api *Api) Search(ctx context.Context, title string) ([]*Movie, error) {
	q := map[string]string{
		"query": strings.TrimSpace(title),
	}
	if api.page > 0 {
		q["page"] = strconv.Itoa(api.page)
	}
	data, status, err := api.get(ctx, "/3/search/movie", q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrSearchUnavailable, "unexpected status code %v", status)
	}

	var resp struct {
		Results *[]json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	if resp.Results == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "no results field")
	}
	movies := make([]*Movie, 0, len(*resp.Results))
	for _, r := range *resp.Results {
		m, err := ParseMovie(r)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, nil
}

// GetMovie returns nil if TMDB has no movie with such id.
func (api *Api) GetMovie(ctx context.Context, id int) (*Movie, error) {
	data, status, err := api.get(ctx, fmt.Sprintf("/3/movie/%v", id), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrSearchUnavailable, "unexpected status code %v", status)
	}
	return ParseMovie(data)
}

func (api *Api) get(ctx context.Context, path string, query map[string]string) ([]byte, int, error) {
	if api.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, api.timeout)
		defer cancel()
	}
	if api.limiter != nil {
		if err := api.limiter.Wait(ctx); err != nil {
			return nil, 0, errors.Wrap(ErrSearchUnavailable, err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", api.url+path, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "create request")
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	req, err = api.prepareRequest(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "prepare request")
	}

	resp, err := api.cl.Do(req)
	if err != nil {
		// url.Error carries the query with the api key
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, 0, errors.Wrapf(ErrSearchUnavailable, "request failed: %v", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrSearchUnavailable, "read body: %v", err)
	}
	return data, resp.StatusCode, nil
}
