package candidate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/webtor-io/lazymap"
	"github.com/webtor-io/movie-top/services/tmdb"
)

const (
	candidateTTLFlag = "candidate-ttl"
	keyPrefix        = "candidates:"
	fetchTimeout     = 10 * time.Second
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.DurationFlag{
			Name:   candidateTTLFlag,
			Usage:  "how long search results stay selectable",
			EnvVar: "CANDIDATE_TTL",
			Value:  30 * time.Minute,
		},
	)
}

type kv interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type Fetcher interface {
	GetMovie(ctx context.Context, id int) (*tmdb.Movie, error)
}

// Cache keeps search results on the server side so a selection carries
// only an opaque reference and a movie id.
type Cache struct {
	cl      kv
	fetcher Fetcher
	ttl     time.Duration
	timeout time.Duration
	fetched *lazymap.LazyMap[*tmdb.Movie]
}

func New(c *cli.Context, cl kv, f Fetcher) *Cache {
	return NewWithTTL(cl, f, c.Duration(candidateTTLFlag))
}

func NewWithTTL(cl kv, f Fetcher, ttl time.Duration) *Cache {
	return &Cache{
		cl:      cl,
		fetcher: f,
		ttl:     ttl,
		timeout: fetchTimeout,
		fetched: lazymap.New[*tmdb.Movie](&lazymap.Config{
			Expire: 10 * time.Minute,
		}),
	}
}

func (s *Cache) key(ref string) string {
	return keyPrefix + ref
}

// Put stores candidates and returns a reference to them.
func (s *Cache) Put(ctx context.Context, movies []*tmdb.Movie) (string, error) {
	data := make(map[string]json.RawMessage, len(movies))
	for _, m := range movies {
		b, err := m.MarshalRaw()
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal candidate")
		}
		data[strconv.Itoa(m.ID)] = b
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal candidates")
	}
	if s.cl == nil {
		return "", errors.New("no candidate storage")
	}
	ref := uuid.NewV4().String()
	err = s.cl.Set(ctx, s.key(ref), b, s.ttl).Err()
	if err != nil {
		return "", errors.Wrap(err, "failed to store candidates")
	}
	return ref, nil
}

func (s *Cache) get(ctx context.Context, ref string, id int) (*tmdb.Movie, error) {
	if s.cl == nil {
		return nil, nil
	}
	if _, err := uuid.FromString(ref); err != nil {
		return nil, nil
	}
	b, err := s.cl.Get(ctx, s.key(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal candidates")
	}
	raw, ok := data[strconv.Itoa(id)]
	if !ok {
		return nil, nil
	}
	return tmdb.ParseMovie(raw)
}

// Resolve finds the selected candidate. When the reference is unknown or
// expired the movie is fetched again by id. Returns nil if there is no
// such movie.
func (s *Cache) Resolve(ctx context.Context, ref string, id int) (*tmdb.Movie, error) {
	m, err := s.get(ctx, ref, id)
	if err != nil {
		log.WithError(err).WithField("ref", ref).Warn("failed to get cached candidate")
	}
	if m != nil {
		return m, nil
	}
	if s.fetcher == nil {
		return nil, errors.Wrap(tmdb.ErrSearchUnavailable, "no movie fetcher")
	}
	// shared by every caller waiting on the same id
	return s.fetched.Get(fmt.Sprintf("%v", id), func() (*tmdb.Movie, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.fetcher.GetMovie(fctx, id)
	})
}
