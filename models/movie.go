package models

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

const (
	MovieTitleMaxLength       = 100
	MovieDescriptionMaxLength = 250
	MovieReviewMaxLength      = 250
	MovieRatingMin            = 1.0
	MovieRatingMax            = 10.0
)

type Movie struct {
	tableName struct{} `pg:"movie"`

	MovieID     int       `pg:"movie_id,pk"`
	Title       string    `pg:"title,notnull"`
	Year        *int16    `pg:"year"`
	Description string    `pg:"description,use_zero"`
	Rating      *float64  `pg:"rating"`
	Ranking     int       `pg:"ranking,use_zero"`
	Review      *string   `pg:"review"`
	ImgURL      string    `pg:"img_url,use_zero"`
	CreatedAt   time.Time `pg:"created_at,default:now()"`
	UpdatedAt   time.Time `pg:"updated_at,default:now()"`
}

// MovieUpdate is a partial update, nil fields are left untouched.
type MovieUpdate struct {
	Rating *float64
	Review *string
}

func (s *Movie) IsRated() bool {
	return s.Rating != nil
}

func (s *Movie) GetIntYear() int {
	if s.Year == nil {
		return 0
	}
	return int(*s.Year)
}

func (s *Movie) GetRating() float64 {
	if s.Rating == nil {
		return 0
	}
	return *s.Rating
}

func (s *Movie) GetReview() string {
	if s.Review == nil {
		return ""
	}
	return *s.Review
}

func IsValidRating(r float64) bool {
	return r >= MovieRatingMin && r <= MovieRatingMax
}

// YearFromReleaseDate takes the leading segment of a YYYY-MM-DD date.
func YearFromReleaseDate(date string) *int16 {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil
	}
	y := strings.Split(date, "-")[0]
	if len(y) != 4 {
		return nil
	}
	var v int16
	for _, r := range y {
		if r < '0' || r > '9' {
			return nil
		}
		v = v*10 + int16(r-'0')
	}
	return &v
}

func PosterURL(prefix string, posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return prefix + posterPath
}

// TruncateString cuts s to at most n runes after NFC normalization.
func TruncateString(s string, n int) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// CreateMovie returns false if a movie with the same id already exists.
func CreateMovie(ctx context.Context, db *pg.DB, m *Movie) (bool, error) {
	res, err := db.Model(m).
		Context(ctx).
		OnConflict("(movie_id) DO NOTHING").
		Insert()
	if errors.Is(err, pg.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "failed to insert movie")
	}
	return res.RowsAffected() > 0, nil
}

func GetMovieByID(ctx context.Context, db *pg.DB, id int) (*Movie, error) {
	m := &Movie{}
	err := db.Model(m).
		Context(ctx).
		Where("movie_id = ?", id).
		Select()
	if errors.Is(err, pg.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMoviesByRating lists movies with rated ones first, highest rating
// first. Ties keep insertion order.
func GetMoviesByRating(ctx context.Context, db *pg.DB) ([]*Movie, error) {
	var movies []*Movie
	err := db.Model(&movies).
		Context(ctx).
		OrderExpr("rating DESC NULLS LAST").
		Order("created_at ASC", "movie_id ASC").
		Select()
	if err != nil {
		return nil, err
	}
	return movies, nil
}

func UpdateMovie(ctx context.Context, db *pg.DB, id int, u *MovieUpdate) (bool, error) {
	q := db.Model((*Movie)(nil)).
		Context(ctx).
		Set("updated_at = now()").
		Where("movie_id = ?", id)
	if u.Rating != nil {
		q = q.Set("rating = ?", *u.Rating)
	}
	if u.Review != nil {
		q = q.Set("review = ?", *u.Review)
	}
	res, err := q.Update()
	if err != nil {
		return false, errors.Wrap(err, "failed to update movie")
	}
	return res.RowsAffected() > 0, nil
}

func SetMovieRanking(ctx context.Context, db *pg.DB, id int, ranking int) (bool, error) {
	res, err := db.Model((*Movie)(nil)).
		Context(ctx).
		Set("ranking = ?", ranking).
		Where("movie_id = ?", id).
		Update()
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func DeleteMovie(ctx context.Context, db *pg.DB, id int) (bool, error) {
	res, err := db.Model((*Movie)(nil)).
		Context(ctx).
		Where("movie_id = ?", id).
		Delete()
	if err != nil {
		return false, errors.Wrap(err, "failed to delete movie")
	}
	return res.RowsAffected() > 0, nil
}
