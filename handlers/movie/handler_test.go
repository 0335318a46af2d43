package movie

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/webtor-io/movie-top/models"
	ms "github.com/webtor-io/movie-top/services/movie"
	"github.com/webtor-io/movie-top/services/template"
	"github.com/webtor-io/movie-top/services/tmdb"
	"github.com/webtor-io/movie-top/services/web"
)

// --- Mock implementations ---

type mockStore struct {
	movies     []*models.Movie
	setErr     error
	rankWrites int
}

func (m *mockStore) find(id int) (int, *models.Movie) {
	for i, mv := range m.movies {
		if mv.MovieID == id {
			return i, mv
		}
	}
	return -1, nil
}

func (m *mockStore) Create(_ context.Context, mv *models.Movie) error {
	if _, ex := m.find(mv.MovieID); ex != nil {
		return ms.ErrDuplicateID
	}
	m.movies = append(m.movies, mv)
	return nil
}

func (m *mockStore) Get(_ context.Context, id int) (*models.Movie, error) {
	_, mv := m.find(id)
	if mv == nil {
		return nil, ms.ErrNotFound
	}
	return mv, nil
}

func (m *mockStore) Update(_ context.Context, id int, u *models.MovieUpdate) error {
	_, mv := m.find(id)
	if mv == nil {
		return ms.ErrNotFound
	}
	if u.Rating != nil {
		mv.Rating = u.Rating
	}
	if u.Review != nil {
		mv.Review = u.Review
	}
	return nil
}

func (m *mockStore) Delete(_ context.Context, id int) error {
	i, mv := m.find(id)
	if mv == nil {
		return ms.ErrNotFound
	}
	m.movies = append(m.movies[:i], m.movies[i+1:]...)
	return nil
}

func (m *mockStore) ListByRatingDesc(_ context.Context) ([]*models.Movie, error) {
	res := make([]*models.Movie, len(m.movies))
	copy(res, m.movies)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].GetRating() > res[j].GetRating()
	})
	return res, nil
}

func (m *mockStore) SetRanking(_ context.Context, id int, ranking int) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.rankWrites++
	_, mv := m.find(id)
	if mv == nil {
		return ms.ErrNotFound
	}
	mv.Ranking = ranking
	return nil
}

type mockSearcher struct {
	movies []*tmdb.Movie
	err    error
	query  string
}

func (m *mockSearcher) Search(_ context.Context, title string) ([]*tmdb.Movie, error) {
	m.query = title
	return m.movies, m.err
}

type mockCandidates struct {
	movies  map[int]*tmdb.Movie
	err     error
	putErr  error
	lastRef string
}

func (m *mockCandidates) Put(_ context.Context, _ []*tmdb.Movie) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	return "REF", nil
}

func (m *mockCandidates) Resolve(_ context.Context, ref string, id int) (*tmdb.Movie, error) {
	m.lastRef = ref
	if m.err != nil {
		return nil, m.err
	}
	return m.movies[id], nil
}

// --- Test helpers ---

var testTemplates = map[string]string{
	"layouts/main.html":        `{{ template "content" . }}`,
	"views/movies/index.html":  `{{ define "content" }}{{ range .Data.Movies }}{{ .Ranking }}:{{ .MovieID }};{{ end }}{{ end }}`,
	"views/movies/add.html":    `{{ define "content" }}add{{ if .Data.Unavailable }} unavailable{{ end }}{{ range $k, $v := .Data.Errors }} {{ $k }}={{ $v }}{{ end }}{{ end }}`,
	"views/movies/select.html": `{{ define "content" }}ref={{ .Data.Ref }}{{ range .Data.Candidates }}|{{ .ID }},{{ .Title }},{{ .ReleaseDate }},{{ .Overview }},{{ .PosterPath }}{{ end }}{{ end }}`,
	"views/movies/edit.html":   `{{ define "content" }}edit {{ .Data.Movie.MovieID }}{{ range $k, $v := .Data.Errors }} {{ $k }}={{ $v }}{{ end }}{{ end }}`,
	"views/movies/error.html":  `{{ define "content" }}error {{ .Data.Status }} {{ .Data.Message }}{{ end }}`,
}

func setupTemplateDir(t *testing.T, templates map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range templates {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestRouter(t *testing.T, st *mockStore, search Searcher, cands Candidates) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	re := multitemplate.NewRenderer()
	tm := template.NewManager[*web.Context](re).WithDir(setupTemplateDir(t, testTemplates))
	h := newHandler(tm, ms.New(st, ""), search, cands)
	if err := tm.Init(); err != nil {
		t.Fatal(err)
	}
	r := gin.New()
	r.HTMLRender = re
	h.register(r, makeCORSConfig(nil))
	return r
}

func do(r *gin.Engine, method string, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func rated(id int, r float64) *models.Movie {
	return &models.Movie{MovieID: id, Title: "m", Rating: &r}
}

func withReview(m *models.Movie, review string) *models.Movie {
	m.Review = &review
	return m
}

func candidate(t *testing.T, s string) *tmdb.Movie {
	t.Helper()
	m, err := tmdb.ParseMovie([]byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// --- Tests for index ---

func TestIndex_RanksMovies(t *testing.T) {
	st := &mockStore{movies: []*models.Movie{rated(1, 5), rated(2, 9), rated(3, 7)}}
	r := newTestRouter(t, st, nil, &mockCandidates{})

	w := do(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "1:2;2:3;3:1;" {
		t.Errorf("unexpected body %q", got)
	}
	for id, want := range map[int]int{2: 1, 3: 2, 1: 3} {
		_, m := st.find(id)
		if m.Ranking != want {
			t.Errorf("movie %d: expected stored ranking %d, got %d", id, want, m.Ranking)
		}
	}
}

func TestIndex_RankingFailure(t *testing.T) {
	st := &mockStore{movies: []*models.Movie{rated(1, 5)}, setErr: errors.New("db down")}
	r := newTestRouter(t, st, nil, &mockCandidates{})

	w := do(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

// --- Tests for add ---

func TestAdd_Form(t *testing.T) {
	r := newTestRouter(t, &mockStore{}, nil, &mockCandidates{})
	w := do(r, http.MethodGet, "/add-movie", nil)
	if w.Code != http.StatusOK || w.Body.String() != "add" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
}

func TestAdd_EmptyTitle(t *testing.T) {
	s := &mockSearcher{}
	r := newTestRouter(t, &mockStore{}, s, &mockCandidates{})
	for _, title := range []string{"", "   "} {
		w := do(r, http.MethodPost, "/add-movie", url.Values{"movie_title": {title}})
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "movie_title=is required") {
			t.Errorf("expected field error, got %q", w.Body.String())
		}
	}
	if s.query != "" {
		t.Error("search must not be called")
	}
}

func TestAdd_RendersCandidates(t *testing.T) {
	s := &mockSearcher{movies: []*tmdb.Movie{
		candidate(t, `{"id":42,"title":"X","release_date":"2020-05-01","overview":"d","poster_path":"/p.jpg"}`),
		candidate(t, `{"id":43,"title":"Y","release_date":"","overview":"","poster_path":null}`),
	}}
	r := newTestRouter(t, &mockStore{}, s, &mockCandidates{})

	w := do(r, http.MethodPost, "/add-movie", url.Values{"movie_title": {"Inception"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if s.query != "Inception" {
		t.Errorf("unexpected query %q", s.query)
	}
	want := "ref=REF|42,X,2020-05-01,d,/p.jpg|43,Y,,,"
	if got := w.Body.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAdd_CandidateCacheFailure(t *testing.T) {
	s := &mockSearcher{movies: []*tmdb.Movie{candidate(t, `{"id":42,"title":"X"}`)}}
	r := newTestRouter(t, &mockStore{}, s, &mockCandidates{putErr: errors.New("redis down")})

	w := do(r, http.MethodPost, "/add-movie", url.Values{"movie_title": {"X"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "ref=|42,X,,," {
		t.Errorf("unexpected body %q", got)
	}
}

func TestAdd_SearchUnavailable(t *testing.T) {
	cases := map[string]Searcher{
		"unavailable": &mockSearcher{err: errors.Wrap(tmdb.ErrSearchUnavailable, "timeout")},
		"malformed":   &mockSearcher{err: errors.Wrap(tmdb.ErrMalformedResponse, "no results field")},
		"no api":      nil,
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			r := newTestRouter(t, &mockStore{}, s, &mockCandidates{})
			w := do(r, http.MethodPost, "/add-movie", url.Values{"movie_title": {"Inception"}})
			if w.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", w.Code)
			}
			if w.Body.String() != "add unavailable" {
				t.Errorf("unexpected body %q", w.Body.String())
			}
		})
	}
}

// --- Tests for create ---

func TestCreate_FromCandidate(t *testing.T) {
	st := &mockStore{}
	cands := &mockCandidates{movies: map[int]*tmdb.Movie{
		42: candidate(t, `{"id":42,"title":"X","release_date":"2020-05-01","overview":"d","poster_path":"/p.jpg"}`),
	}}
	r := newTestRouter(t, st, nil, cands)

	w := do(r, http.MethodGet, "/create_movie_list?ref=abc&movie_id=42", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "edit 42" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
	if cands.lastRef != "abc" {
		t.Errorf("expected ref to be passed, got %q", cands.lastRef)
	}
	_, m := st.find(42)
	if m == nil {
		t.Fatal("expected movie to be stored")
	}
	if m.Rating != nil || m.Review != nil || m.Ranking != 0 {
		t.Errorf("new movie must be unrated, got %+v", m)
	}
	if m.GetIntYear() != 2020 || m.ImgURL != "https://image.tmdb.org/t/p//p.jpg" || m.Description != "d" {
		t.Errorf("unexpected movie %+v", m)
	}
}

func TestCreate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		cands  *mockCandidates
		code   int
	}{
		{"bad id", "/create_movie_list?movie_id=abc", &mockCandidates{}, http.StatusBadRequest},
		{"no id", "/create_movie_list", &mockCandidates{}, http.StatusBadRequest},
		{"unknown candidate", "/create_movie_list?movie_id=7", &mockCandidates{}, http.StatusNotFound},
		{"duplicate", "/create_movie_list?movie_id=1", &mockCandidates{movies: map[int]*tmdb.Movie{1: {ID: 1, Title: "A"}}}, http.StatusConflict},
		{"search unavailable", "/create_movie_list?movie_id=7", &mockCandidates{err: tmdb.ErrSearchUnavailable}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := &mockStore{movies: []*models.Movie{rated(1, 5)}}
			r := newTestRouter(t, st, nil, tc.cands)
			w := do(r, http.MethodGet, tc.target, nil)
			if w.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, w.Code)
			}
			if len(st.movies) != 1 {
				t.Errorf("store must not change, got %d movies", len(st.movies))
			}
		})
	}
}

// --- Tests for edit ---

func TestEdit_Form(t *testing.T) {
	st := &mockStore{movies: []*models.Movie{rated(1, 5)}}
	r := newTestRouter(t, st, nil, &mockCandidates{})

	w := do(r, http.MethodGet, "/edit_rating/?id=1", nil)
	if w.Code != http.StatusOK || w.Body.String() != "edit 1" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
	for _, target := range []string{"/edit_rating/?id=2", "/edit_rating/?id=x", "/edit_rating/"} {
		w = do(r, http.MethodGet, target, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%v: expected 404, got %d", target, w.Code)
		}
	}
}

func TestEdit_EmptyReviewKeepsPrevious(t *testing.T) {
	m := withReview(rated(1, 5), "great")
	st := &mockStore{movies: []*models.Movie{m}}
	r := newTestRouter(t, st, nil, &mockCandidates{})

	w := do(r, http.MethodPost, "/edit_rating/?id=1", url.Values{"rating": {"7.5"}, "review": {""}})
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("expected redirect to /, got %q", loc)
	}
	if m.GetRating() != 7.5 || m.GetReview() != "great" {
		t.Errorf("unexpected movie %+v", m)
	}
}

func TestEdit_SetsReview(t *testing.T) {
	m := &models.Movie{MovieID: 1, Title: "m"}
	st := &mockStore{movies: []*models.Movie{m}}
	r := newTestRouter(t, st, nil, &mockCandidates{})

	w := do(r, http.MethodPost, "/edit_rating/?id=1", url.Values{"rating": {"9"}, "review": {"loved it"}})
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if m.GetRating() != 9 || m.GetReview() != "loved it" {
		t.Errorf("unexpected movie %+v", m)
	}
}

func TestEdit_InvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		form  url.Values
		error string
	}{
		{"too high", url.Values{"rating": {"11"}}, "rating=must be at most 10"},
		{"too low", url.Values{"rating": {"0.5"}}, "rating=must be at least 1"},
		{"missing", url.Values{"review": {"x"}}, "rating=is required"},
		{"not a number", url.Values{"rating": {"abc"}}, "rating=must be a number"},
		{"long review", url.Values{"rating": {"5"}, "review": {strings.Repeat("x", 251)}}, "review=must be at most 250 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := withReview(rated(1, 5), "great")
			st := &mockStore{movies: []*models.Movie{m}}
			r := newTestRouter(t, st, nil, &mockCandidates{})

			w := do(r, http.MethodPost, "/edit_rating/?id=1", tc.form)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tc.error) {
				t.Errorf("expected %q in %q", tc.error, w.Body.String())
			}
			if m.GetRating() != 5 || m.GetReview() != "great" {
				t.Errorf("movie must not change, got %+v", m)
			}
		})
	}
}

// --- Tests for delete ---

func TestDelete(t *testing.T) {
	st := &mockStore{movies: []*models.Movie{rated(1, 5), rated(2, 6)}}
	r := newTestRouter(t, st, nil, &mockCandidates{})

	w := do(r, http.MethodGet, "/delete?id=3", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if len(st.movies) != 2 {
		t.Fatal("store must not change")
	}

	w = do(r, http.MethodGet, "/delete?id=1", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if len(st.movies) != 1 || st.movies[0].MovieID != 2 {
		t.Fatalf("unexpected store state %+v", st.movies)
	}

	w = do(r, http.MethodPost, "/delete?id=2", url.Values{})
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if len(st.movies) != 0 {
		t.Fatal("expected empty store")
	}
}

// --- Tests for json api ---

func TestList_DerivesRank(t *testing.T) {
	st := &mockStore{movies: []*models.Movie{rated(1, 5), rated(2, 9)}}
	r := newTestRouter(t, st, nil, &mockCandidates{})

	req := httptest.NewRequest(http.MethodGet, "/api/movies", nil)
	req.Header.Set("Origin", "http://other.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected cors header, got %v", w.Header())
	}
	var res ListJSON
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Movies) != 2 || res.Movies[0].ID != 2 || res.Movies[0].Rank != 1 || res.Movies[1].Rank != 2 {
		t.Errorf("unexpected response %s", w.Body.String())
	}
	if st.rankWrites != 0 {
		t.Errorf("listing must not store rankings, got %d writes", st.rankWrites)
	}
}
