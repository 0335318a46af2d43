package template

import (
	"html/template"
	"net/http"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/yargevad/filepathx"
)

type Context interface {
	GetGinContext() *gin.Context
}

type view struct {
	name   string
	path   string
	layout string
}

type Manager[T Context] struct {
	re    multitemplate.Renderer
	dir   string
	funcs template.FuncMap
	views map[string]*view
	mux   sync.Mutex
}

func NewManager[T Context](re multitemplate.Renderer) *Manager[T] {
	return &Manager[T]{
		re:    re,
		dir:   "templates",
		funcs: template.FuncMap{},
		views: map[string]*view{},
	}
}

func (s *Manager[T]) WithDir(dir string) *Manager[T] {
	s.dir = dir
	return s
}

// WithHelper exposes every exported method of h as a template function.
func (s *Manager[T]) WithHelper(h any) *Manager[T] {
	v := reflect.ValueOf(h)
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		s.funcs[t.Method(i).Name] = v.Method(i).Interface()
	}
	return s
}

func (s *Manager[T]) WithFuncs(fm template.FuncMap) *Manager[T] {
	for k, v := range fm {
		s.funcs[k] = v
	}
	return s
}

func (s *Manager[T]) viewsDir() string {
	return filepath.Join(s.dir, "views")
}

func (s *Manager[T]) RegisterViews(pattern string) (Builder[T], error) {
	files, err := filepathx.Glob(filepath.Join(s.viewsDir(), pattern+".html"))
	if err != nil {
		return Builder[T]{}, errors.Wrapf(err, "failed to glob views %v", pattern)
	}
	if len(files) == 0 {
		return Builder[T]{}, errors.Errorf("no views found for %v", pattern)
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	var names []string
	for _, f := range files {
		rel, err := filepath.Rel(s.viewsDir(), f)
		if err != nil {
			return Builder[T]{}, err
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), ".html")
		s.views[name] = &view{
			name: name,
			path: f,
		}
		names = append(names, name)
	}
	return Builder[T]{m: s, names: names}, nil
}

func (s *Manager[T]) MustRegisterViews(pattern string) Builder[T] {
	b, err := s.RegisterViews(pattern)
	if err != nil {
		panic(err)
	}
	return b
}

func (s *Manager[T]) setLayout(names []string, layout string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, n := range names {
		s.views[n].layout = layout
	}
}

func (s *Manager[T]) has(name string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	_, ok := s.views[name]
	return ok
}

func (s *Manager[T]) partials() ([]string, error) {
	return filepathx.Glob(filepath.Join(s.dir, "partials", "**", "*.html"))
}

// Init parses every registered view and adds it to the renderer.
func (s *Manager[T]) Init() error {
	partials, err := s.partials()
	if err != nil {
		return errors.Wrap(err, "failed to glob partials")
	}
	sort.Strings(partials)
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, v := range s.views {
		var files []string
		if v.layout != "" {
			files = append(files, filepath.Join(s.dir, "layouts", v.layout+".html"))
		}
		files = append(files, v.path)
		files = append(files, partials...)
		t, err := template.New(filepath.Base(files[0])).Funcs(s.funcs).ParseFiles(files...)
		if err != nil {
			return errors.Wrapf(err, "failed to parse view %v", v.name)
		}
		s.re.Add(v.name, t)
		log.Debugf("view %v loaded", v.name)
	}
	return nil
}

type Builder[T Context] struct {
	m     *Manager[T]
	names []string
}

func (s Builder[T]) WithLayout(name string) Builder[T] {
	s.m.setLayout(s.names, name)
	return s
}

func (s Builder[T]) Build(name string) *Template[T] {
	return &Template[T]{
		m:    s.m,
		name: name,
	}
}

type Template[T Context] struct {
	m    *Manager[T]
	name string
}

func (s *Template[T]) HTML(code int, ctx T) {
	c := ctx.GetGinContext()
	if !s.m.has(s.name) {
		log.Errorf("view %v not registered", s.name)
		_ = c.AbortWithError(http.StatusInternalServerError, errors.Errorf("view %v not registered", s.name))
		return
	}
	c.HTML(code, s.name, ctx)
}
