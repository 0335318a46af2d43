package web

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	CSRFTokenKey = "csrf_token"
	flashKey     = "flash"
)

type Context struct {
	Data      any
	Err       error
	CSRF      string
	Flash     []string
	RequestID string

	c *gin.Context
}

func NewContext(c *gin.Context) *Context {
	return &Context{
		CSRF:      c.GetString(CSRFTokenKey),
		Flash:     popFlash(c),
		RequestID: c.GetString(requestIDKey),
		c:         c,
	}
}

func (s *Context) WithData(data any) *Context {
	s.Data = data
	return s
}

func (s *Context) WithErr(err error) *Context {
	s.Err = err
	return s
}

func (s *Context) GetGinContext() *gin.Context {
	return s.c
}

func session(c *gin.Context) sessions.Session {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil
	}
	return sessions.Default(c)
}

func popFlash(c *gin.Context) []string {
	sess := session(c)
	if sess == nil {
		return nil
	}
	fs := sess.Flashes(flashKey)
	if len(fs) == 0 {
		return nil
	}
	if err := sess.Save(); err != nil {
		Logger(c).WithError(err).Warn("failed to save session")
	}
	res := make([]string, 0, len(fs))
	for _, f := range fs {
		if s, ok := f.(string); ok {
			res = append(res, s)
		}
	}
	return res
}

// RedirectWithMessage keeps msg for the next rendered page and redirects.
func RedirectWithMessage(c *gin.Context, url string, msg string) {
	if sess := session(c); sess != nil {
		sess.AddFlash(msg, flashKey)
		if err := sess.Save(); err != nil {
			log.WithError(err).Warn("failed to save flash message")
		}
	}
	c.Redirect(http.StatusFound, url)
}
