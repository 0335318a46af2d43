package web

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	"github.com/webtor-io/movie-top/services/common"
)

type Helper struct {
	domain string
}

func NewHelper(c *cli.Context) *Helper {
	return &Helper{
		domain: c.String(common.DomainFlag),
	}
}

func (s *Helper) Domain() string {
	return s.domain
}

func (s *Helper) Ordinal(i int) string {
	if i <= 0 {
		return ""
	}
	return humanize.Ordinal(i)
}

func (s *Helper) Ago(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}
