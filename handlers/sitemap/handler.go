package sitemap

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli"
	"github.com/webtor-io/movie-top/models"
	svc "github.com/webtor-io/movie-top/services/common"
	"github.com/webtor-io/movie-top/services/web"
)

const dateFormat = "2006-01-02"

type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

type lister interface {
	List(ctx context.Context) ([]*models.Movie, error)
}

type Handler struct {
	baseURL string
	movies  lister
	now     func() time.Time
}

func RegisterHandler(c *cli.Context, r *gin.Engine, movies lister) {
	h := &Handler{
		baseURL: c.String(svc.DomainFlag),
		movies:  movies,
		now:     time.Now,
	}
	h.register(r)
}

func (h *Handler) register(r *gin.Engine) {
	r.GET("/sitemap.xml", h.sitemap)
}

// lastModified returns the newest update time of the list, or the current time when it is empty.
func (h *Handler) lastModified(ms []*models.Movie) time.Time {
	var t time.Time
	for _, m := range ms {
		if m.UpdatedAt.After(t) {
			t = m.UpdatedAt
		}
	}
	if t.IsZero() {
		t = h.now()
	}
	return t
}

func (h *Handler) sitemap(c *gin.Context) {
	ms, err := h.movies.List(c.Request.Context())
	if err != nil {
		web.Logger(c).WithError(err).Error("failed to list movies for sitemap")
		c.Status(http.StatusInternalServerError)
		return
	}

	urlSet := URLSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []URL{
			{
				Loc:        h.baseURL + "/",
				LastMod:    h.lastModified(ms).Format(dateFormat),
				ChangeFreq: "daily",
				Priority:   "1.0",
			},
			{
				Loc:        h.baseURL + "/add-movie",
				LastMod:    h.now().Format(dateFormat),
				ChangeFreq: "monthly",
				Priority:   "0.5",
			},
		},
	}

	c.Header("Content-Type", "application/xml")
	c.XML(http.StatusOK, urlSet)
}
