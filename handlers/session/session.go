package session

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	csrf "github.com/utrack/gin-csrf"
	"github.com/webtor-io/movie-top/services/common"
	"github.com/webtor-io/movie-top/services/web"
)

const (
	sessionNameFlag   = "session-name"
	sessionSecureFlag = "session-secure"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   sessionNameFlag,
			Usage:  "session cookie name",
			Value:  "session",
			EnvVar: "SESSION_NAME",
		},
		cli.BoolFlag{
			Name:   sessionSecureFlag,
			Usage:  "send session cookie over https only",
			EnvVar: "SESSION_SECURE",
		},
	)
}

// RegisterHandler enables sessions and CSRF protection for every path
// except those starting with one of skip.
func RegisterHandler(c *cli.Context, r *gin.Engine, skip []string) error {
	secret := c.String(common.SessionSecretFlag)
	if secret == "" {
		return errors.New("empty session secret")
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		Secure:   c.Bool(sessionSecureFlag),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	hs := []gin.HandlerFunc{
		sessions.Sessions(c.String(sessionNameFlag), store),
		csrf.Middleware(csrf.Options{
			Secret: secret,
			ErrorFunc: func(c *gin.Context) {
				log.WithField("path", c.Request.URL.Path).Warn("csrf token mismatch")
				c.String(http.StatusBadRequest, "CSRF token mismatch")
				c.Abort()
			},
		}),
		func(c *gin.Context) {
			c.Set(web.CSRFTokenKey, csrf.GetToken(c))
			c.Next()
		},
	}
	for _, h := range hs {
		r.Use(skipPaths(skip, h))
	}
	return nil
}

func skipPaths(skip []string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range skip {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}
		h(c)
	}
}
