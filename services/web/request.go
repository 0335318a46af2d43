package web

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	requestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// RequestID tags every request with an id, reusing the incoming one when
// it is a valid uuid.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func Logger(c *gin.Context) *log.Entry {
	e := log.WithFields(log.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	})
	if id := c.GetString(requestIDKey); id != "" {
		e = e.WithField("request_id", id)
	}
	return e
}
