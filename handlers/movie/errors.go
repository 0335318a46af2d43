package movie

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/webtor-io/movie-top/services/web"
)

type ErrorData struct {
	Status  int
	Message string
}

func (s *Handler) renderError(c *gin.Context, code int, msg string, err error) {
	l := web.Logger(c).WithField("status", code)
	if err != nil {
		l = l.WithError(err)
	}
	if code >= 500 {
		l.Error(msg)
	} else {
		l.Info(msg)
	}
	s.tb.Build("movies/error").HTML(code, web.NewContext(c).WithData(&ErrorData{
		Status:  code,
		Message: msg,
	}).WithErr(err))
}

// formErrors maps binding errors to form field names. Errors that are not
// validation errors (like a number that does not parse) go to fallback.
func formErrors(err error, form any, fallback string) map[string]string {
	res := map[string]string{}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		res[fallback] = "must be a number"
		return res
	}
	t := reflect.TypeOf(form)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for _, fe := range ves {
		name := strings.ToLower(fe.Field())
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if tag := f.Tag.Get("form"); tag != "" {
				name = tag
			}
		}
		res[name] = fieldMessage(fe)
	}
	return res
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %v", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %v", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %v characters", fe.Param())
	}
	return "is invalid"
}
