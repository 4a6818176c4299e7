// Package handlers is the HTTP surface. Handlers bind and validate input,
// call a service and write the JSON envelope; they hold no booking logic.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/middleware"
	"github.com/chachabrian/haulbook-backend/internal/services"
	"github.com/chachabrian/haulbook-backend/internal/store"
)

type envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type pageData struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondPage(c *gin.Context, message string, items interface{}, total int64, p store.Page) {
	respondOK(c, http.StatusOK, message, pageData{Items: items, Total: total, Page: p.Page, Limit: p.Limit})
}

// respondError writes the envelope for err. Internal errors are attached to
// the gin context for the request logger and replaced by a generic message.
func respondError(c *gin.Context, err error) {
	e := apperr.From(err)
	message := e.Message
	if e.Kind == apperr.KindInternal {
		_ = c.Error(err)
		message = "internal server error"
	}
	c.JSON(e.Kind.HTTPStatus(), envelope{
		Success:   false,
		Message:   message,
		Error:     e.Code,
		Timestamp: time.Now().UTC(),
	})
}

// bindJSON decodes the body into v and reports a validation error on failure.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, bindingError(err))
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be absent. An
// empty body leaves v untouched, whatever the Content-Length says.
func bindOptionalJSON(c *gin.Context, v interface{}) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, bindingError(err))
		return false
	}
	return true
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation(fe.Field() + " failed on the '" + fe.Tag() + "' rule")
	}
	return apperr.Validation("invalid request body")
}

func caller(c *gin.Context) services.Caller {
	return services.Caller{UserID: middleware.UserID(c), Role: middleware.Role(c)}
}

func pageFromQuery(c *gin.Context) store.Page {
	return store.Page{
		Page:  cast.ToInt(c.Query("page")),
		Limit: cast.ToInt(c.Query("limit")),
	}.Normalize()
}
