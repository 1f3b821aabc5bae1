// Package problem renders RFC 7807 problem details for request errors.
package problem

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valerit/react-kanban/internal/domain"
)

// Problem represents an RFC 7807 problem detail.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type,omitempty"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance identifies the specific occurrence, usually the request path.
	Instance string `json:"instance,omitempty"`
}

type Option func(*Problem)

func WithDetail(detail string) Option {
	return func(p *Problem) {
		p.Detail = detail
	}
}

func WithError(err error) Option {
	return func(p *Problem) {
		p.Detail = err.Error()
	}
}

func WithInstance(instance string) Option {
	return func(p *Problem) {
		p.Instance = instance
	}
}

func New(status int, opts ...Option) *Problem {
	p := &Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromError maps a domain error to its status. Unknown errors become a 500
// without leaking their message.
func FromError(err error, opts ...Option) *Problem {
	var p *Problem
	switch domain.KindOf(err) {
	case domain.KindInvalidRequest:
		p = New(http.StatusBadRequest, WithError(err))
	case domain.KindUnauthorized:
		p = New(http.StatusUnauthorized, WithError(err))
	case domain.KindNotFound:
		p = New(http.StatusNotFound, WithError(err))
	case domain.KindConflict:
		p = New(http.StatusConflict, WithError(err))
	default:
		p = New(http.StatusInternalServerError)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Abort records err on the context and ends the request with its problem.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	p := FromError(err, WithInstance(c.Request.URL.Path))
	c.AbortWithStatusJSON(p.Status, p)
}

// AbortWithStatus ends the request with a problem for status.
func AbortWithStatus(c *gin.Context, status int, opts ...Option) {
	p := New(status, append([]Option{WithInstance(c.Request.URL.Path)}, opts...)...)
	c.AbortWithStatusJSON(p.Status, p)
}
