// Package body parses JSON and URL-encoded request bodies ahead of the
// route handlers.
package body

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/valerit/react-kanban/internal/http/problem"
)

// DefaultLimit caps JSON and URL-encoded request bodies.
const DefaultLimit = 100 << 10

const (
	jsonKey = "body.json"
	formKey = "body.form"
)

var errBodyTooLarge = errors.New("request body too large")

// JSONFrom returns the body parsed by JSON.
func JSONFrom(c *gin.Context) (interface{}, bool) {
	return c.Get(jsonKey)
}

// FormFrom returns the body parsed by URLEncoded.
func FormFrom(c *gin.Context) (map[string]interface{}, bool) {
	v, ok := c.Get(formKey)
	if !ok {
		return nil, false
	}
	form, ok := v.(map[string]interface{})
	return form, ok
}

// JSON parses application/json bodies. Only objects and arrays are
// accepted at the top level. A malformed body ends the request with 400,
// an oversized one with 413.
func JSON(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.ContentType() != binding.MIMEJSON {
			c.Next()
			return
		}

		raw, ok := readBody(c, limit)
		if !ok {
			return
		}

		trimmed := bytes.TrimSpace(raw)
		var v interface{}
		switch {
		case len(trimmed) == 0:
			v = map[string]interface{}{}
		case trimmed[0] != '{' && trimmed[0] != '[':
			abortBody(c, http.StatusBadRequest, "JSON body must be an object or array")
			return
		default:
			if err := json.Unmarshal(trimmed, &v); err != nil {
				abortBody(c, http.StatusBadRequest, "malformed JSON body")
				return
			}
		}

		c.Set(jsonKey, v)
		c.Set(gin.BodyBytesKey, raw)
		c.Next()
	}
}

// URLEncoded parses application/x-www-form-urlencoded bodies with
// bracket nesting: a[b]=1 gives {"a": {"b": "1"}}, a[]=1 and repeated
// keys give arrays.
func URLEncoded(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.ContentType() != binding.MIMEPOSTForm {
			c.Next()
			return
		}

		raw, ok := readBody(c, limit)
		if !ok {
			return
		}

		form, err := parseForm(string(raw))
		if err != nil {
			abortBody(c, http.StatusBadRequest, err.Error())
			return
		}

		c.Set(formKey, form)
		c.Next()
	}
}

// readBody reads at most limit bytes and puts them back on the request so
// later binding still sees the body.
func readBody(c *gin.Context, limit int64) ([]byte, bool) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, true
	}
	if c.Request.ContentLength > limit {
		abortBody(c, http.StatusRequestEntityTooLarge, errBodyTooLarge.Error())
		return nil, false
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	_ = c.Request.Body.Close()
	if err != nil {
		abortBody(c, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if int64(len(raw)) > limit {
		abortBody(c, http.StatusRequestEntityTooLarge, errBodyTooLarge.Error())
		return nil, false
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, true
}

func abortBody(c *gin.Context, status int, detail string) {
	_ = c.Error(errors.New(detail)).SetType(gin.ErrorTypeBind)
	problem.AbortWithStatus(c, status, problem.WithDetail(detail))
}
