package httpx

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	faviconPath   = "/favicon.ico"
	faviconAllow  = "GET, HEAD, OPTIONS"
	faviconMaxAge = "public, max-age=31536000"
)

// Favicon serves the icon at path for /favicon.ico. The file is read once;
// a missing file is an error at construction.
func Favicon(path string) (gin.HandlerFunc, error) {
	icon, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read favicon: %w", err)
	}
	if len(icon) == 0 {
		return nil, fmt.Errorf("favicon %s is empty", path)
	}
	sum := sha1.Sum(icon)
	etag := fmt.Sprintf(`"%x-%s"`, len(icon), base64.RawStdEncoding.EncodeToString(sum[:]))

	return func(c *gin.Context) {
		if c.Request.URL.Path != faviconPath {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead:
		case http.MethodOptions:
			c.Header("Allow", faviconAllow)
			c.Header("Content-Length", "0")
			c.AbortWithStatus(http.StatusOK)
			return
		default:
			c.Header("Allow", faviconAllow)
			c.Header("Content-Length", "0")
			c.AbortWithStatus(http.StatusMethodNotAllowed)
			return
		}

		h := c.Writer.Header()
		h.Set("Cache-Control", faviconMaxAge)
		h.Set("ETag", etag)
		h.Set("Content-Type", "image/x-icon")
		http.ServeContent(c.Writer, c.Request, faviconPath, time.Time{}, bytes.NewReader(icon))
		c.Abort()
	}, nil
}
