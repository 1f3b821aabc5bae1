package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
)

// Compression gzips responses for clients that accept it. Responses that
// already carry a Content-Encoding pass through untouched.
func Compression() (gin.HandlerFunc, error) {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(gzhttp.DefaultMinSize))
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		orig := c.Writer
		defer func() { c.Writer = orig }()
		wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			cw := &compressWriter{ResponseWriter: orig, w: w, status: orig.Status(), size: -1}
			c.Writer = cw
			c.Next()
			cw.finish()
		})).ServeHTTP(orig, c.Request)
	}, nil
}

// compressWriter keeps gin's deferred status semantics on top of the gzip
// writer: the status is recorded on WriteHeader and sent with the first
// write, or when the stage finishes.
type compressWriter struct {
	gin.ResponseWriter
	w       http.ResponseWriter
	status  int
	size    int
	written bool
}

func (w *compressWriter) Header() http.Header {
	return w.w.Header()
}

func (w *compressWriter) WriteHeader(code int) {
	if code > 0 && !w.written {
		w.status = code
	}
}

func (w *compressWriter) WriteHeaderNow() {
	if w.written {
		return
	}
	w.written = true
	w.size = 0
	w.w.WriteHeader(w.status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	w.WriteHeaderNow()
	n, err := w.w.Write(b)
	w.size += n
	return n, err
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *compressWriter) Status() int {
	return w.status
}

func (w *compressWriter) Size() int {
	return w.size
}

func (w *compressWriter) Written() bool {
	return w.written
}

func (w *compressWriter) Flush() {
	w.WriteHeaderNow()
	if f, ok := w.w.(http.Flusher); ok {
		f.Flush()
	}
}

// finish hands a status that was set but never written to the gzip writer
// so it reaches the client when the wrapper closes.
func (w *compressWriter) finish() {
	if !w.written && w.status != w.ResponseWriter.Status() {
		w.written = true
		w.w.WriteHeader(w.status)
	}
}
