package session

import "github.com/gin-gonic/gin"

// commitWriter runs commit once, right before the first byte or status
// reaches the wrapped writer, so Set-Cookie still lands in the headers.
type commitWriter struct {
	gin.ResponseWriter
	commit    func()
	committed bool
}

func (w *commitWriter) before() {
	if w.committed {
		return
	}
	w.committed = true
	w.commit()
}

func (w *commitWriter) WriteHeader(code int) {
	w.before()
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) WriteHeaderNow() {
	w.before()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *commitWriter) Write(b []byte) (int, error) {
	w.before()
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) WriteString(s string) (int, error) {
	w.before()
	return w.ResponseWriter.WriteString(s)
}

func (w *commitWriter) Flush() {
	w.before()
	w.ResponseWriter.Flush()
}
