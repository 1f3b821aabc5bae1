package httpx

import (
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/gin-gonic/gin"
)

const staticMaxAge = "public, max-age=31536000"

// precompressed lists the encodings looked up next to a static file, in
// order of preference when the client weighs them equally.
var precompressed = []struct {
	encoding  string
	extension string
}{
	{"br", ".br"},
	{"gzip", ".gz"},
}

// Static serves files under root for requests below prefix. A .br or .gz
// sibling is served instead of the file when the client accepts that
// encoding. Requests that match no file pass through.
func Static(prefix, root string) gin.HandlerFunc {
	prefix = strings.TrimSuffix(prefix, "/")
	dir := http.Dir(root)
	files := fileserver.HandlerWithOptions(prefix, root, fileserver.Options{CacheControl: staticMaxAge})

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Next()
			return
		}

		p := c.Request.URL.Path
		if p != prefix && !strings.HasPrefix(p, prefix+"/") {
			c.Next()
			return
		}
		name := path.Clean("/" + strings.TrimPrefix(p, prefix))
		if hasDotSegment(name) {
			c.Next()
			return
		}
		file, ok := lookupFile(dir, name)
		if !ok {
			c.Next()
			return
		}

		// The file server prefers br whenever it is listed, so it only
		// sees the coding chosen here by q-value. Directory indexes are
		// served as they are.
		encoding, vary := "", false
		if file == name {
			encoding, vary = negotiateEncoding(dir, file, c.GetHeader("Accept-Encoding"))
		}
		req := c.Request.Clone(c.Request.Context())
		if encoding == "" {
			req.Header.Del("Accept-Encoding")
		} else {
			req.Header.Set("Accept-Encoding", encoding)
		}
		if vary {
			c.Writer.Header().Add("Vary", "Accept-Encoding")
		}

		files.ServeHTTP(c.Writer, req)
		c.Abort()
	}
}

// lookupFile resolves name to a regular file, using index.html for
// directories.
func lookupFile(dir http.Dir, name string) (string, bool) {
	info, ok := statFile(dir, name)
	if !ok {
		return "", false
	}
	if info.IsDir() {
		name = path.Join(name, "index.html")
		if info, ok = statFile(dir, name); !ok || info.IsDir() {
			return "", false
		}
	}
	return name, true
}

func statFile(dir http.Dir, name string) (fs.FileInfo, bool) {
	f, err := dir.Open(name)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, false
	}
	return info, true
}

// negotiateEncoding picks the pre-compressed variant with the highest
// client q-value. vary reports whether any variant exists.
func negotiateEncoding(dir http.Dir, name, acceptEncoding string) (string, bool) {
	accepted := parseAcceptEncoding(acceptEncoding)
	encoding, vary := "", false
	best := 0.0
	for _, pc := range precompressed {
		info, ok := statFile(dir, name+pc.extension)
		if !ok || info.IsDir() {
			continue
		}
		vary = true
		q, ok := accepted[pc.encoding]
		if !ok {
			q = accepted["*"]
		}
		if q > best {
			encoding, best = pc.encoding, q
		}
	}
	return encoding, vary
}

func parseAcceptEncoding(header string) map[string]float64 {
	accepted := map[string]float64{}
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		coding := strings.ToLower(strings.TrimSpace(fields[0]))
		if coding == "" {
			continue
		}
		q := 1.0
		for _, param := range fields[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				parsed = 0
			}
			q = parsed
		}
		accepted[coding] = q
	}
	return accepted
}

func hasDotSegment(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
