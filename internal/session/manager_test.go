package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, store Store) (*gin.Engine, *Manager) {
	t.Helper()
	mgr := NewManager(store, Options{Secret: "test-secret", TTL: time.Hour}, zap.NewNop())

	r := gin.New()
	r.Use(mgr.Middleware())
	r.GET("/noop", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/silent", func(c *gin.Context) {})
	r.GET("/get", func(c *gin.Context) { c.String(http.StatusOK, From(c).GetString("n")) })
	r.POST("/set", func(c *gin.Context) {
		From(c).Set("n", c.Query("v"))
		c.String(http.StatusOK, "ok")
	})
	r.POST("/set-status", func(c *gin.Context) {
		From(c).Set("n", "status")
		c.Status(http.StatusNoContent)
	})
	r.POST("/set-unset", func(c *gin.Context) {
		s := From(c)
		s.Set("n", "tmp")
		s.Delete("n")
		c.String(http.StatusOK, "ok")
	})
	r.POST("/regenerate", func(c *gin.Context) {
		s := From(c)
		s.Regenerate()
		s.Set("n", "fresh")
		c.String(http.StatusOK, "ok")
	})
	r.POST("/destroy", func(c *gin.Context) {
		From(c).Destroy()
		c.String(http.StatusOK, "ok")
	})
	return r, mgr
}

func do(r http.Handler, method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	return nil
}

func TestUninitializedSessionIsNotSaved(t *testing.T) {
	store := NewMemoryStore()
	r, _ := newRouter(t, store)

	for _, path := range []string{"/noop", "/silent"} {
		rec := do(r, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, sessionCookie(rec), path)
	}

	rec := do(r, http.MethodPost, "/set-unset")
	assert.Nil(t, sessionCookie(rec))
	assert.Equal(t, 0, store.size())
}

func TestModifiedSessionIsSaved(t *testing.T) {
	store := NewMemoryStore()
	r, _ := newRouter(t, store)

	rec := do(r, http.MethodPost, "/set?v=hello")
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 1, store.size())

	rec = do(r, http.MethodGet, "/get", cookie)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Nil(t, sessionCookie(rec), "cookie is not reissued for a known session")

	rec = do(r, http.MethodPost, "/set?v=again", cookie)
	assert.Nil(t, sessionCookie(rec))
	rec = do(r, http.MethodGet, "/get", cookie)
	assert.Equal(t, "again", rec.Body.String())
	assert.Equal(t, 1, store.size())
}

func TestSessionCommittedBeforeStatusOnlyResponse(t *testing.T) {
	store := NewMemoryStore()
	r, _ := newRouter(t, store)

	rec := do(r, http.MethodPost, "/set-status")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, sessionCookie(rec))
	assert.Equal(t, 1, store.size())
}

func TestForgedCookieStartsFreshSession(t *testing.T) {
	store := NewMemoryStore()
	r, _ := newRouter(t, store)

	rec := do(r, http.MethodPost, "/set?v=secret")
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	other := NewManager(store, Options{Secret: "other-secret"}, zap.NewNop())
	forgedValue, err := signID(other.secret, "attacker", time.Now())
	require.NoError(t, err)

	for _, value := range []string{"garbage", forgedValue, cookie.Value + "x"} {
		rec = do(r, http.MethodGet, "/get", &http.Cookie{Name: DefaultCookieName, Value: value})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	}
}

func TestUnchangedSessionIsTouched(t *testing.T) {
	store := NewMemoryStore()
	r, mgr := newRouter(t, store)

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mgr.Now = func() time.Time { return start }
	store.Now = mgr.Now

	rec := do(r, http.MethodPost, "/set?v=kept")
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	later := start.Add(50 * time.Minute)
	mgr.Now = func() time.Time { return later }
	store.Now = mgr.Now
	do(r, http.MethodGet, "/noop", cookie)

	// Past the original expiry but inside the touched one.
	store.Now = func() time.Time { return start.Add(90 * time.Minute) }
	rec = do(r, http.MethodGet, "/get", cookie)
	assert.Equal(t, "kept", rec.Body.String())
}

func TestExpiredSessionIsNotLoaded(t *testing.T) {
	store := NewMemoryStore()
	r, _ := newRouter(t, store)

	rec := do(r, http.MethodPost, "/set?v=old")
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	store.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rec = do(r, http.MethodGet, "/get", cookie)
	assert.Empty(t, rec.Body.String())
}

func TestRegenerate(t *testing.T) {
	store := NewMemoryStore()
	r, _ := newRouter(t, store)

	first := sessionCookie(do(r, http.MethodPost, "/set?v=before"))
	require.NotNil(t, first)

	rec := do(r, http.MethodPost, "/regenerate", first)
	second := sessionCookie(rec)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)
	assert.Equal(t, 1, store.size())

	assert.Empty(t, do(r, http.MethodGet, "/get", first).Body.String())
	assert.Equal(t, "fresh", do(r, http.MethodGet, "/get", second).Body.String())
}

func TestDestroy(t *testing.T) {
	store := NewMemoryStore()
	r, _ := newRouter(t, store)

	cookie := sessionCookie(do(r, http.MethodPost, "/set?v=bye"))
	require.NotNil(t, cookie)

	rec := do(r, http.MethodPost, "/destroy", cookie)
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
	assert.Equal(t, 0, store.size())
}

type failingStore struct{ Store }

func (failingStore) Get(context.Context, string) (Data, error) {
	return nil, errors.New("database unavailable")
}

func TestStoreFailureAborts(t *testing.T) {
	store := NewMemoryStore()
	r, _ := newRouter(t, failingStore{store})

	valid, err := signID([]byte("test-secret"), "abc", time.Now())
	require.NoError(t, err)

	rec := do(r, http.MethodGet, "/noop", &http.Cookie{Name: DefaultCookieName, Value: valid})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "ok")
}

func TestFromOutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, From(c))
}
