package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const contextKey = "session"

type Options struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// Manager loads sessions at the start of a request and commits them before
// the response is written. Unmodified new sessions are never saved and get
// no cookie; unmodified loaded sessions are only touched.
type Manager struct {
	store  Store
	opts   Options
	secret []byte
	logger *zap.Logger
	Now    func() time.Time
}

func NewManager(store Store, opts Options, logger *zap.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = 14 * 24 * time.Hour
	}
	return &Manager{
		store:  store,
		opts:   opts,
		secret: []byte(opts.Secret),
		logger: logger,
		Now:    time.Now,
	}
}

// From returns the request's session, or nil outside the session stage.
func From(c *gin.Context) *Session {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}

func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := m.load(c)
		if err != nil {
			m.logger.Error("failed to load session", zap.Error(err))
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
		c.Set(contextKey, sess)

		w := &commitWriter{ResponseWriter: c.Writer, commit: func() { m.commit(c, sess) }}
		c.Writer = w
		defer func() { c.Writer = w.ResponseWriter }()

		c.Next()
		w.before()
	}
}

func (m *Manager) load(c *gin.Context) (*Session, error) {
	cookie, err := c.Cookie(m.opts.CookieName)
	if err != nil || cookie == "" {
		return newSession(""), nil
	}

	id, err := verifyID(m.secret, cookie)
	if err != nil {
		m.logger.Debug("ignoring session cookie", zap.Error(err))
		return newSession(""), nil
	}

	data, err := m.store.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return newSession(id), nil
	}
	if err != nil {
		return nil, err
	}
	return loadedSession(id, data), nil
}

func (m *Manager) commit(c *gin.Context, s *Session) {
	ctx := c.Request.Context()

	for _, id := range s.staleIDs {
		if err := m.store.Destroy(ctx, id); err != nil {
			m.logger.Error("failed to destroy stale session", zap.Error(err))
		}
	}

	if s.destroyed {
		if err := m.store.Destroy(ctx, s.id); err != nil {
			m.logger.Error("failed to destroy session", zap.Error(err))
		}
		if s.cookieID != "" {
			m.clearCookie(c)
		}
		return
	}

	expires := m.Now().Add(m.opts.TTL)
	switch {
	case s.Modified():
		if err := m.store.Set(ctx, s.id, s.data, expires); err != nil {
			m.logger.Error("failed to save session", zap.String("session", s.id), zap.Error(err))
			return
		}
		if s.IsNew() {
			m.setCookie(c, s.id)
		}
	case !s.IsNew():
		if err := m.store.Touch(ctx, s.id, expires); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Warn("failed to touch session", zap.String("session", s.id), zap.Error(err))
		}
	}
}

func (m *Manager) setCookie(c *gin.Context, id string) {
	value, err := signID(m.secret, id, m.Now())
	if err != nil {
		m.logger.Error("failed to sign session cookie", zap.Error(err))
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
