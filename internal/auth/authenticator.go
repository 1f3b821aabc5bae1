// Package auth attaches the authenticated user to each request from its
// session and provides the local username/password strategy.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/valerit/react-kanban/internal/domain"
	"github.com/valerit/react-kanban/internal/http/problem"
	"github.com/valerit/react-kanban/internal/session"
)

const (
	authenticatorKey = "auth.authenticator"
	userKey          = "auth.user"

	// sessionKey holds {"user": <id>} inside the session payload.
	sessionKey = "passport"
)

var errInvalidCredentials = errors.New("invalid username or password")

type Authenticator struct {
	users  UserStore
	logger *zap.Logger

	// Cost is the bcrypt cost for new password hashes.
	Cost int
	Now  func() time.Time
}

func NewAuthenticator(users UserStore, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		users:  users,
		logger: logger,
		Cost:   bcrypt.DefaultCost,
		Now:    time.Now,
	}
}

// Initialize attaches the authenticator to the request context.
func (a *Authenticator) Initialize() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(authenticatorKey, a)
		c.Next()
	}
}

// Session restores the user recorded in the session. A user id that no
// longer resolves is dropped from the session.
func (a *Authenticator) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := session.From(c)
		if sess == nil {
			c.Next()
			return
		}

		id := sessionUserID(sess)
		if id == "" {
			c.Next()
			return
		}

		user, err := a.users.GetByID(c.Request.Context(), id)
		switch {
		case domain.IsNotFoundError(err):
			a.logger.Info("dropping session for unknown user", zap.String("user", id))
			sess.Delete(sessionKey)
		case err != nil:
			a.logger.Error("failed to restore session user", zap.String("user", id), zap.Error(err))
			problem.Abort(c, err)
			return
		default:
			SetUser(c, user)
		}
		c.Next()
	}
}

func sessionUserID(sess *session.Session) string {
	v, ok := sess.Get(sessionKey)
	if !ok {
		return ""
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := m["user"].(string)
	return id
}

// FromContext returns the authenticator attached by Initialize.
func FromContext(c *gin.Context) *Authenticator {
	v, ok := c.Get(authenticatorKey)
	if !ok {
		return nil
	}
	a, _ := v.(*Authenticator)
	return a
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*User)
	return u
}

// SetUser attaches user to the request without touching the session.
func SetUser(c *gin.Context, user *User) {
	c.Set(userKey, user)
}

// RequireUser aborts anonymous requests with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			problem.AbortWithStatus(c, http.StatusUnauthorized, problem.WithDetail("authentication required"))
			return
		}
		c.Next()
	}
}

// Login records user in a regenerated session.
func (a *Authenticator) Login(c *gin.Context, user *User) error {
	sess := session.From(c)
	if sess == nil {
		return errors.New("login requires a session")
	}
	sess.Regenerate()
	sess.Set(sessionKey, map[string]interface{}{"user": user.ID})
	SetUser(c, user)
	return nil
}

// Logout removes the user from the session and regenerates it.
func (a *Authenticator) Logout(c *gin.Context) {
	if sess := session.From(c); sess != nil {
		sess.Delete(sessionKey)
		sess.Regenerate()
	}
	SetUser(c, nil)
}

// Authenticate is the local strategy: it verifies username and password.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := a.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, domain.NewUnauthorizedError(errInvalidCredentials)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.NewUnauthorizedError(errInvalidCredentials)
	}
	return user, nil
}

// Register creates a user with a bcrypt password hash.
func (a *Authenticator) Register(ctx context.Context, username, password, displayName string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.NewInvalidRequestError(errors.New("username and password are required"))
	}
	if len(password) < 8 {
		return nil, domain.NewInvalidRequestError(errors.New("password must be at least 8 characters"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.Cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if displayName == "" {
		displayName = username
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    a.Now().UTC(),
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
