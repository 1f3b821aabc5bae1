package httpx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/valerit/react-kanban/internal/auth"
	"github.com/valerit/react-kanban/internal/board"
	"github.com/valerit/react-kanban/internal/config"
	"github.com/valerit/react-kanban/internal/domain"
	"github.com/valerit/react-kanban/internal/render"
	"github.com/valerit/react-kanban/internal/session"
)

var (
	faviconBytes = []byte("\x00\x00\x01\x00icon-bytes")
	plainJS      = strings.Repeat("console.log('kanban');\n", 100)
	plainCSS     = strings.Repeat(".card { color: red; }\n", 200)
)

// countingStore records how often the session store is used.
type countingStore struct {
	session.Store
	calls atomic.Int64
}

func (s *countingStore) Get(ctx context.Context, id string) (session.Data, error) {
	s.calls.Add(1)
	return s.Store.Get(ctx, id)
}

func (s *countingStore) Set(ctx context.Context, id string, data session.Data, expires time.Time) error {
	s.calls.Add(1)
	return s.Store.Set(ctx, id, data, expires)
}

func (s *countingStore) Touch(ctx context.Context, id string, expires time.Time) error {
	s.calls.Add(1)
	return s.Store.Touch(ctx, id, expires)
}

func (s *countingStore) Destroy(ctx context.Context, id string) error {
	s.calls.Add(1)
	return s.Store.Destroy(ctx, id)
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func (m *memUsers) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return domain.NewConflictError(fmt.Errorf("username %s is taken", user.Username))
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.NewNotFoundError(fmt.Errorf("user %s", id))
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.NewNotFoundError(fmt.Errorf("user %s", username))
}

type memBoards struct {
	mu     sync.Mutex
	boards map[string]board.Board
}

func (m *memBoards) ListByUser(_ context.Context, userID string) ([]board.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []board.Board{}
	for _, b := range m.boards {
		for _, u := range b.Users {
			if u == userID {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func (m *memBoards) Save(_ context.Context, _ string, b *board.Board) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards[b.ID] = *b
	return nil
}

func (m *memBoards) Delete(_ context.Context, _, boardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[boardID]; !ok {
		return domain.NewNotFoundError(fmt.Errorf("board %s", boardID))
	}
	delete(m.boards, boardID)
	return nil
}

type testServer struct {
	*Server
	store *countingStore
	root  string
}

func writeFile(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, data, 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	public := filepath.Join(root, "public")

	writeFile(t, filepath.Join(public, "favicons", "favicon.ico"), faviconBytes)
	writeFile(t, filepath.Join(public, "app.js"), []byte(plainJS))
	writeFile(t, filepath.Join(public, "app.js.br"), []byte("BR-PAYLOAD"))
	writeFile(t, filepath.Join(public, "app.js.gz"), []byte("GZ-PAYLOAD"))
	writeFile(t, filepath.Join(public, "style.css"), []byte(plainCSS))
	writeFile(t, filepath.Join(public, "docs", "index.html"), []byte("<p>docs</p>"))
	writeFile(t, filepath.Join(public, "docs", "index.html.br"), []byte("BR-DOCS"))
	writeFile(t, filepath.Join(public, ".env"), []byte("SECRET=1"))
	writeFile(t, filepath.Join(root, "secret.txt"), []byte("TOP-SECRET"))

	return &config.Config{
		SessionSecret:     "test-secret",
		SessionTTL:        time.Hour,
		Port:              "0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		StaticDir:         public,
		FaviconPath:       filepath.Join(public, "favicons", "favicon.ico"),
		Env:               "test",
	}
}

func newTestServerWith(t *testing.T, cfg *config.Config, logger *zap.Logger) *testServer {
	t.Helper()

	store := &countingStore{Store: session.NewMemoryStore()}
	sessions := session.NewManager(store, session.Options{Secret: cfg.SessionSecret, TTL: cfg.SessionTTL}, logger)

	authenticator := auth.NewAuthenticator(&memUsers{users: map[string]*auth.User{}}, logger)
	authenticator.Cost = bcrypt.MinCost

	boards := board.NewHandler(&memBoards{boards: map[string]board.Board{}}, logger)
	renderer, err := render.New("")
	require.NoError(t, err)

	srv, err := NewServer(Deps{
		Config:         cfg,
		Logger:         logger,
		Sessions:       sessions.Middleware(),
		Auth:           authenticator,
		API:            boards,
		FetchBoardData: boards.FetchBoardData(),
		RenderPage:     renderer.Handler(),
	})
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)

	return &testServer{Server: srv, store: store, root: cfg.StaticDir}
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, testConfig(t), zap.NewNop())
}

type reqOption func(*http.Request)

func withHeader(k, v string) reqOption {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func withCookie(c *http.Cookie) reqOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (s *testServer) do(method, target, body string, opts ...reqOption) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.R.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	return nil
}
