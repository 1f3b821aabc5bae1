package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"github.com/valerit/react-kanban/internal/config"
	"github.com/valerit/react-kanban/internal/db"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	favicon := filepath.Join(dir, "favicon.ico")
	require.NoError(t, os.WriteFile(favicon, []byte("icon"), 0o644))

	return &config.Config{
		MongoURL:            "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=100",
		MongoName:           mtest.TestDb,
		MongoConnectTimeout: 200 * time.Millisecond,
		SessionSecret:       "secret",
		SessionTTL:          time.Hour,
		SessionStore:        config.SessionStoreMongo,
		Port:                "0",
		StaticDir:           dir,
		FaviconPath:         favicon,
		Env:                 "test",
	}
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect(context.Background(), testConfig(t), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to")
}

func TestServer(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("composes stores and routes", func(mt *mtest.T) {
		// One createIndexes reply per store.
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		a := &App{Config: testConfig(mt.T), Logger: zap.NewNop(), Mongo: db.Wrap(mt.Client, mtest.TestDb)}
		srv, err := a.Server(context.Background())
		require.NoError(mt, err)
		gin.SetMode(gin.TestMode)

		var indexed []string
		for e := mt.GetStartedEvent(); e != nil; e = mt.GetStartedEvent() {
			if e.CommandName == "createIndexes" {
				indexed = append(indexed, e.Command.Lookup("createIndexes").StringValue())
			}
		}
		assert.Equal(mt, []string{"sessions", "users", "boards"}, indexed)

		mt.AddMockResponses(mtest.CreateSuccessResponse())
		rec := httptest.NewRecorder()
		srv.R.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(mt, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		srv.R.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
		assert.Equal(mt, http.StatusOK, rec.Code)
		assert.Contains(mt, rec.Body.String(), `"_id":"guest"`)
	})

	mt.Run("memory sessions", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		cfg := testConfig(mt.T)
		cfg.SessionStore = config.SessionStoreMemory
		a := &App{Config: cfg, Logger: zap.NewNop(), Mongo: db.Wrap(mt.Client, mtest.TestDb)}
		srv, err := a.Server(context.Background())
		require.NoError(mt, err)

		var indexed []string
		for e := mt.GetStartedEvent(); e != nil; e = mt.GetStartedEvent() {
			if e.CommandName == "createIndexes" {
				indexed = append(indexed, e.Command.Lookup("createIndexes").StringValue())
			}
		}
		assert.Equal(mt, []string{"users", "boards"}, indexed)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("username=alice&username=bob"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		srv.R.ServeHTTP(rec, req)
		assert.Equal(mt, http.StatusBadRequest, rec.Code)
	})

	mt.Run("index failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))

		a := &App{Config: testConfig(mt.T), Logger: zap.NewNop(), Mongo: db.Wrap(mt.Client, mtest.TestDb)}
		_, err := a.Server(context.Background())
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "session store")
	})
}
