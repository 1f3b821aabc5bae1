package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) mountRoutes(deps Deps) {
	s.R.GET("/healthz", s.health)

	deps.Auth.Routes(s.R.Group("/auth"))
	deps.API.Routes(s.R.Group("/api"))

	s.R.NoRoute(deps.FetchBoardData, deps.RenderPage)
}

func (s *Server) health(c *gin.Context) {
	if s.ping != nil {
		if err := s.ping(c.Request.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "time": s.Now().UTC()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": s.Now().UTC()})
}
