package board

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/valerit/react-kanban/internal/auth"
	"github.com/valerit/react-kanban/internal/domain"
	"github.com/valerit/react-kanban/internal/http/problem"
)

const stateKey = "board.state"

// State is the initial client state embedded in the rendered page.
type State struct {
	User   *auth.User `json:"user"`
	Boards []Board    `json:"boards"`
}

// StateFrom returns the state attached by FetchBoardData.
func StateFrom(c *gin.Context) (*State, bool) {
	v, ok := c.Get(stateKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*State)
	return s, ok
}

// SetState attaches state to the request for the page renderer.
func SetState(c *gin.Context, state *State) {
	c.Set(stateKey, state)
}

type Handler struct {
	repo   Repository
	logger *zap.Logger
}

func NewHandler(repo Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Routes registers the board API on r. Every route requires a user.
func (h *Handler) Routes(r gin.IRouter) {
	g := r.Group("", auth.RequireUser())
	g.GET("/boards", h.listBoards)
	g.PUT("/board", h.saveBoard)
	g.DELETE("/board", h.deleteBoard)
}

// FetchBoardData loads the boards of the current user, or the guest board
// for anonymous visitors, and attaches them as State.
func (h *Handler) FetchBoardData() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := &State{User: auth.CurrentUser(c)}
		if state.User == nil {
			state.Boards = []Board{GuestBoard()}
		} else {
			boards, err := h.repo.ListByUser(c.Request.Context(), state.User.ID)
			if err != nil {
				h.logger.Error("failed to fetch board data", zap.String("user", state.User.ID), zap.Error(err))
				problem.Abort(c, err)
				return
			}
			state.Boards = boards
		}
		SetState(c, state)
		c.Next()
	}
}

func (h *Handler) listBoards(c *gin.Context) {
	user := auth.CurrentUser(c)
	boards, err := h.repo.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		problem.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, boards)
}

func (h *Handler) saveBoard(c *gin.Context) {
	user := auth.CurrentUser(c)

	var b Board
	if err := c.ShouldBindBodyWith(&b, binding.JSON); err != nil {
		problem.Abort(c, domain.NewInvalidRequestError(errors.New("invalid board payload")))
		return
	}
	if err := b.normalize(user.ID); err != nil {
		problem.Abort(c, domain.NewInvalidRequestError(err))
		return
	}
	if err := h.repo.Save(c.Request.Context(), user.ID, &b); err != nil {
		if !domain.IsConflictError(err) {
			h.logger.Error("failed to save board", zap.String("board", b.ID), zap.Error(err))
		}
		problem.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) deleteBoard(c *gin.Context) {
	user := auth.CurrentUser(c)

	var req struct {
		BoardID string `json:"boardId"`
	}
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil || req.BoardID == "" {
		problem.Abort(c, domain.NewInvalidRequestError(errors.New("boardId is required")))
		return
	}
	if err := h.repo.Delete(c.Request.Context(), user.ID, req.BoardID); err != nil {
		problem.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
