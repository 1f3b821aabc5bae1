// Package render serves the single HTML page that boots the client with
// its initial state.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	ginrender "github.com/gin-gonic/gin/render"

	"github.com/valerit/react-kanban/internal/board"
)

//go:embed templates/page.html
var templates embed.FS

const DefaultTitle = "React Kanban"

type page struct {
	Title string
	State *board.State
}

type Renderer struct {
	tmpl  *template.Template
	title string
}

func New(title string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templates, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	if title == "" {
		title = DefaultTitle
	}
	return &Renderer{tmpl: tmpl, title: title}, nil
}

// Handler renders the page with status 200 for any request that reaches it.
func (r *Renderer) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok := board.StateFrom(c)
		if !ok {
			state = &board.State{Boards: []board.Board{}}
		}
		c.Render(http.StatusOK, ginrender.HTML{
			Template: r.tmpl,
			Name:     "page.html",
			Data:     page{Title: r.title, State: state},
		})
	}
}
