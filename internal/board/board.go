// Package board stores kanban boards and serves them to the page renderer
// and the JSON API.
package board

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Card struct {
	ID    string    `json:"_id" bson:"_id"`
	Text  string    `json:"text" bson:"text"`
	Date  time.Time `json:"date,omitempty" bson:"date,omitempty"`
	Color string    `json:"color,omitempty" bson:"color,omitempty"`
}

type List struct {
	ID    string `json:"_id" bson:"_id"`
	Title string `json:"title" bson:"title"`
	Cards []Card `json:"cards" bson:"cards"`
}

type Board struct {
	ID    string   `json:"_id" bson:"_id"`
	Title string   `json:"title" bson:"title"`
	Color string   `json:"color,omitempty" bson:"color,omitempty"`
	Lists []List   `json:"lists" bson:"lists"`
	Users []string `json:"users" bson:"users"`
}

// normalize fills missing ids and makes userID a member of the board.
func (b *Board) normalize(userID string) error {
	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" {
		return errors.New("board title is required")
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Lists == nil {
		b.Lists = []List{}
	}
	for i := range b.Lists {
		l := &b.Lists[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.Cards == nil {
			l.Cards = []Card{}
		}
		for j := range l.Cards {
			if l.Cards[j].ID == "" {
				l.Cards[j].ID = uuid.NewString()
			}
		}
	}
	for _, u := range b.Users {
		if u == userID {
			return nil
		}
	}
	b.Users = append(b.Users, userID)
	return nil
}

// GuestBoard is shown to anonymous visitors. It is never persisted.
func GuestBoard() Board {
	return Board{
		ID:    "guest",
		Title: "Welcome board",
		Color: "blue",
		Lists: []List{
			{ID: "guest-todo", Title: "Todo", Cards: []Card{
				{ID: "guest-card-1", Text: "Sign up to keep your own boards"},
				{ID: "guest-card-2", Text: "Drag cards between lists"},
			}},
			{ID: "guest-doing", Title: "In progress", Cards: []Card{}},
			{ID: "guest-done", Title: "Done", Cards: []Card{}},
		},
		Users: []string{},
	}
}
