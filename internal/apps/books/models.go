package books

import (
	"strings"
	"time"

	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/validation"
)

// BookType is the closed set of book kinds. The kind decides which of the
// variant fields (Author, Issue) a book carries.
type BookType string

const (
	Cookbook BookType = "cookbook"
	Magazine BookType = "magazine"
)

// BookTypes lists every kind in display order.
var BookTypes = []BookType{Cookbook, Magazine}

const (
	MsgInvalidBookType   = "type must be one of cookbook, magazine"
	MsgBookTypeImmutable = "type of a book can not be changed"
)

var ErrInvalidBookType = &validation.Error{Message: MsgInvalidBookType}

// ParseBookType validates the type field of a request body.
func ParseBookType(raw string) (BookType, error) {
	for _, t := range BookTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", ErrInvalidBookType
}

type Book struct {
	ID     uint     `gorm:"primaryKey" json:"id"`
	Title  string   `gorm:"size:256;not null" json:"title"`
	Type   BookType `gorm:"size:64;not null" json:"type"`
	Year   *int     `json:"year"`
	Author *string  `gorm:"size:256" json:"author,omitempty"`
	Issue  *string  `gorm:"size:64" json:"issue,omitempty"`

	UserID uint `gorm:"not null;index" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// apply copies the request fields that belong to the book's kind.
func (b *Book) apply(req *BookRequest) {
	b.Title = strings.TrimSpace(req.Title)
	b.Year = req.Year
	switch b.Type {
	case Cookbook:
		b.Author = req.Author
		b.Issue = nil
	case Magazine:
		b.Issue = req.Issue
		b.Author = nil
	}
}

// --- DTOs ---

type BookRequest struct {
	Title  string  `json:"title" validate:"required,max=256"`
	Type   string  `json:"type" validate:"required"`
	Year   *int    `json:"year"`
	Author *string `json:"author" validate:"omitempty,max=256"`
	Issue  *string `json:"issue" validate:"omitempty,max=64"`
}

type BookLinks struct {
	Self    string   `json:"self"`
	User    string   `json:"user"`
	Recipes []string `json:"recipes"`
}

type BookResponse struct {
	ID     uint      `json:"id"`
	Title  string    `json:"title"`
	Type   BookType  `json:"type"`
	Year   *int      `json:"year"`
	Author *string   `json:"author,omitempty"`
	Issue  *string   `json:"issue,omitempty"`
	Links  BookLinks `json:"_links"`
}

func NewBookResponse(b *Book, recipeIDs []uint) BookResponse {
	resp := BookResponse{
		ID:     b.ID,
		Title:  b.Title,
		Type:   b.Type,
		Year:   b.Year,
		Author: b.Author,
		Issue:  b.Issue,
		Links: BookLinks{
			Self:    dto.BookURL(b.ID),
			User:    dto.UserURL(b.UserID),
			Recipes: make([]string, 0, len(recipeIDs)),
		},
	}
	for _, id := range recipeIDs {
		resp.Links.Recipes = append(resp.Links.Recipes, dto.RecipeURL(id))
	}
	return resp
}
