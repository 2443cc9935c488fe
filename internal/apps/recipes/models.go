package recipes

import (
	"strings"
	"time"

	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/media"
	"github.com/cookshelf/recipe-api/internal/validation"
)

// TagJoinTable links recipes to tags. AutoMigrate creates it through
// Recipe.Tags; dropping needs it by name.
const TagJoinTable = "recipe_tags"

type Recipe struct {
	ID     uint    `gorm:"primaryKey" json:"id"`
	Title  string  `gorm:"size:256;not null" json:"title"`
	Page   *int    `json:"page"`
	Image  *string `gorm:"size:64" json:"image"`
	UserID uint    `gorm:"not null;index" json:"user_id"`
	BookID uint    `gorm:"not null;index" json:"book_id"`

	Tags []Tag `gorm:"many2many:recipe_tags" json:"tags"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rating is one user's score for one recipe.
type Rating struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	Rating   int  `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	UserID   uint `gorm:"not null;uniqueIndex:idx_rating_user_recipe" json:"user_id"`
	RecipeID uint `gorm:"not null;index;uniqueIndex:idx_rating_user_recipe" json:"recipe_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Tag struct {
	ID      uint    `gorm:"primaryKey" json:"id"`
	TagName string  `gorm:"size:128;not null;uniqueIndex" json:"tag_name"`
	Color   *string `gorm:"size:128" json:"color"`
	TagType *string `gorm:"size:128" json:"tag_type"`
}

// --- DTOs ---

// RecipeRequest is the body of create and update. Rating and Tags stay
// untyped until validated, since they accept several shapes.
type RecipeRequest struct {
	Title  string `json:"title" validate:"required,max=256"`
	BookID uint   `json:"book_id" validate:"required"`
	Page   *int   `json:"page"`
	Rating any    `json:"rating"`
	Tags   any    `json:"tags"`
}

// RecipeInput is a validated RecipeRequest.
type RecipeInput struct {
	Title       string
	BookID      uint
	Page        *int
	Rating      int
	Tags        []validation.TagRef
	TagsPresent bool
}

// Input validates the loosely typed fields of r.
func (r *RecipeRequest) Input() (*RecipeInput, error) {
	rating, err := validation.BodyRating(r.Rating)
	if err != nil {
		return nil, err
	}
	tags, present, err := validation.ParseTags(r.Tags)
	if err != nil {
		return nil, err
	}
	return &RecipeInput{
		Title:       strings.TrimSpace(r.Title),
		BookID:      r.BookID,
		Page:        r.Page,
		Rating:      rating,
		Tags:        tags,
		TagsPresent: present,
	}, nil
}

// SearchQuery filters the visible recipes. Zero values disable a filter.
type SearchQuery struct {
	Text      string
	Tag       string
	MinRating int
	Limit     int
}

type RecipeLinks struct {
	Self      string `json:"self"`
	User      string `json:"user"`
	Book      string `json:"book"`
	Image     string `json:"image,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type RecipeResponse struct {
	ID     uint        `json:"id"`
	Title  string      `json:"title"`
	Page   *int        `json:"page"`
	Image  *string     `json:"image"`
	Rating float64     `json:"rating"`
	BookID uint        `json:"book_id"`
	Tags   []Tag       `json:"tags"`
	Links  RecipeLinks `json:"_links"`
}

func NewRecipeResponse(r *Recipe, rating float64) RecipeResponse {
	resp := RecipeResponse{
		ID:     r.ID,
		Title:  r.Title,
		Page:   r.Page,
		Image:  r.Image,
		Rating: rating,
		BookID: r.BookID,
		Tags:   r.Tags,
		Links: RecipeLinks{
			Self: dto.RecipeURL(r.ID),
			User: dto.UserURL(r.UserID),
			Book: dto.BookURL(r.BookID),
		},
	}
	if resp.Tags == nil {
		resp.Tags = []Tag{}
	}
	if r.Image != nil {
		resp.Links.Image = dto.ImageURL(r.ID, *r.Image)
		resp.Links.Thumbnail = dto.ImageURL(r.ID, media.ThumbnailName(*r.Image))
	}
	return resp
}

type ImageLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
