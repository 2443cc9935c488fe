package books

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cookshelf/recipe-api/internal/database"
	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/cookshelf/recipe-api/internal/visibility"
	"gorm.io/gorm"
)

var (
	ErrBookNotFound      = errors.New("book not found")
	ErrBookTypeImmutable = &validation.Error{Message: MsgBookTypeImmutable}
)

// RecipeStore is the part of the recipe module that books depend on. Recipes
// reference books, so the dependency is inverted to keep packages acyclic.
type RecipeStore interface {
	// RecipeIDs maps each book id to the ids of its recipes visible to
	// user, ascending.
	RecipeIDs(db *gorm.DB, user *models.User, bookIDs []uint) (map[uint][]uint, error)

	// PurgeBook deletes every recipe of a book inside tx and returns the
	// image files they referenced.
	PurgeBook(tx *gorm.DB, bookID uint) ([]string, error)

	// RemoveImages deletes image files once their rows are gone.
	RemoveImages(names []string)
}

type BookService struct {
	db      *gorm.DB
	recipes RecipeStore
}

func NewBookService(db *gorm.DB, recipes RecipeStore) *BookService {
	return &BookService{db: db, recipes: recipes}
}

// FindVisible loads book id if user may see it. Absent and invisible books
// both yield ErrBookNotFound.
func FindVisible(db *gorm.DB, user *models.User, id uint) (*Book, error) {
	var book Book
	err := db.Scopes(visibility.For("books", user)).First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return &book, nil
}

func (s *BookService) List(user *models.User) ([]Book, error) {
	var list []Book
	if err := s.db.Scopes(visibility.For("books", user)).Order("books.id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return list, nil
}

func (s *BookService) Get(user *models.User, id uint) (*Book, error) {
	return FindVisible(s.db, user, id)
}

func (s *BookService) Create(user *models.User, kind BookType, req *BookRequest) (*Book, error) {
	book := Book{Type: kind, UserID: user.ID}
	book.apply(req)

	if err := s.db.Create(&book).Error; err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	slog.Info("book created", "book_id", book.ID, "user_id", user.ID, "type", book.Type)
	return &book, nil
}

// Update rewrites a visible book. The kind must match the stored one.
func (s *BookService) Update(user *models.User, id uint, kind BookType, req *BookRequest) (*Book, error) {
	book, err := FindVisible(s.db, user, id)
	if err != nil {
		return nil, err
	}
	if book.Type != kind {
		return nil, ErrBookTypeImmutable
	}

	book.apply(req)
	if err := s.db.Save(book).Error; err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	return book, nil
}

// Delete removes a visible book together with its recipes. Image files are
// removed only after the transaction commits.
func (s *BookService) Delete(user *models.User, id uint) error {
	var images []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := FindVisible(tx, user, id); err != nil {
			return err
		}

		names, err := s.recipes.PurgeBook(tx, id)
		if err != nil {
			return err
		}
		images = names

		res := tx.Delete(&Book{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete book: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return database.ErrUnexpectedRowCount
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recipes.RemoveImages(images)
	slog.Info("book deleted", "book_id", id, "user_id", user.ID, "images", len(images))
	return nil
}

// RecipeIDs returns the ids of the recipes in each book that user can see,
// for link rendering.
func (s *BookService) RecipeIDs(user *models.User, list ...Book) (map[uint][]uint, error) {
	ids := make([]uint, 0, len(list))
	for _, b := range list {
		ids = append(ids, b.ID)
	}
	if len(ids) == 0 {
		return map[uint][]uint{}, nil
	}
	return s.recipes.RecipeIDs(s.db, user, ids)
}
