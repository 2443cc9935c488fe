package recipes

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cookshelf/recipe-api/internal/apps/books"
	"github.com/cookshelf/recipe-api/internal/database"
	"github.com/cookshelf/recipe-api/internal/media"
	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/cookshelf/recipe-api/internal/visibility"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrRatingNotFound = errors.New("rating not found")
	ErrImageNotFound  = errors.New("image not found")
	ErrUnknownTag     = &validation.Error{Message: "tag does not exist, provide a tag_name to create it"}
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// RecipeService holds recipes, their ratings and tags, and the image files
// attached to them. Every lookup on behalf of a user goes through the
// visibility scope, so recipes outside it behave as if they did not exist.
type RecipeService struct {
	db      *gorm.DB
	storage *media.Storage
}

func NewRecipeService(db *gorm.DB, storage *media.Storage) *RecipeService {
	return &RecipeService{db: db, storage: storage}
}

func withTags(db *gorm.DB) *gorm.DB {
	return db.Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id") })
}

// findVisible loads recipe id with its tags if user may see it.
func findVisible(db *gorm.DB, user *models.User, id uint) (*Recipe, error) {
	var recipe Recipe
	err := withTags(db).Scopes(visibility.For("recipes", user)).First(&recipe, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	return &recipe, nil
}

func (s *RecipeService) Get(user *models.User, id uint) (*Recipe, error) {
	return findVisible(s.db, user, id)
}

// List returns the visible recipes. A limit of 0 means all of them.
func (s *RecipeService) List(user *models.User, limit int) ([]Recipe, error) {
	q := withTags(s.db).Scopes(visibility.For("recipes", user)).Order("recipes.id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var list []Recipe
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return list, nil
}

// Search matches the visible recipes against q. Title matching is a
// case-insensitive substring test; the rating filter uses the aggregate.
func (s *RecipeService) Search(user *models.User, q SearchQuery) ([]Recipe, error) {
	tx := withTags(s.db).Scopes(visibility.For("recipes", user))

	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
		tx = tx.Where(`LOWER(recipes.title) LIKE ? ESCAPE '\'`, pattern)
	}
	if q.Tag != "" {
		tx = tx.Where(
			"recipes.id IN (SELECT recipe_tags.recipe_id FROM recipe_tags JOIN tags ON tags.id = recipe_tags.tag_id WHERE tags.tag_name = ?)",
			q.Tag,
		)
	}
	if q.MinRating > 0 {
		tx = tx.Where(
			"COALESCE((SELECT AVG(ratings.rating) FROM ratings WHERE ratings.recipe_id = recipes.id), 0) >= ?",
			q.MinRating,
		)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var list []Recipe
	if err := tx.Order("recipes.id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to search recipes: %w", err)
	}
	return list, nil
}

// Create stores a recipe owned by user in a book user can see. Tags and the
// creator's optional rating are written in the same transaction.
func (s *RecipeService) Create(user *models.User, in *RecipeInput) (*Recipe, error) {
	var recipe Recipe
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := books.FindVisible(tx, user, in.BookID); err != nil {
			return err
		}

		tags, err := resolveTags(tx, in.Tags)
		if err != nil {
			return err
		}

		recipe = Recipe{
			Title:  in.Title,
			Page:   in.Page,
			UserID: user.ID,
			BookID: in.BookID,
			Tags:   tags,
		}
		if err := tx.Omit("Tags.*").Create(&recipe).Error; err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		if in.Rating > 0 {
			return upsertRating(tx, user.ID, recipe.ID, in.Rating)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("recipe created", "recipe_id", recipe.ID, "user_id", user.ID, "book_id", recipe.BookID)
	return findVisible(s.db, user, recipe.ID)
}

// Update rewrites a visible recipe. The tag set is replaced only when the
// request carried tags; a rating of 0 leaves the requester's rating alone.
func (s *RecipeService) Update(user *models.User, id uint, in *RecipeInput) (*Recipe, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		recipe, err := findVisible(tx, user, id)
		if err != nil {
			return err
		}
		if _, err := books.FindVisible(tx, user, in.BookID); err != nil {
			return err
		}

		if err := tx.Model(recipe).Updates(map[string]any{
			"title":   in.Title,
			"page":    in.Page,
			"book_id": in.BookID,
		}).Error; err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}

		if in.TagsPresent {
			tags, err := resolveTags(tx, in.Tags)
			if err != nil {
				return err
			}
			assoc := tx.Model(recipe).Association("Tags")
			if len(tags) == 0 {
				err = assoc.Clear()
			} else {
				err = assoc.Replace(tags)
			}
			if err != nil {
				return fmt.Errorf("failed to replace tags: %w", err)
			}
		}

		if in.Rating > 0 {
			return upsertRating(tx, user.ID, recipe.ID, in.Rating)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findVisible(s.db, user, id)
}

// Delete removes a visible recipe after detaching its tags and deleting its
// ratings. The image file goes once the rows are gone.
func (s *RecipeService) Delete(user *models.User, id uint) error {
	var image *string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		recipe, err := findVisible(tx, user, id)
		if err != nil {
			return err
		}
		image = recipe.Image

		if err := purge(tx, []uint{recipe.ID}); err != nil {
			return err
		}

		res := tx.Delete(&Recipe{}, recipe.ID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete recipe: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return database.ErrUnexpectedRowCount
		}
		return nil
	})
	if err != nil {
		return err
	}

	if image != nil {
		s.RemoveImages([]string{*image})
	}
	slog.Info("recipe deleted", "recipe_id", id, "user_id", user.ID)
	return nil
}

// Rate upserts user's rating of a visible recipe.
func (s *RecipeService) Rate(user *models.User, id uint, value int) (*Recipe, error) {
	if value < validation.MinRating || value > validation.MaxRating {
		return nil, validation.ErrInvalidRating
	}
	recipe, err := findVisible(s.db, user, id)
	if err != nil {
		return nil, err
	}
	if err := upsertRating(s.db, user.ID, recipe.ID, value); err != nil {
		return nil, err
	}
	return recipe, nil
}

// DeleteRating removes user's own rating of a visible recipe.
func (s *RecipeService) DeleteRating(user *models.User, id uint) (*Recipe, error) {
	recipe, err := findVisible(s.db, user, id)
	if err != nil {
		return nil, err
	}

	res := s.db.Where("user_id = ? AND recipe_id = ?", user.ID, recipe.ID).Delete(&Rating{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to delete rating: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrRatingNotFound
	}
	return recipe, nil
}

// Ratings lists the ratings of a visible recipe given by user and their
// group. Ratings by anyone else still count towards the average but are
// not listed.
func (s *RecipeService) Ratings(user *models.User, id uint) ([]Rating, error) {
	recipe, err := findVisible(s.db, user, id)
	if err != nil {
		return nil, err
	}

	var list []Rating
	err = s.db.Scopes(visibility.For("ratings", user)).
		Where("ratings.recipe_id = ?", recipe.ID).
		Order("ratings.id").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return list, nil
}

// Averages returns the mean rating of each recipe id over all raters.
// Recipes without ratings map to 0.
func (s *RecipeService) Averages(ids ...uint) (map[uint]float64, error) {
	out := make(map[uint]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		RecipeID uint
		Average  float64
	}
	err := s.db.Model(&Rating{}).
		Select("recipe_id, AVG(rating) AS average").
		Where("recipe_id IN ?", ids).
		Group("recipe_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}

	for _, id := range ids {
		out[id] = 0
	}
	for _, r := range rows {
		out[r.RecipeID] = r.Average
	}
	return out, nil
}

func (s *RecipeService) Tags() ([]Tag, error) {
	var list []Tag
	if err := s.db.Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return list, nil
}

// SetImage stores a new image for a visible recipe and drops the old one.
func (s *RecipeService) SetImage(user *models.User, id uint, filename string, r io.Reader) (*Recipe, error) {
	recipe, err := findVisible(s.db, user, id)
	if err != nil {
		return nil, err
	}

	name, err := s.storage.Save(filename, r)
	if err != nil {
		return nil, err
	}

	old := recipe.Image
	if err := s.db.Model(&Recipe{}).Where("id = ?", recipe.ID).Update("image", name).Error; err != nil {
		s.RemoveImages([]string{name})
		return nil, fmt.Errorf("failed to store image name: %w", err)
	}

	recipe.Image = &name
	if old != nil {
		s.RemoveImages([]string{*old})
	}
	slog.Info("recipe image stored", "recipe_id", recipe.ID, "user_id", user.ID, "image", name)
	return recipe, nil
}

// DeleteImage clears the image of a visible recipe.
func (s *RecipeService) DeleteImage(user *models.User, id uint) (*Recipe, error) {
	recipe, err := findVisible(s.db, user, id)
	if err != nil {
		return nil, err
	}
	if recipe.Image == nil {
		return recipe, nil
	}

	old := *recipe.Image
	if err := s.db.Model(&Recipe{}).Where("id = ?", recipe.ID).Update("image", nil).Error; err != nil {
		return nil, fmt.Errorf("failed to clear image: %w", err)
	}

	recipe.Image = nil
	s.RemoveImages([]string{old})
	return recipe, nil
}

// ImageFile resolves file of a visible recipe to a path on disk. The file
// must be the recipe's current image or its thumbnail.
func (s *RecipeService) ImageFile(user *models.User, recipeID uint, file string) (string, error) {
	recipe, err := findVisible(s.db, user, recipeID)
	if err != nil {
		return "", err
	}
	return s.imagePath(recipe, file)
}

// SignedImageFile is ImageFile for a signed link issued to userID. The link
// only works while that user can still see the recipe.
func (s *RecipeService) SignedImageFile(userID, recipeID uint, file string) (string, error) {
	var user models.User
	if err := s.db.Select("id", "user_group_id").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrRecipeNotFound
		}
		return "", fmt.Errorf("failed to load link owner: %w", err)
	}
	return s.ImageFile(&user, recipeID, file)
}

func (s *RecipeService) imagePath(recipe *Recipe, file string) (string, error) {
	if !media.ValidName(file) {
		return "", media.ErrInvalidName
	}
	if recipe.Image == nil || (file != *recipe.Image && file != media.ThumbnailName(*recipe.Image)) {
		return "", ErrImageNotFound
	}
	return s.storage.Open(file)
}

// RecipeIDs implements books.RecipeStore. Only recipes user can see are
// listed.
func (s *RecipeService) RecipeIDs(db *gorm.DB, user *models.User, bookIDs []uint) (map[uint][]uint, error) {
	var rows []struct {
		ID     uint
		BookID uint
	}
	err := db.Model(&Recipe{}).
		Scopes(visibility.For("recipes", user)).
		Select("recipes.id, recipes.book_id").
		Where("recipes.book_id IN ?", bookIDs).
		Order("recipes.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recipe ids: %w", err)
	}

	out := make(map[uint][]uint, len(bookIDs))
	for _, r := range rows {
		out[r.BookID] = append(out[r.BookID], r.ID)
	}
	return out, nil
}

// PurgeBook implements books.RecipeStore.
func (s *RecipeService) PurgeBook(tx *gorm.DB, bookID uint) ([]string, error) {
	var list []Recipe
	if err := tx.Select("id", "image").Where("book_id = ?", bookID).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to load book recipes: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(list))
	var images []string
	for _, r := range list {
		ids = append(ids, r.ID)
		if r.Image != nil {
			images = append(images, *r.Image)
		}
	}

	if err := purge(tx, ids); err != nil {
		return nil, err
	}
	res := tx.Where("id IN ?", ids).Delete(&Recipe{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to delete book recipes: %w", res.Error)
	}
	if res.RowsAffected != int64(len(ids)) {
		return nil, database.ErrUnexpectedRowCount
	}
	return images, nil
}

// RemoveImages implements books.RecipeStore. Failures are logged only: the
// rows referencing the files are already gone.
func (s *RecipeService) RemoveImages(names []string) {
	for _, name := range names {
		if err := s.storage.Delete(name); err != nil {
			slog.Warn("failed to remove image file", "image", name, "error", err)
		}
	}
}

// purge detaches tags from and deletes the ratings of recipes ids.
func purge(tx *gorm.DB, ids []uint) error {
	if err := tx.Exec("DELETE FROM "+TagJoinTable+" WHERE recipe_id IN ?", ids).Error; err != nil {
		return fmt.Errorf("failed to detach tags: %w", err)
	}
	if err := tx.Where("recipe_id IN ?", ids).Delete(&Rating{}).Error; err != nil {
		return fmt.Errorf("failed to delete ratings: %w", err)
	}
	return nil
}

func upsertRating(db *gorm.DB, userID, recipeID uint, value int) error {
	rating := Rating{UserID: userID, RecipeID: recipeID, Rating: value}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "recipe_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "updated_at"}),
	}).Create(&rating).Error
	if err != nil {
		return fmt.Errorf("failed to store rating: %w", err)
	}
	return nil
}

// resolveTags turns references into stored tags: an existing id wins, then
// an exact name match, and otherwise a new tag is created from the name.
func resolveTags(tx *gorm.DB, refs []validation.TagRef) ([]Tag, error) {
	tags := make([]Tag, 0, len(refs))
	seen := make(map[uint]bool, len(refs))
	for _, ref := range refs {
		tag, err := resolveTag(tx, ref)
		if err != nil {
			return nil, err
		}
		if seen[tag.ID] {
			continue
		}
		seen[tag.ID] = true
		tags = append(tags, *tag)
	}
	return tags, nil
}

func resolveTag(tx *gorm.DB, ref validation.TagRef) (*Tag, error) {
	var tag Tag
	if ref.ID != nil {
		err := tx.First(&tag, *ref.ID).Error
		if err == nil {
			return &tag, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load tag: %w", err)
		}
	}
	if ref.TagName == nil {
		return nil, ErrUnknownTag
	}

	err := tx.Where("tag_name = ?", *ref.TagName).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load tag: %w", err)
	}

	tag = Tag{TagName: *ref.TagName, Color: ref.Color, TagType: ref.TagType}
	if err := tx.Create(&tag).Error; err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return &tag, nil
}
