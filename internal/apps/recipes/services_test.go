package recipes

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cookshelf/recipe-api/internal/apps/books"
	"github.com/cookshelf/recipe-api/internal/media"
	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/testutil"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     *RecipeService
	books   *books.BookService
	dir     string
	alice   *models.User
	bob     *models.User
	mallory *models.User
}

// newFixture puts alice and bob in one group and leaves mallory outside.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg, &books.Book{}, &Tag{}, &Recipe{}, &Rating{})
	storage, err := media.NewStorage(cfg.UploadFolder, 0)
	require.NoError(t, err)

	svc := NewRecipeService(db, storage)
	f := &fixture{
		db:      db,
		svc:     svc,
		books:   books.NewBookService(db, svc),
		dir:     cfg.UploadFolder,
		alice:   testutil.CreateUser(t, db, "alice"),
		bob:     testutil.CreateUser(t, db, "bob"),
		mallory: testutil.CreateUser(t, db, "mallory"),
	}
	testutil.JoinGroup(t, db, "family", f.alice, f.bob)
	return f
}

func (f *fixture) book(t *testing.T, owner *models.User) *books.Book {
	t.Helper()
	b, err := f.books.Create(owner, books.Cookbook, &books.BookRequest{Title: "b_" + owner.Username})
	require.NoError(t, err)
	return b
}

func (f *fixture) recipe(t *testing.T, owner *models.User, bookID uint, title string) *Recipe {
	t.Helper()
	r, err := f.svc.Create(owner, &RecipeInput{Title: title, BookID: bookID})
	require.NoError(t, err)
	return r
}

func (f *fixture) average(t *testing.T, id uint) float64 {
	t.Helper()
	avg, err := f.svc.Averages(id)
	require.NoError(t, err)
	return avg[id]
}

func name(s string) *string { return &s }

func TestRecipeService_CreateRequiresVisibleBook(t *testing.T) {
	f := newFixture(t)
	aliceBook := f.book(t, f.alice)

	_, err := f.svc.Create(f.mallory, &RecipeInput{Title: "stolen", BookID: aliceBook.ID})
	assert.ErrorIs(t, err, books.ErrBookNotFound)

	r, err := f.svc.Create(f.bob, &RecipeInput{Title: "shared", BookID: aliceBook.ID})
	require.NoError(t, err, "group members may use each other's books")
	assert.Equal(t, f.bob.ID, r.UserID)
}

func TestRecipeService_Visibility(t *testing.T) {
	f := newFixture(t)
	r := f.recipe(t, f.alice, f.book(t, f.alice).ID, "Title - 1")

	_, err := f.svc.Get(f.mallory, r.ID)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
	_, err = f.svc.Get(f.alice, r.ID+100)
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	got, err := f.svc.Get(f.bob, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Title - 1", got.Title)

	list, err := f.svc.List(f.mallory, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.Rate(f.mallory, r.ID, 5)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
	assert.ErrorIs(t, f.svc.Delete(f.mallory, r.ID), ErrRecipeNotFound)
}

func TestRecipeService_LeavingGroupHidesRecipes(t *testing.T) {
	f := newFixture(t)
	r := f.recipe(t, f.alice, f.book(t, f.alice).ID, "soup")

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", f.bob.ID).Update("user_group_id", nil).Error)
	bob := testutil.Reload(t, f.db, f.bob.ID)

	_, err := f.svc.Get(bob, r.ID)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
}

func TestRecipeService_AverageRating(t *testing.T) {
	f := newFixture(t)
	r := f.recipe(t, f.alice, f.book(t, f.alice).ID, "cake")

	assert.Zero(t, f.average(t, r.ID))

	_, err := f.svc.Rate(f.alice, r.ID, 6)
	assert.ErrorIs(t, err, validation.ErrInvalidRating)

	_, err = f.svc.Rate(f.alice, r.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f.average(t, r.ID))

	_, err = f.svc.Rate(f.bob, r.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 4.0, f.average(t, r.ID))

	_, err = f.svc.Rate(f.alice, r.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f.average(t, r.ID))

	var count int64
	require.NoError(t, f.db.Model(&Rating{}).Where("user_id = ? AND recipe_id = ?", f.alice.ID, r.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "re-rating updates in place")
}

func TestRecipeService_AverageIsGlobal(t *testing.T) {
	f := newFixture(t)
	r := f.recipe(t, f.alice, f.book(t, f.alice).ID, "pie")

	_, err := f.svc.Rate(f.alice, r.ID, 2)
	require.NoError(t, err)
	// A rating left by a former group member still counts.
	require.NoError(t, f.db.Create(&Rating{UserID: f.mallory.ID, RecipeID: r.ID, Rating: 4}).Error)
	assert.Equal(t, 3.0, f.average(t, r.ID))

	ratings, err := f.svc.Ratings(f.alice, r.ID)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, f.alice.ID, ratings[0].UserID)
}

func TestRecipeService_CreateWithRatingAndTags(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.alice)
	existing := Tag{TagName: "vegan"}
	require.NoError(t, f.db.Create(&existing).Error)

	r, err := f.svc.Create(f.alice, &RecipeInput{
		Title:  "salad",
		BookID: b.ID,
		Rating: 4,
		Tags: []validation.TagRef{
			{ID: &existing.ID},
			{TagName: name("vegan")},
			{TagName: name("quick"), Color: name("#00ff00")},
		},
		TagsPresent: true,
	})
	require.NoError(t, err)
	require.Len(t, r.Tags, 2)
	assert.Equal(t, "vegan", r.Tags[0].TagName)
	assert.Equal(t, "quick", r.Tags[1].TagName)
	assert.Equal(t, 4.0, f.average(t, r.ID))

	missing := uint(9999)
	_, err = f.svc.Create(f.alice, &RecipeInput{Title: "x", BookID: b.ID, Tags: []validation.TagRef{{ID: &missing}}, TagsPresent: true})
	assert.ErrorIs(t, err, ErrUnknownTag)

	var count int64
	require.NoError(t, f.db.Model(&Recipe{}).Where("title = ?", "x").Count(&count).Error)
	assert.Zero(t, count, "failed create leaves nothing behind")
}

func TestRecipeService_Update(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.alice)
	r, err := f.svc.Create(f.alice, &RecipeInput{Title: "r_1", BookID: b.ID, Tags: []validation.TagRef{{TagName: name("a")}}, TagsPresent: true})
	require.NoError(t, err)

	_, err = f.svc.Rate(f.alice, r.ID, 3)
	require.NoError(t, err)

	updated, err := f.svc.Update(f.bob, r.ID, &RecipeInput{Title: "new_title", BookID: b.ID, Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, "new_title", updated.Title)
	assert.Len(t, updated.Tags, 1, "tags untouched when not sent")
	assert.Equal(t, 4.0, f.average(t, r.ID))

	updated, err = f.svc.Update(f.alice, r.ID, &RecipeInput{Title: "new_title", BookID: b.ID, TagsPresent: true})
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)

	malloryBook := f.book(t, f.mallory)
	_, err = f.svc.Update(f.alice, r.ID, &RecipeInput{Title: "moved", BookID: malloryBook.ID})
	assert.ErrorIs(t, err, books.ErrBookNotFound)
}

func TestRecipeService_DeleteRemovesRatingsAndTagLinks(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.alice)
	r, err := f.svc.Create(f.alice, &RecipeInput{Title: "r", BookID: b.ID, Rating: 2, Tags: []validation.TagRef{{TagName: name("t")}}, TagsPresent: true})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(f.alice, r.ID))

	var ratings, links, tags int64
	require.NoError(t, f.db.Model(&Rating{}).Count(&ratings).Error)
	require.NoError(t, f.db.Table(TagJoinTable).Count(&links).Error)
	require.NoError(t, f.db.Model(&Tag{}).Count(&tags).Error)
	assert.Zero(t, ratings)
	assert.Zero(t, links)
	assert.EqualValues(t, 1, tags, "tags themselves survive")
}

func TestRecipeService_DeleteRating(t *testing.T) {
	f := newFixture(t)
	r := f.recipe(t, f.alice, f.book(t, f.alice).ID, "r")

	_, err := f.svc.DeleteRating(f.alice, r.ID)
	assert.ErrorIs(t, err, ErrRatingNotFound)

	_, err = f.svc.Rate(f.alice, r.ID, 5)
	require.NoError(t, err)
	_, err = f.svc.DeleteRating(f.alice, r.ID)
	require.NoError(t, err)
	assert.Zero(t, f.average(t, r.ID))
}

func TestRecipeService_Search(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.alice)
	f.recipe(t, f.alice, b.ID, "r_1")
	r2, err := f.svc.Create(f.bob, &RecipeInput{Title: "Rote Grütze", BookID: b.ID, Rating: 5, Tags: []validation.TagRef{{TagName: name("dessert")}}, TagsPresent: true})
	require.NoError(t, err)
	f.recipe(t, f.mallory, f.book(t, f.mallory).ID, "r_1 of mallory")

	list, err := f.svc.Search(f.bob, SearchQuery{Text: "R_1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "r_1", list[0].Title)

	list, err = f.svc.Search(f.alice, SearchQuery{Tag: "dessert"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r2.ID, list[0].ID)

	list, err = f.svc.Search(f.alice, SearchQuery{MinRating: 4})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r2.ID, list[0].ID)

	list, err = f.svc.Search(f.alice, SearchQuery{Text: "%"})
	require.NoError(t, err)
	assert.Empty(t, list, "wildcards are matched literally")
}

func TestRecipeService_BookDeleteCascades(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.alice)
	r := f.recipe(t, f.alice, b.ID, "r")
	_, err := f.svc.Rate(f.bob, r.ID, 4)
	require.NoError(t, err)

	ids, err := f.books.RecipeIDs(f.alice, *b)
	require.NoError(t, err)
	assert.Equal(t, []uint{r.ID}, ids[b.ID])

	require.NoError(t, f.books.Delete(f.alice, b.ID))

	_, err = f.svc.Get(f.alice, r.ID)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
	var ratings int64
	require.NoError(t, f.db.Model(&Rating{}).Count(&ratings).Error)
	assert.Zero(t, ratings)
}

func TestRecipeService_Images(t *testing.T) {
	f := newFixture(t)
	r := f.recipe(t, f.alice, f.book(t, f.alice).ID, "r")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))))

	_, err := f.svc.SetImage(f.alice, r.ID, "test.gif", bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, media.ErrUnsupportedType)
	_, err = f.svc.SetImage(f.mallory, r.ID, "test.png", bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	first, err := f.svc.SetImage(f.alice, r.ID, "test.png", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, first.Image)
	oldName := *first.Image
	assert.FileExists(t, filepath.Join(f.dir, oldName))
	assert.FileExists(t, filepath.Join(f.dir, media.ThumbnailName(oldName)))
	stored, err := f.svc.Get(f.alice, r.ID)
	require.NoError(t, err)
	assert.Equal(t, oldName, *stored.Image)

	second, err := f.svc.SetImage(f.bob, r.ID, "again.png", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	newName := *second.Image
	assert.NotEqual(t, oldName, newName)
	_, err = os.Stat(filepath.Join(f.dir, oldName))
	assert.True(t, os.IsNotExist(err), "previous image removed")

	path, err := f.svc.ImageFile(f.bob, r.ID, media.ThumbnailName(newName))
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = f.svc.ImageFile(f.alice, r.ID, "../../etc/passwd")
	assert.ErrorIs(t, err, media.ErrInvalidName)
	_, err = f.svc.ImageFile(f.alice, r.ID, oldName)
	assert.ErrorIs(t, err, ErrImageNotFound)
	_, err = f.svc.ImageFile(f.mallory, r.ID, newName)
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	path, err = f.svc.SignedImageFile(f.alice.ID, r.ID, newName)
	require.NoError(t, err)
	assert.FileExists(t, path)
	_, err = f.svc.SignedImageFile(f.mallory.ID, r.ID, newName)
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	cleared, err := f.svc.DeleteImage(f.alice, r.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.Image)
	_, err = os.Stat(filepath.Join(f.dir, newName))
	assert.True(t, os.IsNotExist(err))
	stored, err = f.svc.Get(f.alice, r.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Image)

	again, err := f.svc.DeleteImage(f.alice, r.ID)
	require.NoError(t, err)
	assert.Nil(t, again.Image)
}

func TestRecipeService_SignedImageFollowsMembership(t *testing.T) {
	f := newFixture(t)
	r := f.recipe(t, f.alice, f.book(t, f.alice).ID, "r")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	withImage, err := f.svc.SetImage(f.alice, r.ID, "test.png", &buf)
	require.NoError(t, err)

	_, err = f.svc.SignedImageFile(f.bob.ID, r.ID, *withImage.Image)
	require.NoError(t, err)

	leaveGroup(t, f.db, f.bob)
	_, err = f.svc.SignedImageFile(f.bob.ID, r.ID, *withImage.Image)
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	_, err = f.svc.SignedImageFile(9999, r.ID, *withImage.Image)
	assert.ErrorIs(t, err, ErrRecipeNotFound)
}

func TestRecipeService_BookRecipeIDsFollowVisibility(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.alice)
	mine := f.recipe(t, f.alice, b.ID, "mine")
	theirs := f.recipe(t, f.bob, b.ID, "theirs")

	ids, err := f.books.RecipeIDs(f.alice, *b)
	require.NoError(t, err)
	assert.Equal(t, []uint{mine.ID, theirs.ID}, ids[b.ID])

	leaveGroup(t, f.db, f.bob)
	ids, err = f.books.RecipeIDs(f.alice, *b)
	require.NoError(t, err)
	assert.Equal(t, []uint{mine.ID}, ids[b.ID])

	ids, err = f.books.RecipeIDs(f.mallory, *b)
	require.NoError(t, err)
	assert.Empty(t, ids[b.ID])
}

func TestRating_RangeEnforcedByStore(t *testing.T) {
	f := newFixture(t)
	r := f.recipe(t, f.alice, f.book(t, f.alice).ID, "r")

	assert.Error(t, f.db.Create(&Rating{UserID: f.alice.ID, RecipeID: r.ID, Rating: 6}).Error)
	assert.Error(t, f.db.Create(&Rating{UserID: f.alice.ID, RecipeID: r.ID, Rating: 0}).Error)
	assert.NoError(t, f.db.Create(&Rating{UserID: f.alice.ID, RecipeID: r.ID, Rating: 5}).Error)
}

func leaveGroup(t *testing.T, db *gorm.DB, u *models.User) {
	t.Helper()
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).Update("user_group_id", nil).Error)
	u.UserGroupID = nil
}
