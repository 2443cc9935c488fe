package books

import (
	"testing"

	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRecipes struct {
	purged  []uint
	removed []string
}

func (f *fakeRecipes) RecipeIDs(db *gorm.DB, user *models.User, bookIDs []uint) (map[uint][]uint, error) {
	return map[uint][]uint{}, nil
}

func (f *fakeRecipes) PurgeBook(tx *gorm.DB, bookID uint) ([]string, error) {
	f.purged = append(f.purged, bookID)
	return []string{"img.png"}, nil
}

func (f *fakeRecipes) RemoveImages(names []string) {
	f.removed = append(f.removed, names...)
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func newService(t *testing.T) (*BookService, *gorm.DB, *fakeRecipes) {
	t.Helper()
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg, &Book{})
	fake := &fakeRecipes{}
	return NewBookService(db, fake), db, fake
}

func TestParseBookType(t *testing.T) {
	kind, err := ParseBookType("magazine")
	require.NoError(t, err)
	assert.Equal(t, Magazine, kind)

	for _, raw := range []string{"", "Cookbook", "something stupid"} {
		_, err := ParseBookType(raw)
		assert.ErrorIs(t, err, ErrInvalidBookType, raw)
	}
}

func TestBookService_CreateKeepsVariantFields(t *testing.T) {
	svc, _, _ := newService(t)
	alice := &models.User{ID: 1}

	cb, err := svc.Create(alice, Cookbook, &BookRequest{Title: "t1", Year: intPtr(2000), Author: strPtr("a b"), Issue: strPtr("ignored")})
	require.NoError(t, err)
	assert.Equal(t, Cookbook, cb.Type)
	assert.Equal(t, "a b", *cb.Author)
	assert.Nil(t, cb.Issue)

	mag, err := svc.Create(alice, Magazine, &BookRequest{Title: "t2", Issue: strPtr("15 - 5")})
	require.NoError(t, err)
	assert.Equal(t, "15 - 5", *mag.Issue)
	assert.Nil(t, mag.Author)
}

func TestBookService_Visibility(t *testing.T) {
	svc, db, _ := newService(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	mallory := testutil.CreateUser(t, db, "mallory")
	testutil.JoinGroup(t, db, "family", alice, bob)

	book, err := svc.Create(alice, Cookbook, &BookRequest{Title: "shared"})
	require.NoError(t, err)

	got, err := svc.Get(bob, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)

	_, err = svc.Get(mallory, book.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)
	_, err = svc.Get(alice, book.ID+100)
	assert.ErrorIs(t, err, ErrBookNotFound)

	list, err := svc.List(mallory)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.List(bob)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBookService_UpdateRejectsTypeChange(t *testing.T) {
	svc, db, _ := newService(t)
	alice := testutil.CreateUser(t, db, "alice")

	book, err := svc.Create(alice, Cookbook, &BookRequest{Title: "t1", Author: strPtr("a b")})
	require.NoError(t, err)

	_, err = svc.Update(alice, book.ID, Magazine, &BookRequest{Title: "t1"})
	assert.ErrorIs(t, err, ErrBookTypeImmutable)

	updated, err := svc.Update(alice, book.ID, Cookbook, &BookRequest{Title: "t2", Year: intPtr(2020), Author: strPtr("c d")})
	require.NoError(t, err)
	assert.Equal(t, "t2", updated.Title)
	assert.Equal(t, 2020, *updated.Year)
	assert.Equal(t, "c d", *updated.Author)
}

func TestBookService_Delete(t *testing.T) {
	svc, db, fake := newService(t)
	alice := testutil.CreateUser(t, db, "alice")
	mallory := testutil.CreateUser(t, db, "mallory")

	book, err := svc.Create(alice, Cookbook, &BookRequest{Title: "t1"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(mallory, book.ID), ErrBookNotFound)
	assert.Empty(t, fake.purged)

	require.NoError(t, svc.Delete(alice, book.ID))
	assert.Equal(t, []uint{book.ID}, fake.purged)
	assert.Equal(t, []string{"img.png"}, fake.removed)

	var count int64
	require.NoError(t, db.Model(&Book{}).Count(&count).Error)
	assert.Zero(t, count)
}
