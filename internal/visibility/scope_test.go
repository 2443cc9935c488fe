package visibility

import (
	"testing"

	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type note struct {
	ID     uint
	UserID uint
}

func visibleOwners(t *testing.T, db *gorm.DB, user *models.User) []uint {
	t.Helper()
	var rows []note
	require.NoError(t, db.Scopes(For("notes", user)).Order("notes.id").Find(&rows).Error)
	owners := make([]uint, 0, len(rows))
	for _, r := range rows {
		owners = append(owners, r.UserID)
	}
	return owners
}

func TestFor(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg, &note{})

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	dave := testutil.CreateUser(t, db, "dave")
	testutil.JoinGroup(t, db, "kitchen", alice, bob)

	for _, u := range []*models.User{alice, bob, carol, dave} {
		require.NoError(t, db.Create(&note{UserID: u.ID}).Error)
	}

	assert.Equal(t, []uint{alice.ID, bob.ID}, visibleOwners(t, db, alice))
	assert.Equal(t, []uint{alice.ID, bob.ID}, visibleOwners(t, db, bob))
	assert.Equal(t, []uint{carol.ID}, visibleOwners(t, db, carol), "users without a group do not share with each other")
	assert.Equal(t, []uint{dave.ID}, visibleOwners(t, db, dave))
	assert.Empty(t, visibleOwners(t, db, nil))
}

func TestFor_LeavingGroupHidesRows(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg, &note{})

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	testutil.JoinGroup(t, db, "kitchen", alice, bob)
	require.NoError(t, db.Create(&note{UserID: bob.ID}).Error)
	require.Equal(t, []uint{bob.ID}, visibleOwners(t, db, alice))

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", bob.ID).Update("user_group_id", nil).Error)
	assert.Empty(t, visibleOwners(t, db, alice))
}
