package groups

import (
	"testing"

	"github.com/cookshelf/recipe-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupService_Create(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)
	svc := NewGroupService(db)

	alice := testutil.CreateUser(t, db, "alice")

	group, err := svc.Create(alice, "family")
	require.NoError(t, err)
	assert.Equal(t, "family", group.GroupName)
	assert.Equal(t, "alice", group.GroupAdmin.Username)
	require.Len(t, group.Users, 1)
	assert.Equal(t, alice.ID, group.Users[0].ID)
	require.NotNil(t, alice.UserGroupID)
	assert.Equal(t, group.ID, *alice.UserGroupID)

	_, err = svc.Create(alice, "second")
	assert.ErrorIs(t, err, ErrAlreadyInGroup)
}

func TestGroupService_GetHidesFromOutsiders(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)
	svc := NewGroupService(db)

	alice := testutil.CreateUser(t, db, "alice")
	mallory := testutil.CreateUser(t, db, "mallory")
	group := testutil.JoinGroup(t, db, "family", alice)

	_, err := svc.Get(mallory, group.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = svc.Get(alice, group.ID+100)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	got, err := svc.Get(alice, group.ID)
	require.NoError(t, err)
	assert.Equal(t, group.ID, got.ID)
}

func TestGroupService_AddMember(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)
	svc := NewGroupService(db)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	dave := testutil.CreateUser(t, db, "dave")
	group := testutil.JoinGroup(t, db, "family", alice)
	testutil.JoinGroup(t, db, "other", dave)

	_, err := svc.AddMember(alice, group.ID, alice.ID)
	assert.ErrorIs(t, err, ErrCannotAddSelf)

	_, err = svc.AddMember(alice, group.ID, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.AddMember(alice, group.ID, dave.ID)
	assert.ErrorIs(t, err, ErrAlreadyInGroup)

	_, err = svc.AddMember(bob, group.ID, carol.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound, "non-members cannot see the group")

	got, err := svc.AddMember(alice, group.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, got.Users, 2)
	assert.Equal(t, bob.ID, got.Users[1].ID)

	_, err = svc.AddMember(alice, group.ID, bob.ID)
	assert.ErrorIs(t, err, ErrAlreadyInGroup)

	bob = testutil.Reload(t, db, bob.ID)
	_, err = svc.AddMember(bob, group.ID, carol.ID)
	assert.ErrorIs(t, err, ErrNotGroupAdmin)
}

func TestGroupService_AddMemberByEmail(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)
	svc := NewGroupService(db)

	alice := testutil.CreateUser(t, db, "alice")
	testutil.CreateUser(t, db, "bob")
	group := testutil.JoinGroup(t, db, "family", alice)

	_, err := svc.AddMemberByEmail(alice, group.ID, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	got, err := svc.AddMemberByEmail(alice, group.ID, "bob@example.com")
	require.NoError(t, err)
	assert.Len(t, got.Users, 2)
}

func TestGroupService_RemoveMember(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)
	svc := NewGroupService(db)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	outsider := testutil.CreateUser(t, db, "outsider")
	group := testutil.JoinGroup(t, db, "family", alice, bob, carol)

	_, err := svc.RemoveMember(alice, group.ID, alice.ID)
	assert.ErrorIs(t, err, ErrAdminSelfRemoval)

	_, err = svc.RemoveMember(bob, group.ID, carol.ID)
	assert.ErrorIs(t, err, ErrNotGroupAdmin)

	_, err = svc.RemoveMember(alice, group.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrNotMember)

	got, err := svc.RemoveMember(alice, group.ID, carol.ID)
	require.NoError(t, err)
	assert.Len(t, got.Users, 2)
	assert.Nil(t, testutil.Reload(t, db, carol.ID).UserGroupID)

	_, err = svc.RemoveMember(bob, group.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, bob.UserGroupID)
	assert.Nil(t, testutil.Reload(t, db, bob.ID).UserGroupID)
}

func TestGroupService_Delete(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)
	svc := NewGroupService(db)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	group := testutil.JoinGroup(t, db, "family", alice, bob)

	assert.ErrorIs(t, svc.Delete(bob, group.ID), ErrNotGroupAdmin)

	require.NoError(t, svc.Delete(alice, group.ID))
	assert.Nil(t, alice.UserGroupID)
	assert.Nil(t, testutil.Reload(t, db, alice.ID).UserGroupID)
	assert.Nil(t, testutil.Reload(t, db, bob.ID).UserGroupID)

	_, err := svc.Create(testutil.Reload(t, db, bob.ID), "fresh start")
	assert.NoError(t, err, "former members may form a new group")
}
