package service

import (
	"context"
	"testing"

	"rentacar/internal/config"
	"rentacar/internal/domain"
	"rentacar/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var notAdmin = mockVerifier{err: domain.Forbidden("administrator access required")}

func TestAdminService_Locations(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	s := NewAdminService(store, testLogger())

	store.On("GetLocations", ctx).Return([]*models.Location{{ID: 1, Name: "Bandung"}}, nil)
	locs, err := s.Locations(ctx)
	require.NoError(t, err)
	assert.Len(t, locs, 1)

	store.On("CreateLocation", ctx, mock.AnythingOfType("*models.Location")).Return(nil)
	loc := &models.Location{Name: "  Jakarta ", City: " Jakarta "}
	require.NoError(t, s.CreateLocation(ctx, adminOK, loc))
	assert.Equal(t, "Jakarta", loc.Name)
	assert.Equal(t, "Jakarta", loc.City)

	assert.ErrorIs(t, s.CreateLocation(ctx, adminOK, &models.Location{}), domain.ErrValidation)
	assert.ErrorIs(t, s.CreateLocation(ctx, notAdmin, &models.Location{Name: "x"}), domain.ErrForbidden)

	store.On("DeleteLocation", ctx, int64(5)).Return(domain.NotFound("location 5 not found"))
	assert.ErrorIs(t, s.DeleteLocation(ctx, adminOK, 5), domain.ErrNotFound)
}

func TestAdminService_Settings(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	s := NewAdminService(store, testLogger())

	store.On("GetSettings", ctx).Return(&models.Settings{SiteName: "RentaCar"}, nil)
	st, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "RentaCar", st.SiteName)

	store.On("UpdateSettings", ctx, mock.Anything).Return(nil)
	require.NoError(t, s.UpdateSettings(ctx, adminOK, &models.Settings{DriverFeePerDay: 175000, ContactEmail: "cs@rentacar.id"}))

	assert.ErrorIs(t, s.UpdateSettings(ctx, adminOK, &models.Settings{DriverFeePerDay: -1}), domain.ErrValidation)
	assert.ErrorIs(t, s.UpdateSettings(ctx, adminOK, &models.Settings{ContactEmail: "nope"}), domain.ErrValidation)
	assert.ErrorIs(t, s.UpdateSettings(ctx, notAdmin, &models.Settings{}), domain.ErrForbidden)
	store.AssertNumberOfCalls(t, "UpdateSettings", 1)
}

func TestUserService_ListRedacts(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	s := NewUserService(store, testLogger())
	store.On("GetAllUsers", ctx).Return([]*models.User{{ID: 1, Password: "hash"}, {ID: 2, Password: "hash"}}, nil)

	users, err := s.GetAllUsers(ctx, adminOK)
	require.NoError(t, err)
	for _, u := range users {
		assert.Empty(t, u.Password)
	}

	_, err = s.GetAllUsers(ctx, notAdmin)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	s := NewUserService(store, testLogger())

	inactive := false
	store.On("UpdateUser", ctx, int64(5), mock.MatchedBy(func(p models.UserPatch) bool {
		return p.IsActive != nil && !*p.IsActive
	})).Return(&models.User{ID: 5, IsActive: false, Password: "hash"}, nil)

	user, err := s.UpdateUser(ctx, adminOK, 5, UserAdminPatch{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Empty(t, user.Password)

	// administrator id is 2
	_, err = s.UpdateUser(ctx, adminOK, 2, UserAdminPatch{IsActive: &inactive})
	assert.ErrorIs(t, err, domain.ErrValidation)
	role := models.RoleUser
	_, err = s.UpdateUser(ctx, adminOK, 2, UserAdminPatch{Role: &role})
	assert.ErrorIs(t, err, domain.ErrValidation)
	bogus := models.Role("root")
	_, err = s.UpdateUser(ctx, adminOK, 5, UserAdminPatch{Role: &bogus})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	s := NewUserService(store, testLogger())
	store.On("DeleteUser", ctx, int64(5)).Return(nil)

	require.NoError(t, s.DeleteUser(ctx, adminOK, 5))
	assert.ErrorIs(t, s.DeleteUser(ctx, adminOK, 2), domain.ErrValidation)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := config.AdminConfig{Email: "Admin@RentaCar.id", Password: "supersecret", Name: ""}

	t.Run("Creates", func(t *testing.T) {
		store := new(MockStore)
		s := NewUserService(store, testLogger())
		store.On("GetUserByEmail", ctx, "admin@rentacar.id").Return(nil, nil)
		store.On("CreateUser", ctx, mock.AnythingOfType("*models.User")).Return(nil)

		require.NoError(t, s.EnsureAdmin(ctx, cfg))
		created := store.Calls[1].Arguments.Get(1).(*models.User)
		assert.Equal(t, models.RoleAdmin, created.Role)
		assert.Equal(t, "Administrator", created.Name)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("supersecret")))
	})

	t.Run("Exists", func(t *testing.T) {
		store := new(MockStore)
		s := NewUserService(store, testLogger())
		store.On("GetUserByEmail", ctx, "admin@rentacar.id").Return(&models.User{ID: 1, Role: models.RoleAdmin}, nil)

		require.NoError(t, s.EnsureAdmin(ctx, cfg))
		store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("Disabled", func(t *testing.T) {
		s := NewUserService(new(MockStore), testLogger())
		assert.NoError(t, s.EnsureAdmin(ctx, config.AdminConfig{}))
	})
}
