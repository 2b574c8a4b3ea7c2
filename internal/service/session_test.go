package service

import (
	"context"
	"testing"

	"rentacar/internal/domain"
	"rentacar/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func activeUser(t *testing.T) *models.User {
	return &models.User{
		ID:       1,
		Email:    "budi@example.com",
		Password: hashPassword(t, "secret123"),
		Name:     "Budi",
		Role:     models.RoleUser,
		IsActive: true,
	}
}

func TestSessionManager_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := new(MockStore)
		m, sessions := newTestSession(store)
		store.On("GetUserByEmail", ctx, "budi@example.com").Return(activeUser(t), nil)

		user, err := m.Login(ctx, "  Budi@Example.com ", "secret123")
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Empty(t, user.Password)
		assert.Equal(t, StateAuthenticated, m.State())
		assert.Empty(t, m.User().Password)

		record, err := sessions.GetSession(ctx, "sid-1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.False(t, record.Leaks())
		assert.Equal(t, int64(1), record.User.ID)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		store.On("GetUserByEmail", ctx, "nobody@example.com").Return(nil, nil)

		_, err := m.Login(ctx, "nobody@example.com", "secret123")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, StateAnonymous, m.State())
	})

	t.Run("WrongPasswordKeepsAnonymous", func(t *testing.T) {
		store := new(MockStore)
		m, sessions := newTestSession(store)
		store.On("GetUserByEmail", ctx, "budi@example.com").Return(activeUser(t), nil)

		_, err := m.Login(ctx, "budi@example.com", "wrong")
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
		assert.Equal(t, StateAnonymous, m.State())
		assert.Nil(t, m.User())

		record, err := sessions.GetSession(ctx, "sid-1")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("WrongPasswordKeepsPreviousIdentity", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		signIn(m, &models.User{ID: 9, Name: "Sari", IsActive: true})
		store.On("GetUserByEmail", ctx, "budi@example.com").Return(activeUser(t), nil)

		_, err := m.Login(ctx, "budi@example.com", "wrong")
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
		assert.Equal(t, StateAuthenticated, m.State())
		assert.Equal(t, int64(9), m.User().ID)
	})

	t.Run("InactiveAfterPasswordCheck", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		u := activeUser(t)
		u.IsActive = false
		store.On("GetUserByEmail", ctx, "budi@example.com").Return(u, nil)

		_, err := m.Login(ctx, "budi@example.com", "wrong")
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)

		_, err = m.Login(ctx, "budi@example.com", "secret123")
		assert.ErrorIs(t, err, domain.ErrInactiveAccount)
		assert.Equal(t, StateAnonymous, m.State())
	})

	t.Run("StoreFailure", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		store.On("GetUserByEmail", ctx, "budi@example.com").Return(nil, assert.AnError)

		_, err := m.Login(ctx, "budi@example.com", "secret123")
		assert.ErrorIs(t, err, domain.ErrPersistence)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("Throttled", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		store.On("GetUserByEmail", ctx, "budi@example.com").Return(activeUser(t), nil)

		for i := 0; i < testOptions.LoginAttempts; i++ {
			_, err := m.Login(ctx, "budi@example.com", "wrong")
			assert.ErrorIs(t, err, domain.ErrInvalidCredential)
		}
		_, err := m.Login(ctx, "budi@example.com", "secret123")
		assert.ErrorIs(t, err, domain.ErrTooManyAttempts)
		store.AssertNumberOfCalls(t, "GetUserByEmail", testOptions.LoginAttempts)
	})

	t.Run("SuccessResetsThrottle", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		store.On("GetUserByEmail", ctx, "budi@example.com").Return(activeUser(t), nil)

		for i := 0; i < testOptions.LoginAttempts-1; i++ {
			_, _ = m.Login(ctx, "budi@example.com", "wrong")
		}
		_, err := m.Login(ctx, "budi@example.com", "secret123")
		require.NoError(t, err)
		_, err = m.Login(ctx, "budi@example.com", "wrong")
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("MissingFields", func(t *testing.T) {
		m, _ := newTestSession(new(MockStore))
		_, err := m.Login(ctx, "", "x")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestSessionManager_Register(t *testing.T) {
	ctx := context.Background()
	profile := Profile{Email: "New@Example.com", Password: "secret123", Name: " Rina ", Phone: "0812"}

	t.Run("Success", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		store.On("GetUserByEmail", ctx, "new@example.com").Return(nil, nil).Once()
		store.On("CreateUser", ctx, mock.AnythingOfType("*models.User")).Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = 42
		}).Return(nil).Once()

		user, err := m.Register(ctx, profile)
		require.NoError(t, err)
		assert.Equal(t, int64(42), user.ID)
		assert.Equal(t, "new@example.com", user.Email)
		assert.Equal(t, "Rina", user.Name)
		assert.Equal(t, models.RoleUser, user.Role)
		assert.True(t, user.IsActive)
		assert.Equal(t, "https://i.pravatar.cc/100?u=new@example.com", user.Avatar)
		assert.Empty(t, user.Password)
		assert.Equal(t, StateAuthenticated, m.State())

		created := store.Calls[1].Arguments.Get(1).(*models.User)
		assert.NotEqual(t, "secret123", created.Password)
		assert.NotEmpty(t, created.Password)
	})

	t.Run("DuplicateEmailDoesNotInsert", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		store.On("GetUserByEmail", ctx, "new@example.com").Return(&models.User{ID: 5}, nil).Once()

		_, err := m.Register(ctx, profile)
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
		assert.Equal(t, StateAnonymous, m.State())
		store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("UniqueViolationOnInsert", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		store.On("GetUserByEmail", ctx, "new@example.com").Return(nil, nil).Once()
		store.On("CreateUser", ctx, mock.Anything).Return(domain.ErrDuplicateEmail).Once()

		_, err := m.Register(ctx, profile)
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
		assert.Equal(t, StateAnonymous, m.State())
	})

	t.Run("Validation", func(t *testing.T) {
		m, _ := newTestSession(new(MockStore))
		_, err := m.Register(ctx, Profile{Email: "not-an-email", Password: "123", Name: ""})
		require.ErrorIs(t, err, domain.ErrValidation)
		msg := domain.UserMessage(err)
		assert.Contains(t, msg, "email is not valid")
		assert.Contains(t, msg, "password must be at least 6 characters")
		assert.Contains(t, msg, "name is required")
	})
}

func TestSessionManager_Logout(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	m, sessions := newTestSession(store)
	store.On("GetUserByEmail", ctx, "budi@example.com").Return(activeUser(t), nil)
	var hooked int
	m.OnLogout(func() {
		assert.Nil(t, m.User())
		hooked++
	})

	_, err := m.Login(ctx, "budi@example.com", "secret123")
	require.NoError(t, err)

	m.Logout(ctx)
	assert.Equal(t, 1, hooked)
	assert.Equal(t, StateAnonymous, m.State())
	assert.Nil(t, m.User())
	record, err := sessions.GetSession(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, record)

	// logging out twice is harmless
	m.Logout(ctx)
	assert.Equal(t, StateAnonymous, m.State())
	assert.Equal(t, 2, hooked)
}

func TestSessionManager_UpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("Anonymous", func(t *testing.T) {
		m, _ := newTestSession(new(MockStore))
		name := "x"
		_, err := m.UpdateProfile(ctx, ProfilePatch{Name: &name})
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("RefreshesCacheWithoutCredential", func(t *testing.T) {
		store := new(MockStore)
		m, sessions := newTestSession(store)
		signIn(m, &models.User{ID: 1, Name: "Budi", IsActive: true})

		name := "Budi Santoso"
		password := "newsecret"
		stored := &models.User{ID: 1, Name: name, Password: "$2a$hash", IsActive: true}
		store.On("UpdateUser", ctx, int64(1), mock.MatchedBy(func(p models.UserPatch) bool {
			return p.Name != nil && *p.Name == name && p.Password != nil && *p.Password != password
		})).Return(stored, nil).Once()

		user, err := m.UpdateProfile(ctx, ProfilePatch{Name: &name, Password: &password})
		require.NoError(t, err)
		assert.Equal(t, name, user.Name)
		assert.Empty(t, user.Password)
		assert.Equal(t, name, m.User().Name)
		assert.Empty(t, m.User().Password)

		record, _ := sessions.GetSession(ctx, "sid-1")
		require.NotNil(t, record)
		assert.False(t, record.Leaks())
		assert.Equal(t, name, record.User.Name)
	})

	t.Run("FailureLeavesCache", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		signIn(m, &models.User{ID: 1, Name: "Budi", IsActive: true})
		name := "Other"
		store.On("UpdateUser", ctx, int64(1), mock.Anything).Return(nil, assert.AnError).Once()

		_, err := m.UpdateProfile(ctx, ProfilePatch{Name: &name})
		assert.ErrorIs(t, err, domain.ErrPersistence)
		assert.Equal(t, "Budi", m.User().Name)
	})

	t.Run("EmptyName", func(t *testing.T) {
		m, _ := newTestSession(new(MockStore))
		signIn(m, &models.User{ID: 1, Name: "Budi", IsActive: true})
		empty := "  "
		_, err := m.UpdateProfile(ctx, ProfilePatch{Name: &empty})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestSessionManager_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("Rehydrates", func(t *testing.T) {
		m, sessions := newTestSession(new(MockStore))
		require.NoError(t, sessions.SetSession(ctx, &models.Session{ID: "sid-1", User: &models.User{ID: 3, Name: "Ani"}}))

		require.NoError(t, m.Restore(ctx))
		assert.Equal(t, StateAuthenticated, m.State())
		assert.Equal(t, int64(3), m.User().ID)
	})

	t.Run("Missing", func(t *testing.T) {
		m, _ := newTestSession(new(MockStore))
		assert.ErrorIs(t, m.Restore(ctx), domain.ErrUnauthenticated)
		assert.Equal(t, StateAnonymous, m.State())
	})

	t.Run("LeakedCredentialIsDiscarded", func(t *testing.T) {
		m, sessions := newTestSession(new(MockStore))
		require.NoError(t, sessions.SetSession(ctx, &models.Session{ID: "sid-1", User: &models.User{ID: 3, Password: "$2a$hash"}}))

		assert.ErrorIs(t, m.Restore(ctx), domain.ErrUnauthenticated)
		assert.Equal(t, StateAnonymous, m.State())
		record, err := sessions.GetSession(ctx, "sid-1")
		require.NoError(t, err)
		assert.Nil(t, record)
	})
}

func TestSessionManager_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("PicksUpRoleChange", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		signIn(m, &models.User{ID: 1, Role: models.RoleUser, IsActive: true})
		store.On("GetUserByID", ctx, int64(1)).Return(&models.User{ID: 1, Role: models.RoleAdmin, IsActive: true, Password: "h"}, nil)

		admin, err := m.RequireAdmin(ctx)
		require.NoError(t, err)
		assert.True(t, admin.IsAdmin())
		assert.Empty(t, admin.Password)
		assert.True(t, m.User().IsAdmin())
	})

	t.Run("CachedAdminRoleIsNotTrusted", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		signIn(m, &models.User{ID: 1, Role: models.RoleAdmin, IsActive: true})
		store.On("GetUserByID", ctx, int64(1)).Return(&models.User{ID: 1, Role: models.RoleUser, IsActive: true}, nil)

		_, err := m.RequireAdmin(ctx)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("DeletedUserEndsSession", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		signIn(m, &models.User{ID: 1, IsActive: true})
		store.On("GetUserByID", ctx, int64(1)).Return(nil, domain.NotFound("user 1 not found"))

		_, err := m.Verify(ctx)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		assert.Equal(t, StateAnonymous, m.State())
	})

	t.Run("DeactivatedUserEndsSession", func(t *testing.T) {
		store := new(MockStore)
		m, _ := newTestSession(store)
		signIn(m, &models.User{ID: 1, IsActive: true})
		store.On("GetUserByID", ctx, int64(1)).Return(&models.User{ID: 1, IsActive: false}, nil)

		_, err := m.Verify(ctx)
		assert.ErrorIs(t, err, domain.ErrInactiveAccount)
		assert.Equal(t, StateAnonymous, m.State())
	})

	t.Run("Anonymous", func(t *testing.T) {
		m, _ := newTestSession(new(MockStore))
		_, err := m.RequireAdmin(ctx)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "anonymous", StateAnonymous.String())
	assert.Equal(t, "authenticating", StateAuthenticating.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "unknown", SessionState(9).String())
}
