package services

import (
	"context"
	"testing"

	"socialconnect/internal/models"
	"socialconnect/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:     "alice@example.com",
		Username:  "alice_1",
		Password:  "secret1",
		FirstName: "Alice",
		LastName:  "Liddell",
	}
}

func TestRegisterCreatesInactiveUser(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	user, err := s.users.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.True(t, utils.CheckPasswordHash("secret1", user.Password))
	assert.Equal(t, "secret1", s.identity.passwords["alice@example.com"])

	var profile models.Profile
	require.NoError(t, s.db.Where("user_id = ?", user.ID).First(&profile).Error)
	assert.True(t, profile.ProfileVisibility)

	_, err = s.users.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, ErrConflict)

	dup := validRegistration()
	dup.Email = "other@example.com"
	_, err = s.users.Register(ctx, dup)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServices(t)

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "nope" }},
		{"short username", func(in *RegisterInput) { in.Username = "ab" }},
		{"username symbols", func(in *RegisterInput) { in.Username = "bad-name!" }},
		{"short password", func(in *RegisterInput) { in.Password = "123" }},
		{"missing first name", func(in *RegisterInput) { in.FirstName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mutate(&in)
			_, err := s.users.Register(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRegisterProviderFailure(t *testing.T) {
	s := newTestServices(t)
	s.identity.signUpErr = Upstream("Supabase signup failed", assert.AnError)

	_, err := s.users.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, ErrUpstream)

	var n int64
	require.NoError(t, s.db.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n, "no local user without a provider account")
}

func TestVerifyActivatesUser(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user, err := s.users.Register(ctx, validRegistration())
	require.NoError(t, err)

	s.identity.tokens["pending"] = Identity{Email: user.Email, Confirmed: false}
	got, err := s.users.Verify(ctx, "pending")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	s.identity.tokens["confirmed"] = Identity{Email: user.Email, Confirmed: true}
	got, err = s.users.Verify(ctx, "confirmed")
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	s.identity.tokens["stranger"] = Identity{Email: "ghost@example.com", Confirmed: true}
	_, err = s.users.Verify(ctx, "stranger")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.users.Verify(ctx, "bogus")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogin(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user, err := s.users.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, err = s.users.Login(ctx, "alice_1", "secret1")
	assert.ErrorIs(t, err, ErrBadLogin, "inactive users cannot log in")

	require.NoError(t, s.db.Model(user).Update("is_active", true).Error)

	_, err = s.users.Login(ctx, "alice_1", "wrong")
	assert.ErrorIs(t, err, ErrBadLogin)

	res, err := s.users.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "token-alice@example.com", res.AccessToken)
	assert.NotNil(t, res.User.LastLogin)

	authed, err := s.users.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	s.identity.sessionErr = Upstream("Supabase login failed", assert.AnError)
	res, err = s.users.Login(ctx, "alice_1", "secret1")
	require.NoError(t, err, "provider outage does not block login")
	assert.Empty(t, res.AccessToken)

	_, err = s.users.Login(ctx, "", "secret1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthenticateRejectsInactive(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	u := createUser(t, s.db, "alice")
	s.identity.tokens["t"] = Identity{Email: u.Email, Confirmed: true}

	_, err := s.users.Authenticate(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, s.db.Model(u).Update("is_active", false).Error)
	_, err = s.users.Authenticate(ctx, "t")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.users.ActiveByID(ctx, u.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPasswordFlows(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	u := createUser(t, s.db, "alice")
	hash, err := utils.HashPassword("oldpass")
	require.NoError(t, err)
	require.NoError(t, s.db.Model(u).Update("password", hash).Error)
	u.Password = hash
	s.identity.tokens["t"] = Identity{Email: u.Email, Confirmed: true}

	assert.ErrorIs(t, s.users.ChangePassword(ctx, u, "t", "wrong", "newpass"), ErrValidation)
	require.NoError(t, s.users.ChangePassword(ctx, u, "t", "oldpass", "newpass"))
	assert.Equal(t, "newpass", s.identity.passwords[u.Email])

	require.NoError(t, s.users.ConfirmPasswordReset(ctx, "t", "resetpass"))
	var reloaded models.User
	require.NoError(t, s.db.First(&reloaded, u.ID).Error)
	assert.True(t, utils.CheckPasswordHash("resetpass", reloaded.Password))

	assert.ErrorIs(t, s.users.ConfirmPasswordReset(ctx, "bogus", "resetpass"), ErrUnauthorized)
	assert.ErrorIs(t, s.users.RequestPasswordReset(ctx, ""), ErrValidation)
	assert.NoError(t, s.users.RequestPasswordReset(ctx, u.Email))
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServices(t)
	require.NoError(t, s.users.Logout(context.Background(), ""))
	require.NoError(t, s.users.Logout(context.Background(), "t"))
	assert.Equal(t, []string{"t"}, s.identity.signOuts)
}

func TestSearchUsers(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	createUser(t, s.db, "alice")
	createUser(t, s.db, "alfred")
	bob := createUser(t, s.db, "bob")
	require.NoError(t, s.db.Model(bob).Update("last_name", "Alvarez").Error)

	users, err := s.users.SearchUsers(ctx, "AL")
	require.NoError(t, err)
	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"alfred", "alice", "bob"}, names)

	users, err = s.users.SearchUsers(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = s.users.SearchUsers(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, users, "wildcards are matched literally")
}
