package service

import (
	"context"
	"testing"

	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) UserService {
	t.Helper()
	env := newTestEnv(t)
	return NewUserService(repository.NewUserRepository(env.db))
}

func TestCreateUserAndLogin(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Phone:    "555-0100",
		Password: "hunter22",
		Role:     "manager",
	})
	require.NoError(t, err)
	assert.Equal(t, "manager", user.Role)

	tokens, err := svc.Login(ctx, LoginUserRequest{Email: "jdoe@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Token)
	assert.NotEmpty(t, tokens.RefreshToken)

	_, err = svc.Login(ctx, LoginUserRequest{Email: "jdoe@example.com", Password: "wrong"})
	assert.EqualError(t, err, "invalid email or password")
}

func TestCreateUserRejectsInvalidRole(t *testing.T) {
	svc := newUserService(t)
	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Phone:    "555-0100",
		Password: "hunter22",
		Role:     "superuser",
	})
	assert.EqualError(t, err, "invalid role: must be admin, manager, or staff")
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	req := CreateUserRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Phone:    "555-0100",
		Password: "hunter22",
		Role:     "staff",
	}
	_, err := svc.CreateUser(ctx, req)
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, req)
	assert.EqualError(t, err, "username already exists")

	req.Username = "jdoe2"
	_, err = svc.CreateUser(ctx, req)
	assert.EqualError(t, err, "email already exists")
}

func TestBootstrapAdmin(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	req := CreateUserRequest{
		Username: "root",
		Email:    "root@example.com",
		Phone:    "555-0100",
		Password: "hunter22",
		Role:     "staff", // ignored, setup always creates an admin
	}
	user, err := svc.BootstrapAdmin(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)

	// One-shot: any existing user closes the door.
	req.Username = "root2"
	req.Email = "root2@example.com"
	_, err = svc.BootstrapAdmin(ctx, req)
	assert.EqualError(t, err, "setup already completed")
}

func TestRefreshTokenRotation(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Phone:    "555-0100",
		Password: "hunter22",
		Role:     "admin",
	})
	require.NoError(t, err)

	tokens, err := svc.Login(ctx, LoginUserRequest{Email: "jdoe@example.com", Password: "hunter22"})
	require.NoError(t, err)

	rotated, err := svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// The presented token is single-use.
	_, err = svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.EqualError(t, err, "invalid refresh token")

	_, err = svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: "no-such-token"})
	assert.EqualError(t, err, "invalid refresh token")
}
