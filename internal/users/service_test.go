package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSignupAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	u, err := svc.Signup(ctx, "alice", " Alice@Example.com ", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.Equal(t, "alice@example.com", u.Email)
	require.NotEqual(t, "s3cret", u.PasswordHash)
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	require.NoError(t, err)
	require.Equal(t, 10, cost)

	got, err := svc.Authenticate(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "bob@example.com", "s3cret")
	require.ErrorIs(t, err, ErrUserNotFound)

	byID, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)
}

func TestSignupValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	_, err := svc.Signup(ctx, "", "a@b.c", "pw")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Signup(ctx, "a", "", "pw")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Signup(ctx, "a", "a@b.c", "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Signup(ctx, "a", "a@b.c", "pw")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "a2", "A@B.C", "pw")
	require.ErrorIs(t, err, ErrEmailTaken)
}
