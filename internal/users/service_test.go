package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryUserRepository())
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "alice@example.com", "s3cretpass")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.True(t, u.IsActive)
	require.NotEqual(t, "s3cretpass", u.PasswordHash)
	require.False(t, u.CreatedAt.IsZero())

	got, err := svc.Authenticate(ctx, "alice", "s3cretpass")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong-password")
	require.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = svc.Authenticate(ctx, "nobody", "s3cretpass")
	require.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryUserRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, "ab", "ab@example.com", "longenough")
	require.ErrorIs(t, err, ErrInvalidUsername)
	_, err = svc.Register(ctx, "bad name", "x@example.com", "longenough")
	require.ErrorIs(t, err, ErrInvalidUsername)
	_, err = svc.Register(ctx, "bob", "not-an-email", "longenough")
	require.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.Register(ctx, "bob", "bob@example.com", "short")
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.Register(ctx, "bob", "bob@example.com", "longenough")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob", "other@example.com", "longenough")
	require.ErrorIs(t, err, ErrUserExists)
	_, err = svc.Register(ctx, "bobby", "bob@example.com", "longenough")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestListKeepsRegistrationOrderAndProfile(t *testing.T) {
	svc := NewService(NewMemoryUserRepository())
	ctx := context.Background()
	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := svc.Register(ctx, name, name+"@example.com", "password123")
		require.NoError(t, err)
	}
	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "carol", list[0].Username)
	require.Equal(t, "alice", list[1].Username)
	require.Equal(t, "bob", list[2].Username)

	p, err := svc.Profile(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", p.Username)
	require.Equal(t, "alice@example.com", p.Email)

	_, err = svc.Profile(ctx, "zed")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidUsername(t *testing.T) {
	require.True(t, ValidUsername("user_1-x"))
	require.False(t, ValidUsername("us"))
	require.False(t, ValidUsername("user!"))
	require.False(t, ValidUsername(""))
}
