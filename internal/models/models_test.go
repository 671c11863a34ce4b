package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	base2 := BaseModel{ID: "fixed"}
	require.NoError(t, base2.BeforeCreate(nil))
	require.Equal(t, "fixed", base2.ID)
}

func TestUserBeforeCreateNormalisesEmail(t *testing.T) {
	user := &User{Email: "  Ann@Example.COM "}
	require.NoError(t, user.BeforeCreate(nil))
	require.Equal(t, "ann@example.com", user.Email)
	require.NotEmpty(t, user.ID)
}

func TestPendingUserBeforeCreateNormalisesEmail(t *testing.T) {
	pending := &PendingUser{Email: "A@X.com"}
	require.NoError(t, pending.BeforeCreate(nil))
	require.Equal(t, "a@x.com", pending.Email)
	require.NotEmpty(t, pending.ID)
}

func TestUserLockAndPassword(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	user := &User{}
	require.False(t, user.HasPassword())
	require.False(t, user.IsLocked(now))

	until := now.Add(time.Minute)
	user.LockedUntil = &until
	user.Password = "digest"
	require.True(t, user.HasPassword())
	require.True(t, user.IsLocked(now))
	require.False(t, user.IsLocked(until))
}

func TestPendingUserExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pending := &PendingUser{CodeExpiresAt: now.Add(10 * time.Minute)}
	require.False(t, pending.Expired(now))
	require.False(t, pending.Expired(now.Add(9*time.Minute+59*time.Second)))
	require.True(t, pending.Expired(now.Add(10*time.Minute)))
}

func TestPasswordResetTokenUsable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	token := &PasswordResetToken{ExpiresAt: now.Add(time.Hour)}
	require.True(t, token.Usable(now))
	require.False(t, token.Usable(now.Add(time.Hour)))

	used := now
	token.UsedAt = &used
	require.False(t, token.Usable(now))
}
