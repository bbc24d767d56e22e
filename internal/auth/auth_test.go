package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosecore/backend/internal/errs"
	"github.com/dosecore/backend/internal/store"
)

func TestSessions_IssueAndVerifyRoundTrip(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)

	token, err := s.Issue("user_1")
	require.NoError(t, err)

	userID, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", userID)
}

func TestSessions_RejectsTamperedToken(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)
	token, err := s.Issue("user_1")
	require.NoError(t, err)

	_, err = NewSessions("different-secret", time.Hour).Verify(token)
	require.Error(t, err)
}

func TestAPIKey_GenerationThenImmediateUseAuthenticates(t *testing.T) {
	st, err := store.NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	plaintext, err := GenerateAPIKey("dosecore")
	require.NoError(t, err)

	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateAPIKey(&store.APIKey{
		UserID: "user_1", Name: "ci", KeyHash: HashAPIKey(plaintext),
		Active: true, ExpiresAt: now.Add(APIKeyTTL),
	}))

	key, err := VerifyAPIKey(st, plaintext, now)
	require.NoError(t, err)
	assert.Equal(t, "user_1", key.UserID)
}

func TestAPIKey_ExpiresAfterTTL(t *testing.T) {
	st, err := store.NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	plaintext, err := GenerateAPIKey("dosecore")
	require.NoError(t, err)

	issued := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateAPIKey(&store.APIKey{
		UserID: "user_1", Name: "ci", KeyHash: HashAPIKey(plaintext),
		Active: true, ExpiresAt: issued.Add(APIKeyTTL),
	}))

	almostExpired := issued.Add(13*24*time.Hour + 23*time.Hour)
	_, err = VerifyAPIKey(st, plaintext, almostExpired)
	require.NoError(t, err)

	expired := issued.Add(14*24*time.Hour + time.Second)
	_, err = VerifyAPIKey(st, plaintext, expired)
	require.Error(t, err)
	appErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.InvalidCredentials, appErr.Code)
}

func TestVerifyDevice_RejectsOfflineDevice(t *testing.T) {
	st, err := store.NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	d := &store.Device{Kind: store.DeviceDispenser, AuthTokenHash: HashDeviceToken("tok"), Status: store.DeviceOffline}
	require.NoError(t, st.CreateDevice(d))

	_, err = VerifyDevice(st, d.ID, "tok", "", time.Now())
	require.Error(t, err)
	appErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.DeviceOffline, appErr.Code)
}

func TestVerifyDevice_RejectsWrongKind(t *testing.T) {
	st, err := store.NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	d := &store.Device{Kind: store.DeviceBand, AuthTokenHash: HashDeviceToken("tok"), Status: store.DeviceOnline}
	require.NoError(t, st.CreateDevice(d))

	_, err = VerifyDevice(st, d.ID, "tok", store.DeviceDispenser, time.Now())
	require.Error(t, err)
	appErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.WrongDeviceKind, appErr.Code)
}

func TestDeviceLimiter_ThrottlesPerDevice(t *testing.T) {
	l := NewDeviceLimiter(60, 1)
	require.NoError(t, l.Allow("dev_1"))
	assert.Error(t, l.Allow("dev_1"))
	assert.NoError(t, l.Allow("dev_2"))
}
