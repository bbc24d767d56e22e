package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/auth"
	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/config"
	"github.com/dosecore/backend/internal/dose"
	"github.com/dosecore/backend/internal/metrics"
	"github.com/dosecore/backend/internal/store"
	"github.com/dosecore/backend/internal/sweeper"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{ReadTimeout: 5, WriteTimeout: 5},
		Security:   config.SecurityConfig{JWTSecret: "test-secret", SessionTTLHours: 1, AllowOrigins: []string{"*"}, DeviceEventRPM: 100, DeviceEventBurst: 20},
		Sweeper:    config.SweeperConfig{IntervalSeconds: 3600},
		Correlator: config.CorrelatorConfig{ToleranceMinutes: 5},
	}
}

func setupServer(t *testing.T) *Server {
	st, err := store.NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fake := clock.NewFake(time.Date(2026, 7, 29, 8, 0, 0, 0, time.UTC))
	m := metrics.New()
	engine := dose.New(st, fake, m)
	sw := sweeper.New(st, fake, engine, zap.NewNop(), time.Hour, m)

	return New(testConfig(), st, sw, zap.NewNop(), m)
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	rec.Code = resp.StatusCode

	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return rec, out
}

func TestHealth_ReportsOKWhenSweeperRunning(t *testing.T) {
	s := setupServer(t)
	require.NoError(t, s.sweeper.Start(context.Background()))
	t.Cleanup(s.sweeper.Stop)

	rec, body := doJSON(t, s, "GET", "/health", nil, nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterLoginAndCreateMedication(t *testing.T) {
	s := setupServer(t)

	_, reg := doJSON(t, s, "POST", "/api/register", registerRequest{
		Email: "a@example.com", Password: "hunter2hunter2", DisplayName: "A",
	}, nil)
	token, _ := reg["token"].(string)
	require.NotEmpty(t, token)

	user := reg["user"].(map[string]any)
	userID := user["id"].(string)

	rec, medResp := doJSON(t, s, "POST", fmt.Sprintf("/api/medications?user_id=%s", userID), medicationRequest{
		Name:         "Metformin",
		Times:        []string{"08:00", "20:00"},
		DurationDays: 2,
		StartDate:    "2026-07-29",
	}, nil)
	require.Equal(t, 201, rec.Code)
	medID := medResp["id"].(string)
	require.NotEmpty(t, medID)

	rec, doses := doJSON(t, s, "GET", "/api/doses/today", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, 200, rec.Code)
	assert.NotNil(t, doses["doses"])
}

func TestCaregiverDashboard_IncludesDosesAndInventory(t *testing.T) {
	s := setupServer(t)

	_, reg := doJSON(t, s, "POST", "/api/register", registerRequest{
		Email: "b@example.com", Password: "hunter2hunter2", DisplayName: "B",
	}, nil)
	token := reg["token"].(string)
	headers := map[string]string{"Authorization": "Bearer " + token}

	rec, body := doJSON(t, s, "GET", "/api/caregivers/dashboard", nil, headers)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, body, "caregivers")
	assert.Contains(t, body, "recent_doses")
	assert.Contains(t, body, "inventory")
}

func TestUserAuthMiddleware_RejectsMissingHeader(t *testing.T) {
	s := setupServer(t)
	rec, body := doJSON(t, s, "GET", "/api/doses/today", nil, nil)
	assert.Equal(t, 401, rec.Code)
	assert.Equal(t, "missing-credentials", body["error"])
}

func TestDeviceAuthMiddleware_RejectsUnknownDevice(t *testing.T) {
	s := setupServer(t)
	rec, body := doJSON(t, s, "POST", "/api/devices/dispenser/event", nil, map[string]string{
		"X-Device-ID": "dev_missing", "X-Device-Auth-Token": "whatever",
	})
	assert.Equal(t, 401, rec.Code)
	assert.Equal(t, "invalid-credentials", body["error"])
}

// TestDeviceEventRoute_BypassesUserAuthMiddleware guards against
// userAuthMiddleware's path-prefix match on /api swallowing device routes
// registered on the same group: a correctly-credentialed device using only
// the device-mode headers (no Authorization bearer token) must reach the
// correlator, not get rejected for a missing user session.
func TestDeviceEventRoute_BypassesUserAuthMiddleware(t *testing.T) {
	s := setupServer(t)
	d := &store.Device{Kind: store.DeviceDispenser, AuthTokenHash: auth.HashDeviceToken("tok"), Status: store.DeviceOnline}
	require.NoError(t, s.store.CreateDevice(d))

	rec, body := doJSON(t, s, "POST", "/api/devices/dispenser/event", map[string]any{
		"event_type":  "button_press",
		"device_id":   d.ID,
		"timestamp":   time.Date(2026, 7, 29, 8, 0, 0, 0, time.UTC),
		"medication_id": "med_1",
	}, map[string]string{
		"X-Device-ID": d.ID, "X-Device-Auth-Token": "tok", "X-Event-ID": "evt_1",
	})
	assert.Equal(t, 202, rec.Code, "expected device event accepted, got body %v", body)
}
