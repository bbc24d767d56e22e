package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dosecore/backend/internal/errs"
	"github.com/dosecore/backend/internal/store"
)

// HashDeviceToken returns the one-way hash of a device's opaque auth
// token, matching the storage shape of API keys rather than persisting
// plaintext device secrets.
func HashDeviceToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// VerifyDevice looks up the device by id and validates its auth token and
// liveness, refusing unknown, mismatched, or offline devices per spec
// section 4.5's device mode. On success it marks the device online with a
// fresh last-seen instant and returns it.
func VerifyDevice(st *store.Store, deviceID, token string, kind store.DeviceKind, now time.Time) (*store.Device, error) {
	d, err := st.GetDevice(deviceID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.New(errs.InvalidCredentials, "unknown device")
		}
		return nil, errs.Wrap(errs.Internal, "failed to look up device", err)
	}
	if d.AuthTokenHash != HashDeviceToken(token) {
		return nil, errs.New(errs.InvalidCredentials, "device token mismatch")
	}
	if d.Status == store.DeviceOffline {
		return nil, errs.New(errs.DeviceOffline, "device is offline")
	}
	if kind != "" && d.Kind != kind {
		return nil, errs.New(errs.WrongDeviceKind, "endpoint requires "+string(kind))
	}

	if err := st.TouchDeviceSeen(deviceID, now); err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to update device liveness", err)
	}
	return d, nil
}
