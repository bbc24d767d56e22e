package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strconv"
	"time"

	"github.com/dosecore/backend/internal/errs"
	"github.com/dosecore/backend/internal/store"
)

const apiKeyRandomChars = 14
const apiKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// APIKeyTTL is the default API-key lifetime from spec section 3: 14 days
// from issuance.
const APIKeyTTL = 14 * 24 * time.Hour

// GenerateAPIKey returns a plaintext key of the form
// "<prefix>_<base36-time>_<14-char-random>", per spec section 4.6. The
// plaintext is returned exactly once; only HashAPIKey's output is ever
// persisted.
func GenerateAPIKey(prefix string) (string, error) {
	timePart := strconv.FormatInt(time.Now().UnixNano(), 36)

	b := make([]byte, apiKeyRandomChars)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(apiKeyAlphabet))))
		if err != nil {
			return "", errs.Wrap(errs.Internal, "failed to generate api key", err)
		}
		b[i] = apiKeyAlphabet[n.Int64()]
	}

	return prefix + "_" + timePart + "_" + string(b), nil
}

// HashAPIKey returns the one-way hash of a plaintext API key. SHA-256 is
// used here rather than a third-party password-hashing library because
// the example corpus carries none (no bcrypt/argon2/scrypt dependency
// appears in any retrieved repo); see DESIGN.md.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// VerifyAPIKey looks up the hash of plaintext and validates it is active
// and unexpired, per spec section 8's property 5 and section 4.5's
// API-key mode.
func VerifyAPIKey(st *store.Store, plaintext string, now time.Time) (*store.APIKey, error) {
	key, err := st.GetAPIKeyByHash(HashAPIKey(plaintext))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.New(errs.InvalidCredentials, "invalid api key")
		}
		return nil, errs.Wrap(errs.Internal, "failed to look up api key", err)
	}
	if !key.Active {
		return nil, errs.New(errs.InvalidCredentials, "api key revoked")
	}
	if !now.Before(key.ExpiresAt) {
		return nil, errs.New(errs.InvalidCredentials, "api key expired")
	}
	_ = st.TouchAPIKeyUsed(key.ID, now)
	return key, nil
}
