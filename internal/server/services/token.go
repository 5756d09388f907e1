package services

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
	"github.com/ajeevsan/fileUpload-backend/internal/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// downloadClaims is the claim set of a download-capability token. The
// subject is the upload id; SealedKey carries the derived file key,
// AES-GCM-sealed under the server secret, so the raw passcode never
// appears in a URL while the final fetch can still decrypt.
type downloadClaims struct {
	jwt.RegisteredClaims
	SealedKey string `json:"sk"`
}

// sealingKey stretches the configured secret into a 32-byte AES key.
func sealingKey(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:]
}

// generateDownloadToken issues a signed HS256 token granting decryption of
// the given upload until expiresAt.
func generateDownloadToken(uploadID string, fileKey, secret []byte, expiresAt time.Time) (string, error) {
	sealed, err := cryptox.SealWithKey(sealingKey(secret), fileKey)
	if err != nil {
		return "", fmt.Errorf("sealing file key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, downloadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uploadID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SealedKey: base64.StdEncoding.EncodeToString(sealed),
	})

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// parseDownloadToken validates a capability token for the given upload id
// and returns the unsealed file key. Any signature, expiry, subject or
// unsealing failure is reported as common.ErrInvalidToken.
func parseDownloadToken(tokenString, uploadID string, secret []byte) ([]byte, error) {
	claims := &downloadClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject != uploadID {
		return nil, common.ErrInvalidToken
	}

	sealed, err := base64.StdEncoding.DecodeString(claims.SealedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	fileKey, err := cryptox.OpenWithKey(sealingKey(secret), sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	return fileKey, nil
}
