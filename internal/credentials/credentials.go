// Package credentials resolves the marketing API key, decrypting it with a KMS keeper
// when it is stored as ciphertext.
package credentials

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"gocloud.dev/secrets"

	apperrors "github.com/allisson/klaviyo-relay/internal/errors"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// ErrAPIKeyMissing indicates neither a plaintext nor an encrypted API key is configured.
var ErrAPIKeyMissing = apperrors.Wrap(apperrors.ErrInvalidInput, "klaviyo api key is not configured")

// Keeper encrypts and decrypts small secrets with a KMS key. *secrets.Keeper implements it.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// OpenKeeper opens a keeper for keyURI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func OpenKeeper(ctx context.Context, keyURI string) (Keeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

// Source describes where the API key comes from.
type Source struct {
	Plaintext  string
	Ciphertext string
	KeyURI     string
}

// ResolveAPIKey returns the API key. A ciphertext takes precedence over the plaintext
// and requires a KMS key URI.
func ResolveAPIKey(ctx context.Context, src Source) (string, error) {
	if strings.TrimSpace(src.Ciphertext) == "" {
		if key := strings.TrimSpace(src.Plaintext); key != "" {
			return key, nil
		}
		return "", ErrAPIKeyMissing
	}

	if src.KeyURI == "" {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "KMS_KEY_URI is required to decrypt the api key")
	}

	keeper, err := OpenKeeper(ctx, src.KeyURI)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = keeper.Close()
	}()

	return DecryptAPIKey(ctx, keeper, src.Ciphertext)
}

// DecryptAPIKey decodes the base64 ciphertext and decrypts it with keeper.
func DecryptAPIKey(ctx context.Context, keeper Keeper, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("failed to decode api key ciphertext: %w", err)
	}

	plaintext, err := keeper.Decrypt(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt api key: %w", err)
	}

	key := strings.TrimSpace(string(plaintext))
	if key == "" {
		return "", ErrAPIKeyMissing
	}
	return key, nil
}

// EncryptAPIKey encrypts apiKey with keeper and returns the base64 ciphertext
// expected by KLAVIYO_API_KEY_CIPHERTEXT.
func EncryptAPIKey(ctx context.Context, keeper Keeper, apiKey string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", ErrAPIKeyMissing
	}

	ciphertext, err := keeper.Encrypt(ctx, []byte(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt api key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
