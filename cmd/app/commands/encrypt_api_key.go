package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/allisson/klaviyo-relay/internal/credentials"
)

// KeeperOpener opens a KMS keeper for a key URI.
type KeeperOpener func(ctx context.Context, keyURI string) (credentials.Keeper, error)

// RunEncryptAPIKey encrypts the Klaviyo API key with the KMS key at keyURI and prints the
// environment variables the relay reads it from. The API key is read from in when empty.
//
// For local development use keyURI="base64key://<32-byte-base64-key>". Never use it in production.
func RunEncryptAPIKey(
	ctx context.Context,
	openKeeper KeeperOpener,
	logger *slog.Logger,
	stdio IOTuple,
	apiKey string,
	keyURI string,
) error {
	if keyURI == "" {
		return fmt.Errorf(
			"--kms-key-uri is required\n\nFor local development, use:\n  --kms-key-uri=\"base64key://<32-byte-base64-key>\"\n\nFor production, use a cloud KMS:\n  --kms-key-uri=\"gcpkms://projects/.../cryptoKeys/...\"\n  --kms-key-uri=\"awskms:///alias/...\"\n  --kms-key-uri=\"azurekeyvault://...\"\n  --kms-key-uri=\"hashivault://...\"",
		)
	}

	if apiKey == "" {
		var err error
		apiKey, err = readLine(stdio.Reader)
		if err != nil {
			return fmt.Errorf("failed to read api key: %w", err)
		}
	}

	keeper, err := openKeeper(ctx, keyURI)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	ciphertext, err := credentials.EncryptAPIKey(ctx, keeper, apiKey)
	if err != nil {
		return err
	}

	logger.Info("api key encrypted", slog.String("kms_key_uri", keyURI))

	_, err = fmt.Fprintf(stdio.Writer,
		"# Copy these environment variables to your .env file or secrets manager\n"+
			"KMS_KEY_URI=\"%s\"\nKLAVIYO_API_KEY_CIPHERTEXT=\"%s\"\n",
		keyURI, ciphertext,
	)
	return err
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
