package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nightporter/staffgate/pkg/jwtx"
)

// initSigner loads the Ed25519 signing key, or generates an ephemeral one
// when no key file is configured. Ephemeral keys mean every ID and access
// token dies with the process, which is fine for dev and wrong for prod.
func initSigner(cfg Config, logger *slog.Logger) (jwtx.Signer, error) {
	if cfg.SigningKeyFile == "" {
		signer, err := jwtx.NewEphemeralSignerEdDSA(cfg.SigningKeyID)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral signing key: %w", err)
		}
		logger.Warn("no signing key configured, using an ephemeral Ed25519 key",
			"kid", cfg.SigningKeyID)
		return signer, nil
	}

	pemKey, err := os.ReadFile(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read signing key %s: %w", cfg.SigningKeyFile, err)
	}

	signer, err := jwtx.NewSignerEdDSA(cfg.SigningKeyID, pemKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key %s: %w", cfg.SigningKeyFile, err)
	}

	logger.Info("signing key loaded", "kid", cfg.SigningKeyID, "alg", signer.Alg())
	return signer, nil
}
