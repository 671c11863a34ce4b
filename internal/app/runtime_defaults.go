package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults fills secrets that development setups usually omit
// and returns the keys it generated. A generated JWT secret lives only as
// long as the process, so sessions end on restart. Production deployments
// get nothing generated; Validate then reports the missing secret.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cfg.Production() {
		return nil, nil
	}

	var generated []string
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := generateHexKey(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated = append(generated, "auth.jwt.secret")
	}
	return generated, nil
}

func generateHexKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
