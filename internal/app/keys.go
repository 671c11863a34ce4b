package app

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// minJWTSecretBytes is the HS256 key size required outside development.
const minJWTSecretBytes = 32

// DecodeKey decodes a secret written as hex or base64. Anything else is taken
// as raw bytes.
func DecodeKey(value string) ([]byte, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, fmt.Errorf("key value is empty")
	}

	if len(v)%2 == 0 {
		if decoded, err := hex.DecodeString(v); err == nil {
			return decoded, nil
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if decoded, err := enc.DecodeString(v); err == nil {
			return decoded, nil
		}
	}
	return []byte(v), nil
}

// KeyByteLength returns the entropy-bearing length of a secret in bytes.
func KeyByteLength(value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("key value is empty")
	}
	decoded, err := DecodeKey(value)
	if err != nil {
		return 0, err
	}
	return len(decoded), nil
}
