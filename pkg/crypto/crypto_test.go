package crypto

import (
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if !VerifyPassword(hash, "secret") {
		t.Fatal("expected password verification to succeed")
	}

	if VerifyPassword(hash, "incorrect") {
		t.Fatal("expected password verification to fail")
	}
}

func TestPasswordHashingSaltsEachDigest(t *testing.T) {
	first, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	second, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct digests for the same secret")
	}
}

func TestVerifyPasswordRejectsMalformedDigest(t *testing.T) {
	if VerifyPassword("not-a-bcrypt-digest", "secret") {
		t.Fatal("expected malformed digest to fail verification")
	}
	if VerifyPassword("", "secret") {
		t.Fatal("expected empty digest to fail verification")
	}
}

func TestHashPasswordRejectsEmptySecret(t *testing.T) {
	if _, err := HashPassword(""); err != ErrEmptySecret {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if len(token) == 0 {
		t.Fatal("expected token to be non-empty")
	}
}

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("code error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		if strings.Trim(code, "0123456789") != "" {
			t.Fatalf("expected only digits, got %q", code)
		}
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestHashTokenIsDeterministic(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("expected identical digests")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("expected different digests")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatal("expected hex encoded sha256 digest")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !ConstantTimeEqual("123456", "123456") {
		t.Fatal("expected equal strings to match")
	}
	if ConstantTimeEqual("123456", "123457") {
		t.Fatal("expected different strings to differ")
	}
	if ConstantTimeEqual("", "") {
		t.Fatal("expected empty strings to never match")
	}
}
