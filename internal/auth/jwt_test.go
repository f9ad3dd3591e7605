package auth

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-at-least-16-chars"

func TestNewTokenServiceShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestGenerateAndValidate(t *testing.T) {
	s, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	addr := strings.Repeat("ab", 32)
	token, err := s.Generate(addr)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got, err := s.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got != addr {
		t.Errorf("subject = %q, want %q", got, addr)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	s, _ := NewTokenService(testSecret)

	token, err := s.GenerateWithDuration(strings.Repeat("ab", 32), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration: %v", err)
	}

	if _, err := s.Validate(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidateWrongSecret(t *testing.T) {
	s1, _ := NewTokenService(testSecret)
	s2, _ := NewTokenService("another-secret-with-16-chars")

	token, err := s1.Generate(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := s2.Validate(token); err == nil {
		t.Fatal("expected error for token signed with a different secret")
	}
}

func TestValidateGarbage(t *testing.T) {
	s, _ := NewTokenService(testSecret)

	for _, token := range []string{"", "not.a.jwt", "a.b"} {
		if _, err := s.Validate(token); err == nil {
			t.Errorf("Validate(%q): expected error", token)
		}
	}
}
