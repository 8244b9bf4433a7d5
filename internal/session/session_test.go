package session

import (
	"errors"
	"testing"
	"time"

	"github.com/fugitivebreach/arrow-api/internal/ierr"
)

func TestMintAndParse(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.Mint("555", "carol")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "555" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "555")
	}
	if claims.Username != "carol" {
		t.Errorf("Username = %q, want %q", claims.Username, "carol")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("secret-a", time.Hour).Mint("555", "carol")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := NewManager("secret-b", time.Hour).Parse(token); !errors.Is(err, ierr.ErrInvalidToken) {
		t.Errorf("Parse with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	token, err := m.Mint("555", "carol")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ierr.ErrInvalidToken) {
		t.Errorf("Parse expired token = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.Parse(raw); !errors.Is(err, ierr.ErrInvalidToken) {
			t.Errorf("Parse(%q) = %v, want ErrInvalidToken", raw, err)
		}
	}
}
