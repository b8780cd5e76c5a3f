package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("changeme123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !VerifyPassword("changeme123", hash) {
		t.Fatalf("expected password verification to succeed")
	}
	if VerifyPassword("wrong-password", hash) {
		t.Fatalf("did not expect wrong password to verify")
	}
}

func TestNormalizeUsername(t *testing.T) {
	t.Parallel()

	if got := NormalizeUsername(" Admin "); got != "admin" {
		t.Fatalf("unexpected normalized username: %q", got)
	}
}

func TestHashPasswordRejectsWeakInput(t *testing.T) {
	t.Parallel()

	if _, err := HashPassword(""); err == nil {
		t.Fatalf("expected empty password to be rejected")
	}
	if _, err := HashPassword("short"); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := HashPassword(string(long)); err == nil {
		t.Fatalf("expected overlong password to be rejected")
	}
}
