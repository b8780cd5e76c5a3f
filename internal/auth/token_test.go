package auth

import "testing"

func TestNewSessionToken(t *testing.T) {
	t.Parallel()

	token, hash, err := NewSessionToken()
	if err != nil {
		t.Fatalf("new session token: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("unexpected token length %d", len(token))
	}
	if hash != HashSessionToken(token) {
		t.Fatalf("hash does not match token")
	}

	other, _, err := NewSessionToken()
	if err != nil {
		t.Fatalf("new session token: %v", err)
	}
	if other == token {
		t.Fatalf("two tokens collided")
	}
}

func TestHashSessionTokenStable(t *testing.T) {
	t.Parallel()

	if HashSessionToken("abc") != HashSessionToken(" abc ") {
		t.Fatalf("expected surrounding whitespace to be ignored")
	}
	if HashSessionToken("abc") == HashSessionToken("abd") {
		t.Fatalf("distinct tokens hashed identically")
	}
}
