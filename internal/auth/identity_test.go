package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/trustful/badge-registry/internal/model"
)

func testKeypair(t *testing.T) (model.Address, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	return model.Address(hex.EncodeToString(pub)), priv
}

func TestChallengeRoundTrip(t *testing.T) {
	store := NewChallengeStore()
	addr, priv := testKeypair(t)

	nonce, err := store.Issue(addr)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	sig := hex.EncodeToString(ed25519.Sign(priv, []byte(nonce)))
	if err := store.Verify(addr, nonce, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Nonces are one-shot.
	if err := store.Verify(addr, nonce, sig); err == nil {
		t.Fatal("expected error replaying a consumed nonce")
	}
}

func TestChallengeWrongKey(t *testing.T) {
	store := NewChallengeStore()
	addr, _ := testKeypair(t)
	_, otherPriv := testKeypair(t)

	nonce, err := store.Issue(addr)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	sig := hex.EncodeToString(ed25519.Sign(otherPriv, []byte(nonce)))
	if err := store.Verify(addr, nonce, sig); err == nil {
		t.Fatal("expected error for signature from a different key")
	}
}

func TestChallengeWrongAddress(t *testing.T) {
	store := NewChallengeStore()
	addr, priv := testKeypair(t)
	other, _ := testKeypair(t)

	nonce, err := store.Issue(addr)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	sig := hex.EncodeToString(ed25519.Sign(priv, []byte(nonce)))
	if err := store.Verify(other, nonce, sig); err == nil {
		t.Fatal("expected error redeeming another address's nonce")
	}
}

func TestChallengeExpiry(t *testing.T) {
	store := NewChallengeStore()
	addr, priv := testKeypair(t)

	nonce, err := store.Issue(addr)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	store.now = func() time.Time { return time.Now().Add(challengeTTL + time.Second) }

	sig := hex.EncodeToString(ed25519.Sign(priv, []byte(nonce)))
	if err := store.Verify(addr, nonce, sig); err == nil {
		t.Fatal("expected error for expired nonce")
	}
}

func TestIssueBadAddress(t *testing.T) {
	store := NewChallengeStore()
	if _, err := store.Issue("not-hex"); err == nil {
		t.Fatal("expected error for malformed address")
	}
}
