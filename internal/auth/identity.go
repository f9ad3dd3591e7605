package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trustful/badge-registry/internal/model"
)

// challengeTTL bounds how long a nonce stays redeemable.
const challengeTTL = 5 * time.Minute

var (
	ErrUnknownChallenge = errors.New("auth: unknown or expired challenge")
	ErrBadSignature     = errors.New("auth: signature verification failed")
	ErrBadAddress       = errors.New("auth: address is not a valid public key")
)

type challenge struct {
	address model.Address
	expires time.Time
}

// ChallengeStore issues one-shot nonces tied to an address and verifies
// the ed25519 signature a client produces over them. An address is the
// hex encoding of the client's ed25519 public key, so verification
// needs no key registry.
type ChallengeStore struct {
	mu      sync.Mutex
	pending map[string]challenge
	now     func() time.Time
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		pending: map[string]challenge{},
		now:     time.Now,
	}
}

// Issue creates a nonce the given address must sign to authenticate.
func (s *ChallengeStore) Issue(address model.Address) (string, error) {
	if _, err := publicKey(address); err != nil {
		return "", err
	}

	nonce := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.pending[nonce] = challenge{
		address: address,
		expires: s.now().Add(challengeTTL),
	}
	return nonce, nil
}

// Verify checks sigHex against the nonce's address and consumes the
// nonce. A nonce is redeemable once, within its TTL, only by the
// address it was issued to.
func (s *ChallengeStore) Verify(address model.Address, nonce, sigHex string) error {
	s.mu.Lock()
	ch, ok := s.pending[nonce]
	if ok {
		delete(s.pending, nonce)
	}
	s.mu.Unlock()

	if !ok || s.now().After(ch.expires) || ch.address != address {
		return ErrUnknownChallenge
	}

	pub, err := publicKey(address)
	if err != nil {
		return err
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || !ed25519.Verify(pub, []byte(nonce), sig) {
		return ErrBadSignature
	}
	return nil
}

// sweepLocked drops expired nonces. Called with s.mu held.
func (s *ChallengeStore) sweepLocked() {
	now := s.now()
	for nonce, ch := range s.pending {
		if now.After(ch.expires) {
			delete(s.pending, nonce)
		}
	}
}

func publicKey(address model.Address) (ed25519.PublicKey, error) {
	if !address.Valid() {
		return nil, ErrBadAddress
	}
	raw, err := hex.DecodeString(string(address))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrBadAddress
	}
	return ed25519.PublicKey(raw), nil
}
