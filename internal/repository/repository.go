// Package repository defines the storage interfaces the service layer
// programs against. The concrete implementation lives in
// repository/sqlite; tests substitute in-memory databases.
//
// Persisted state is deliberately primitive: one row per contract
// instance, a flat per-instance key-value store addressed by the
// enumerated key namespace below, and an append-only event log. All
// richer structure (manager sets, badge maps, the factory's scorer
// registry) is JSON encoded into state values by the service layer.
package repository

import (
	"context"

	"github.com/trustful/badge-registry/internal/model"
)

// State keys. Each contract kind reads and writes only its own slice of
// the namespace; "initialized", "creator" and "managers" are common to
// both factory and scorer instances.
const (
	KeyInitialized = "initialized"
	KeyCreator     = "creator"
	KeyManagers    = "managers"

	// factory
	KeyScorerCodeHash = "scorer_code_hash"
	KeyCreatedScorers = "created_scorers"

	// scorer
	KeyBadges      = "badges"
	KeyUsers       = "users"
	KeyName        = "name"
	KeyDescription = "description"
	KeyIcon        = "icon"
)

// Store is the storage surface visible to contract logic. Inside a
// transaction every method operates on the same underlying sql.Tx, so
// an error anywhere discards everything written through the Store.
type Store interface {
	// CreateInstance inserts a new contract instance row. Returns
	// apperror.AddressCollision if the address is already taken.
	CreateInstance(ctx context.Context, inst *model.Instance) error

	// GetInstance returns the instance at addr, or apperror.NotFound.
	GetInstance(ctx context.Context, addr model.Address) (*model.Instance, error)

	// SetInstanceCode replaces the code hash of an existing instance.
	// The instance's key-value state is untouched.
	SetInstanceCode(ctx context.Context, addr model.Address, code model.CodeHash) error

	// GetState reads one state value into out (a pointer), JSON
	// decoding it. The bool reports whether the key was present.
	GetState(ctx context.Context, addr model.Address, key string, out any) (bool, error)

	// SetState writes one state value, JSON encoding it. Existing
	// values are overwritten.
	SetState(ctx context.Context, addr model.Address, key string, value any) error

	// AppendEvent appends to the audit log, assigning ID and timestamp.
	AppendEvent(ctx context.Context, ev *model.Event) error

	// ListEvents returns an instance's events in emission order.
	ListEvents(ctx context.Context, addr model.Address) ([]model.Event, error)
}

// DB is a Store that can also open transactions. Service entry points
// run their whole mutation, including nested contract calls, inside
// one InTx so the ledger's all-or-nothing semantics hold.
type DB interface {
	Store

	// InTx runs fn inside a transaction. If fn returns an error the
	// transaction is rolled back and the error returned verbatim;
	// otherwise it is committed.
	InTx(ctx context.Context, fn func(Store) error) error

	Close() error
}
