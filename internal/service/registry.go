package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/repository"
)

// Contract kinds known to this registry.
const (
	KindScorerFactory = "scorer_factory"
	KindScorer        = "scorer"
)

// InitName is the only initializer entry point a contract exposes. The
// deploy wire shape still carries an init function name for
// compatibility with the ledger calling convention; anything else is
// rejected.
const InitName = "initialize"

// InitFunc runs a contract's initializer against the freshly created
// instance `self`, inside the deploying transaction. caller is the
// authenticated identity that authorized the deployment. The returned
// raw message is the initializer's result, surfaced by Deploy.
type InitFunc func(ctx context.Context, st repository.Store, self, caller model.Address, args json.RawMessage) (json.RawMessage, error)

// ContractCode is one registered contract implementation, the
// in-process stand-in for uploaded bytecode.
type ContractCode struct {
	Kind    string
	Version uint32
	Init    InitFunc
}

// CodeRegistry maps bytecode identities to contract implementations.
// Registration is the analog of uploading WASM to the host ledger and
// getting back its hash; upgrade targets must be registered here first.
type CodeRegistry struct {
	mu    sync.RWMutex
	codes map[model.CodeHash]ContractCode
}

func NewCodeRegistry() *CodeRegistry {
	return &CodeRegistry{codes: map[model.CodeHash]ContractCode{}}
}

// Register adds an implementation and returns its derived identity.
// Registering the same kind+version twice yields the same hash and
// overwrites the entry.
func (r *CodeRegistry) Register(kind string, version uint32, init InitFunc) model.CodeHash {
	hash := model.DeriveCodeHash(kind, version)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[hash] = ContractCode{Kind: kind, Version: version, Init: init}
	return hash
}

// Lookup resolves a bytecode identity.
func (r *CodeRegistry) Lookup(hash model.CodeHash) (ContractCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.codes[hash]
	return code, ok
}

// RegisterBuiltin registers the factory and scorer contracts shipped
// with this service and returns their code hashes. Called once at
// wiring time; tests call it against their own registries.
func RegisterBuiltin(reg *CodeRegistry) (factoryHash, scorerHash model.CodeHash) {
	factoryHash = reg.Register(KindScorerFactory, 1, factoryInitialize)
	scorerHash = reg.Register(KindScorer, 1, scorerInitialize)
	return factoryHash, scorerHash
}
