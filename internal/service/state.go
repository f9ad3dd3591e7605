package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/trustful/badge-registry/internal/apperror"
	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/repository"
)

// Typed accessors over the flat per-instance key-value store. Contract
// logic never touches raw keys directly; these helpers are the only
// place the enumerated namespace is read and written, so factory and
// scorer state stay byte-compatible with each other where shared
// (initialized, creator, managers).

func stateBool(ctx context.Context, st repository.Store, addr model.Address, key string) (bool, error) {
	var v bool
	found, err := st.GetState(ctx, addr, key, &v)
	if err != nil {
		return false, err
	}
	return found && v, nil
}

func stateString(ctx context.Context, st repository.Store, addr model.Address, key string) (string, error) {
	var v string
	if _, err := st.GetState(ctx, addr, key, &v); err != nil {
		return "", err
	}
	return v, nil
}

func isInitialized(ctx context.Context, st repository.Store, addr model.Address) (bool, error) {
	return stateBool(ctx, st, addr, repository.KeyInitialized)
}

// requireInitialized maps the uninitialized state to its domain error.
func requireInitialized(ctx context.Context, st repository.Store, addr model.Address) error {
	ok, err := isInitialized(ctx, st, addr)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotInitialized(string(addr))
	}
	return nil
}

func creatorOf(ctx context.Context, st repository.Store, addr model.Address) (model.Address, error) {
	var creator model.Address
	if _, err := st.GetState(ctx, addr, repository.KeyCreator, &creator); err != nil {
		return "", err
	}
	return creator, nil
}

func managersOf(ctx context.Context, st repository.Store, addr model.Address) (map[model.Address]bool, error) {
	managers := map[model.Address]bool{}
	if _, err := st.GetState(ctx, addr, repository.KeyManagers, &managers); err != nil {
		return nil, err
	}
	return managers, nil
}

func saveManagers(ctx context.Context, st repository.Store, addr model.Address, managers map[model.Address]bool) error {
	return st.SetState(ctx, addr, repository.KeyManagers, managers)
}

func usersOf(ctx context.Context, st repository.Store, addr model.Address) (map[model.Address]bool, error) {
	users := map[model.Address]bool{}
	if _, err := st.GetState(ctx, addr, repository.KeyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func saveUsers(ctx context.Context, st repository.Store, addr model.Address, users map[model.Address]bool) error {
	return st.SetState(ctx, addr, repository.KeyUsers, users)
}

// Badges persist as a slice (JSON objects can't key on a composite);
// callers work with the slice and index it themselves.
func badgesOf(ctx context.Context, st repository.Store, addr model.Address) ([]model.Badge, error) {
	var badges []model.Badge
	if _, err := st.GetState(ctx, addr, repository.KeyBadges, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

func saveBadges(ctx context.Context, st repository.Store, addr model.Address, badges []model.Badge) error {
	if badges == nil {
		badges = []model.Badge{}
	}
	return st.SetState(ctx, addr, repository.KeyBadges, badges)
}

func scorersOf(ctx context.Context, st repository.Store, addr model.Address) (map[model.Address]model.ScorerMetadata, error) {
	scorers := map[model.Address]model.ScorerMetadata{}
	if _, err := st.GetState(ctx, addr, repository.KeyCreatedScorers, &scorers); err != nil {
		return nil, err
	}
	return scorers, nil
}

func saveScorers(ctx context.Context, st repository.Store, addr model.Address, scorers map[model.Address]model.ScorerMetadata) error {
	return st.SetState(ctx, addr, repository.KeyCreatedScorers, scorers)
}

// instanceOfKind loads the instance at addr and verifies it runs code
// of the expected kind. A missing instance or a kind mismatch both
// surface as NotFound for the expected resource: a factory address is
// not a valid scorer and vice versa.
func instanceOfKind(ctx context.Context, st repository.Store, codes *CodeRegistry, addr model.Address, kind string) (*model.Instance, error) {
	inst, err := st.GetInstance(ctx, addr)
	if err != nil {
		return nil, err
	}
	code, ok := codes.Lookup(inst.CodeHash)
	if !ok || code.Kind != kind {
		return nil, apperror.NotFound(kind, string(addr))
	}
	return inst, nil
}

// eventData marshals event attributes. Attribute maps are built from
// known types; a marshal failure here is a programming error.
func eventData(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("service: encoding event data: %v", err))
	}
	return b
}
