// Package service contains the contract logic: the generic deployer,
// the scorer factory, and the scorer registry itself, plus the code
// registry and the shared authorization policy.
//
// Every mutating entry point follows the same discipline inside one
// transaction: authorize against the caller's authenticated identity,
// validate input invariants, mutate the instance's state, emit the
// event. Nested contract calls (factory → deployer → scorer
// initializer) share the enclosing transaction, so a failure anywhere
// unwinds every write in the chain.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/trustful/badge-registry/internal/apperror"
	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/repository"
)

// DeployerService is the generic atomic deploy-and-initialize executor.
// It owns no domain state: it derives an address, creates the instance
// row, and runs the initializer, all in one unit of work, so no
// deployed-but-uninitialized instance is ever observable.
type DeployerService struct {
	db     repository.DB
	codes  *CodeRegistry
	logger *slog.Logger
}

func NewDeployerService(db repository.DB, codes *CodeRegistry, logger *slog.Logger) *DeployerService {
	return &DeployerService{
		db:     db,
		codes:  codes,
		logger: logger,
	}
}

// Deploy creates a new contract instance and runs its initializer as
// one indivisible operation. Returns the new instance's address and the
// initializer's result.
//
// The address is derived deterministically from (caller, code, salt);
// reusing the triple fails with AddressCollision. Any initializer
// error rolls the instantiation back and surfaces as
// InitializationFailed wrapping the cause.
func (s *DeployerService) Deploy(ctx context.Context, caller model.Address, code model.CodeHash, salt model.Salt, initFn string, initArgs json.RawMessage) (model.Address, json.RawMessage, error) {
	var (
		addr   model.Address
		result json.RawMessage
	)
	err := s.db.InTx(ctx, func(st repository.Store) error {
		var err error
		addr, result, err = s.DeployInTx(ctx, st, caller, code, salt, initFn, initArgs)
		return err
	})
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("contract deployed",
		slog.String("address", string(addr)),
		slog.String("code", string(code)),
		slog.String("deployer", string(caller)),
	)
	return addr, result, nil
}

// DeployInTx is Deploy running inside an enclosing transaction. The
// factory's create_scorer uses it so that its registry write and the
// nested deploy commit or roll back together.
func (s *DeployerService) DeployInTx(ctx context.Context, st repository.Store, caller model.Address, code model.CodeHash, salt model.Salt, initFn string, initArgs json.RawMessage) (model.Address, json.RawMessage, error) {
	if caller == "" {
		return "", nil, apperror.Unauthorized("deployer identity is required")
	}
	if salt == "" {
		return "", nil, apperror.ValidationFailed("salt", "salt is required")
	}

	impl, ok := s.codes.Lookup(code)
	if !ok {
		return "", nil, apperror.NotFound("code", string(code))
	}

	addr := model.DeriveContractAddress(caller, code, salt)
	inst := &model.Instance{
		Address:  addr,
		CodeHash: code,
		Deployer: caller,
		Salt:     salt,
	}
	if err := st.CreateInstance(ctx, inst); err != nil {
		return "", nil, err
	}

	if initFn != InitName {
		return "", nil, apperror.InitializationFailed(fmt.Errorf("unknown init function %q", initFn))
	}

	result, err := impl.Init(ctx, st, addr, caller, initArgs)
	if err != nil {
		// The enclosing transaction discards the instance row and
		// everything the initializer wrote before failing.
		return "", nil, apperror.InitializationFailed(err)
	}

	return addr, result, nil
}
