package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trustful/badge-registry/internal/apperror"
	"github.com/trustful/badge-registry/internal/model"
)

// CreateInstance inserts a new contract instance row.
//
// The existence check and the insert run on the same querier. Inside
// InTx that makes the check-then-insert race-free; outside a
// transaction the host environment serializes invocations anyway, so a
// duplicate triple surfaces as AddressCollision, never as a silent
// overwrite.
func (s *store) CreateInstance(ctx context.Context, inst *model.Instance) error {
	var exists int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM instances WHERE address = ?`,
		string(inst.Address),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking instance %s: %w", inst.Address, err)
	}
	if exists > 0 {
		return apperror.AddressCollision(string(inst.Address))
	}

	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO instances (address, code_hash, deployer, salt, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(inst.Address),
		string(inst.CodeHash),
		string(inst.Deployer),
		string(inst.Salt),
		inst.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating instance %s: %w", inst.Address, err)
	}
	return nil
}

// GetInstance returns the instance at addr, or apperror.NotFound.
func (s *store) GetInstance(ctx context.Context, addr model.Address) (*model.Instance, error) {
	var inst model.Instance
	err := s.q.QueryRowContext(ctx,
		`SELECT address, code_hash, deployer, salt, created_at
		 FROM instances
		 WHERE address = ?`,
		string(addr),
	).Scan(
		&inst.Address,
		&inst.CodeHash,
		&inst.Deployer,
		&inst.Salt,
		&inst.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("instance", string(addr))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting instance %s: %w", addr, err)
	}
	return &inst, nil
}

// SetInstanceCode swaps an instance's code hash in place. State rows
// are untouched; this is the storage half of the upgrade operation.
func (s *store) SetInstanceCode(ctx context.Context, addr model.Address, code model.CodeHash) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE instances SET code_hash = ? WHERE address = ?`,
		string(code), string(addr),
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating instance code %s: %w", addr, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected for %s: %w", addr, err)
	}
	if affected == 0 {
		return apperror.NotFound("instance", string(addr))
	}
	return nil
}
