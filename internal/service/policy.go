package service

import (
	"context"

	"github.com/trustful/badge-registry/internal/apperror"
	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/repository"
)

// role is the authorization level a mutating operation demands.
type role int

const (
	// roleCreator: only the address that initialized the instance.
	roleCreator role = iota
	// roleManager: any address currently in the manager set. The
	// creator is seeded into the set at initialization, so creator
	// access holds until the creator is explicitly removed.
	roleManager
	// roleManagerOrCreator: manager set membership or the creator
	// identity itself, regardless of manager set contents. Used by the
	// factory's manager administration.
	roleManagerOrCreator
	// roleSelf: the caller must be the subject of the operation.
	// Self-service user registration uses this.
	roleSelf
)

// authorize is the single authorization gate for every mutating
// operation. It checks the caller's authenticated identity against the
// instance's stored roles and returns apperror.Unauthorized on deny.
// No entry point performs its own ad-hoc role check.
//
// subject is only consulted for roleSelf.
func authorize(ctx context.Context, st repository.Store, instance, caller model.Address, required role, subject model.Address) error {
	if caller == "" {
		return apperror.Unauthorized("caller identity is required")
	}

	switch required {
	case roleSelf:
		if caller != subject {
			return apperror.Unauthorized("callers may only act on their own membership")
		}
		return nil

	case roleCreator:
		creator, err := creatorOf(ctx, st, instance)
		if err != nil {
			return err
		}
		if caller != creator {
			return apperror.Unauthorized("caller is not the creator")
		}
		return nil

	case roleManager, roleManagerOrCreator:
		managers, err := managersOf(ctx, st, instance)
		if err != nil {
			return err
		}
		if managers[caller] {
			return nil
		}
		if required == roleManagerOrCreator {
			creator, err := creatorOf(ctx, st, instance)
			if err != nil {
				return err
			}
			if caller == creator {
				return nil
			}
		}
		return apperror.Unauthorized("caller is not a manager")

	default:
		return apperror.Unauthorized("unknown role requirement")
	}
}
