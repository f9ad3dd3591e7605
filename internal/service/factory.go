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

// factoryInitArgs is the wire shape of the factory initializer.
type factoryInitArgs struct {
	Creator        model.Address  `json:"creator"`
	ScorerCodeHash model.CodeHash `json:"scorerCodeHash"`
}

// factoryInitialize seeds a freshly deployed factory: the creator
// becomes the sole initial manager and the canonical scorer bytecode
// identity is pinned. One-way: a second call fails with
// AlreadyInitialized and changes nothing.
func factoryInitialize(ctx context.Context, st repository.Store, self, caller model.Address, args json.RawMessage) (json.RawMessage, error) {
	var in factoryInitArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, apperror.ValidationFailed("initArgs", fmt.Sprintf("malformed factory init args: %v", err))
	}

	initialized, err := isInitialized(ctx, st, self)
	if err != nil {
		return nil, err
	}
	if initialized {
		return nil, apperror.AlreadyInitialized(string(self))
	}

	if !in.Creator.Valid() {
		return nil, apperror.ValidationFailed("creator", "creator address is malformed")
	}
	if caller != in.Creator {
		return nil, apperror.Unauthorized("factory initialization must be authorized by its creator")
	}
	if !in.ScorerCodeHash.Valid() {
		return nil, apperror.ValidationFailed("scorerCodeHash", "scorer code hash is malformed")
	}

	if err := st.SetState(ctx, self, repository.KeyCreator, in.Creator); err != nil {
		return nil, err
	}
	if err := saveManagers(ctx, st, self, map[model.Address]bool{in.Creator: true}); err != nil {
		return nil, err
	}
	if err := st.SetState(ctx, self, repository.KeyScorerCodeHash, in.ScorerCodeHash); err != nil {
		return nil, err
	}
	if err := saveScorers(ctx, st, self, map[model.Address]model.ScorerMetadata{}); err != nil {
		return nil, err
	}
	if err := st.SetState(ctx, self, repository.KeyInitialized, true); err != nil {
		return nil, err
	}
	return nil, nil
}

// FactoryService exposes the scorer-factory entry points. A factory
// holds the canonical scorer bytecode identity, a manager set, and a
// registry of every scorer it created, keyed by address.
type FactoryService struct {
	db       repository.DB
	codes    *CodeRegistry
	deployer *DeployerService
	logger   *slog.Logger
}

func NewFactoryService(db repository.DB, codes *CodeRegistry, deployer *DeployerService, logger *slog.Logger) *FactoryService {
	return &FactoryService{
		db:       db,
		codes:    codes,
		deployer: deployer,
		logger:   logger,
	}
}

// CreateScorer deploys and initializes a new scorer through the generic
// deployer, then records (address → metadata) in the factory registry.
// The caller must be a registered factory manager.
//
// The whole chain (registry write, instance row, scorer initializer)
// runs in one transaction: on any failure nothing is recorded and no
// instance is observable at the derived address.
func (s *FactoryService) CreateScorer(ctx context.Context, factory, caller model.Address, salt model.Salt, initFn string, initArgs json.RawMessage) (model.Address, error) {
	var addr model.Address
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, factory, KindScorerFactory); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, factory); err != nil {
			return err
		}
		if err := authorize(ctx, st, factory, caller, roleManager, ""); err != nil {
			return err
		}

		// The scorer's declared metadata is recorded from its own init
		// args; malformed args fail here, before anything is deployed.
		var scorerArgs scorerInitArgs
		if err := json.Unmarshal(initArgs, &scorerArgs); err != nil {
			return apperror.ValidationFailed("initArgs", fmt.Sprintf("malformed scorer init args: %v", err))
		}

		var scorerCode model.CodeHash
		found, err := st.GetState(ctx, factory, repository.KeyScorerCodeHash, &scorerCode)
		if err != nil {
			return err
		}
		if !found {
			return apperror.NotInitialized(string(factory))
		}

		deployed, _, err := s.deployer.DeployInTx(ctx, st, caller, scorerCode, salt, initFn, initArgs)
		if err != nil {
			return err
		}

		scorers, err := scorersOf(ctx, st, factory)
		if err != nil {
			return err
		}
		scorers[deployed] = model.ScorerMetadata{
			Name:        scorerArgs.Name,
			Description: scorerArgs.Description,
			Icon:        scorerArgs.Icon,
		}
		if err := saveScorers(ctx, st, factory, scorers); err != nil {
			return err
		}

		addr = deployed
		return st.AppendEvent(ctx, &model.Event{
			Instance: factory,
			Topic:    model.TopicScorer,
			Action:   model.ActionCreate,
			Data: eventData(map[string]any{
				"deployer": caller,
				"address":  deployed,
			}),
		})
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("scorer created",
		slog.String("factory", string(factory)),
		slog.String("scorer", string(addr)),
		slog.String("deployer", string(caller)),
	)
	return addr, nil
}

// RemoveScorer removes a scorer's registry entry. The scorer instance
// itself is untouched and remains independently reachable.
func (s *FactoryService) RemoveScorer(ctx context.Context, factory, caller, scorer model.Address) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, factory, KindScorerFactory); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, factory); err != nil {
			return err
		}
		if err := authorize(ctx, st, factory, caller, roleManager, ""); err != nil {
			return err
		}

		scorers, err := scorersOf(ctx, st, factory)
		if err != nil {
			return err
		}
		if _, ok := scorers[scorer]; !ok {
			return apperror.NotFound("scorer", string(scorer))
		}
		delete(scorers, scorer)
		if err := saveScorers(ctx, st, factory, scorers); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: factory,
			Topic:    model.TopicScorer,
			Action:   model.ActionRemove,
			Data: eventData(map[string]any{
				"manager": caller,
				"address": scorer,
			}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("scorer removed from registry",
		slog.String("factory", string(factory)),
		slog.String("scorer", string(scorer)),
	)
	return nil
}

// AddManager adds an address to the factory's manager set. The caller
// must be the factory creator or an existing manager.
func (s *FactoryService) AddManager(ctx context.Context, factory, caller, manager model.Address) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, factory, KindScorerFactory); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, factory); err != nil {
			return err
		}
		if err := authorize(ctx, st, factory, caller, roleManagerOrCreator, ""); err != nil {
			return err
		}
		if !manager.Valid() {
			return apperror.ValidationFailed("manager", "manager address is malformed")
		}

		managers, err := managersOf(ctx, st, factory)
		if err != nil {
			return err
		}
		managers[manager] = true
		if err := saveManagers(ctx, st, factory, managers); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: factory,
			Topic:    model.TopicManager,
			Action:   model.ActionAdd,
			Data: eventData(map[string]any{
				"caller":  caller,
				"manager": manager,
			}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("factory manager added",
		slog.String("factory", string(factory)),
		slog.String("manager", string(manager)),
	)
	return nil
}

// RemoveManager removes an address from the factory's manager set.
// Removing an address that is not a manager fails with NotFound.
func (s *FactoryService) RemoveManager(ctx context.Context, factory, caller, manager model.Address) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, factory, KindScorerFactory); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, factory); err != nil {
			return err
		}
		if err := authorize(ctx, st, factory, caller, roleManagerOrCreator, ""); err != nil {
			return err
		}

		managers, err := managersOf(ctx, st, factory)
		if err != nil {
			return err
		}
		if !managers[manager] {
			return apperror.NotFound("manager", string(manager))
		}
		delete(managers, manager)
		if err := saveManagers(ctx, st, factory, managers); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: factory,
			Topic:    model.TopicManager,
			Action:   model.ActionRemove,
			Data: eventData(map[string]any{
				"caller":  caller,
				"manager": manager,
			}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("factory manager removed",
		slog.String("factory", string(factory)),
		slog.String("manager", string(manager)),
	)
	return nil
}

// GetScorers returns the registry of scorers created by this factory.
func (s *FactoryService) GetScorers(ctx context.Context, factory model.Address) (map[model.Address]model.ScorerMetadata, error) {
	if _, err := instanceOfKind(ctx, s.db, s.codes, factory, KindScorerFactory); err != nil {
		return nil, err
	}
	return scorersOf(ctx, s.db, factory)
}

// FactoryInfo is the read-model for a factory instance.
type FactoryInfo struct {
	Address        model.Address  `json:"address"`
	Initialized    bool           `json:"initialized"`
	Creator        model.Address  `json:"creator,omitempty"`
	ScorerCodeHash model.CodeHash `json:"scorerCodeHash,omitempty"`
}

// Describe returns a factory's initialization state, creator and the
// scorer code hash it deploys from.
func (s *FactoryService) Describe(ctx context.Context, factory model.Address) (FactoryInfo, error) {
	if _, err := instanceOfKind(ctx, s.db, s.codes, factory, KindScorerFactory); err != nil {
		return FactoryInfo{}, err
	}

	info := FactoryInfo{Address: factory}
	var err error
	if info.Initialized, err = isInitialized(ctx, s.db, factory); err != nil {
		return FactoryInfo{}, err
	}
	if info.Creator, err = creatorOf(ctx, s.db, factory); err != nil {
		return FactoryInfo{}, err
	}
	if _, err := s.db.GetState(ctx, factory, repository.KeyScorerCodeHash, &info.ScorerCodeHash); err != nil {
		return FactoryInfo{}, err
	}
	return info, nil
}

// IsInitialized reports whether the factory's one-way initialization
// has happened.
func (s *FactoryService) IsInitialized(ctx context.Context, factory model.Address) (bool, error) {
	if _, err := instanceOfKind(ctx, s.db, s.codes, factory, KindScorerFactory); err != nil {
		return false, err
	}
	return isInitialized(ctx, s.db, factory)
}

// IsFactoryCreator reports whether addr initialized this factory.
func (s *FactoryService) IsFactoryCreator(ctx context.Context, factory, addr model.Address) (bool, error) {
	if _, err := instanceOfKind(ctx, s.db, s.codes, factory, KindScorerFactory); err != nil {
		return false, err
	}
	creator, err := creatorOf(ctx, s.db, factory)
	if err != nil {
		return false, err
	}
	return creator != "" && creator == addr, nil
}

// IsManager reports whether addr is in the factory's manager set.
func (s *FactoryService) IsManager(ctx context.Context, factory, addr model.Address) (bool, error) {
	if _, err := instanceOfKind(ctx, s.db, s.codes, factory, KindScorerFactory); err != nil {
		return false, err
	}
	managers, err := managersOf(ctx, s.db, factory)
	if err != nil {
		return false, err
	}
	return managers[addr], nil
}
