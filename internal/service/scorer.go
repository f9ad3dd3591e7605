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

// scorerInitArgs is the wire shape of the scorer initializer. The
// factory decodes the same shape to record the scorer's metadata.
type scorerInitArgs struct {
	Creator     model.Address `json:"creator"`
	Badges      []model.Badge `json:"badges"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
}

// scorerInitialize seeds a freshly deployed scorer: creator becomes the
// sole initial manager, the badge map is pre-seeded (every seed score
// validated), the user set starts empty, metadata is stored. One-way.
func scorerInitialize(ctx context.Context, st repository.Store, self, caller model.Address, args json.RawMessage) (json.RawMessage, error) {
	var in scorerInitArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, apperror.ValidationFailed("initArgs", fmt.Sprintf("malformed scorer init args: %v", err))
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
		return nil, apperror.Unauthorized("scorer initialization must be authorized by its creator")
	}
	if in.Name == "" {
		return nil, apperror.ValidationFailed("name", "scorer name is required")
	}

	// Seed badges: validate each, dedupe by (name, issuer), last wins.
	seen := map[model.BadgeID]int{}
	badges := make([]model.Badge, 0, len(in.Badges))
	for _, b := range in.Badges {
		if b.Name == "" {
			return nil, apperror.ValidationFailed("badges", "badge name is required")
		}
		if !b.Issuer.Valid() {
			return nil, apperror.ValidationFailed("badges", fmt.Sprintf("badge %q has a malformed issuer", b.Name))
		}
		if !b.ValidScore() {
			return nil, apperror.InvalidScore(b.Score)
		}
		if i, ok := seen[b.ID()]; ok {
			badges[i] = b
			continue
		}
		seen[b.ID()] = len(badges)
		badges = append(badges, b)
	}

	if err := st.SetState(ctx, self, repository.KeyCreator, in.Creator); err != nil {
		return nil, err
	}
	if err := saveManagers(ctx, st, self, map[model.Address]bool{in.Creator: true}); err != nil {
		return nil, err
	}
	if err := saveUsers(ctx, st, self, map[model.Address]bool{}); err != nil {
		return nil, err
	}
	if err := saveBadges(ctx, st, self, badges); err != nil {
		return nil, err
	}
	if err := st.SetState(ctx, self, repository.KeyName, in.Name); err != nil {
		return nil, err
	}
	if err := st.SetState(ctx, self, repository.KeyDescription, in.Description); err != nil {
		return nil, err
	}
	if err := st.SetState(ctx, self, repository.KeyIcon, in.Icon); err != nil {
		return nil, err
	}
	if err := st.SetState(ctx, self, repository.KeyInitialized, true); err != nil {
		return nil, err
	}
	return nil, nil
}

// ScorerService exposes the scorer entry points: self-service user
// membership, manager-gated badge and manager administration, and the
// state-preserving code upgrade.
type ScorerService struct {
	db     repository.DB
	codes  *CodeRegistry
	logger *slog.Logger
}

func NewScorerService(db repository.DB, codes *CodeRegistry, logger *slog.Logger) *ScorerService {
	return &ScorerService{
		db:     db,
		codes:  codes,
		logger: logger,
	}
}

// AddUser activates user's membership. Self-service: the caller's
// authenticated identity must equal user; no manager approval exists
// for joining. Re-adding reactivates the existing record; a user record
// is never duplicated.
func (s *ScorerService) AddUser(ctx context.Context, scorer, caller, user model.Address) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, scorer, KindScorer); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, scorer); err != nil {
			return err
		}
		if err := authorize(ctx, st, scorer, caller, roleSelf, user); err != nil {
			return err
		}

		users, err := usersOf(ctx, st, scorer)
		if err != nil {
			return err
		}
		users[user] = true
		if err := saveUsers(ctx, st, scorer, users); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: scorer,
			Topic:    model.TopicUser,
			Action:   model.ActionAdd,
			Data:     eventData(map[string]any{"user": user}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("user joined scorer",
		slog.String("scorer", string(scorer)),
		slog.String("user", string(user)),
	)
	return nil
}

// RemoveUser deactivates user's membership (the record stays, flagged
// inactive). Self-service, like AddUser. NotFound if the address never
// joined.
func (s *ScorerService) RemoveUser(ctx context.Context, scorer, caller, user model.Address) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, scorer, KindScorer); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, scorer); err != nil {
			return err
		}
		if err := authorize(ctx, st, scorer, caller, roleSelf, user); err != nil {
			return err
		}

		users, err := usersOf(ctx, st, scorer)
		if err != nil {
			return err
		}
		if _, ok := users[user]; !ok {
			return apperror.NotFound("user", string(user))
		}
		users[user] = false
		if err := saveUsers(ctx, st, scorer, users); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: scorer,
			Topic:    model.TopicUser,
			Action:   model.ActionRemove,
			Data:     eventData(map[string]any{"user": user}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("user left scorer",
		slog.String("scorer", string(scorer)),
		slog.String("user", string(user)),
	)
	return nil
}

// GetUsers returns the membership map: address → active flag.
func (s *ScorerService) GetUsers(ctx context.Context, scorer model.Address) (map[model.Address]bool, error) {
	if _, err := instanceOfKind(ctx, s.db, s.codes, scorer, KindScorer); err != nil {
		return nil, err
	}
	return usersOf(ctx, s.db, scorer)
}

// AddManager adds an address to the scorer's manager set. The sender
// must already be a manager (the creator is the initial one).
func (s *ScorerService) AddManager(ctx context.Context, scorer, sender, manager model.Address) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, scorer, KindScorer); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, scorer); err != nil {
			return err
		}
		if err := authorize(ctx, st, scorer, sender, roleManager, ""); err != nil {
			return err
		}
		if !manager.Valid() {
			return apperror.ValidationFailed("manager", "manager address is malformed")
		}

		managers, err := managersOf(ctx, st, scorer)
		if err != nil {
			return err
		}
		managers[manager] = true
		if err := saveManagers(ctx, st, scorer, managers); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: scorer,
			Topic:    model.TopicManager,
			Action:   model.ActionAdd,
			Data: eventData(map[string]any{
				"sender":  sender,
				"manager": manager,
			}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("scorer manager added",
		slog.String("scorer", string(scorer)),
		slog.String("manager", string(manager)),
	)
	return nil
}

// RemoveManager removes an address from the scorer's manager set.
// NotFound if the address is not a manager. Removing the last manager
// is allowed; the instance becomes unmanageable.
func (s *ScorerService) RemoveManager(ctx context.Context, scorer, sender, manager model.Address) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, scorer, KindScorer); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, scorer); err != nil {
			return err
		}
		if err := authorize(ctx, st, scorer, sender, roleManager, ""); err != nil {
			return err
		}

		managers, err := managersOf(ctx, st, scorer)
		if err != nil {
			return err
		}
		if !managers[manager] {
			return apperror.NotFound("manager", string(manager))
		}
		delete(managers, manager)
		if err := saveManagers(ctx, st, scorer, managers); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: scorer,
			Topic:    model.TopicManager,
			Action:   model.ActionRemove,
			Data: eventData(map[string]any{
				"sender":  sender,
				"manager": manager,
			}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("scorer manager removed",
		slog.String("scorer", string(scorer)),
		slog.String("manager", string(manager)),
	)
	return nil
}

// AddBadge inserts or overwrites the badge keyed by (name, issuer).
// Manager-only. A score outside [0, 10000] fails with InvalidScore and
// leaves the badge map untouched.
func (s *ScorerService) AddBadge(ctx context.Context, scorer, sender model.Address, name string, issuer model.Address, score uint32) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, scorer, KindScorer); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, scorer); err != nil {
			return err
		}
		if err := authorize(ctx, st, scorer, sender, roleManager, ""); err != nil {
			return err
		}
		if name == "" {
			return apperror.ValidationFailed("name", "badge name is required")
		}
		if !issuer.Valid() {
			return apperror.ValidationFailed("issuer", "issuer address is malformed")
		}
		badge := model.Badge{Name: name, Issuer: issuer, Score: score}
		if !badge.ValidScore() {
			return apperror.InvalidScore(score)
		}

		badges, err := badgesOf(ctx, st, scorer)
		if err != nil {
			return err
		}
		replaced := false
		for i := range badges {
			if badges[i].ID() == badge.ID() {
				badges[i] = badge
				replaced = true
				break
			}
		}
		if !replaced {
			badges = append(badges, badge)
		}
		if err := saveBadges(ctx, st, scorer, badges); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: scorer,
			Topic:    model.TopicBadge,
			Action:   model.ActionAdd,
			Data: eventData(map[string]any{
				"sender": sender,
				"name":   name,
				"issuer": issuer,
				"score":  score,
			}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("badge added",
		slog.String("scorer", string(scorer)),
		slog.String("name", name),
		slog.String("issuer", string(issuer)),
	)
	return nil
}

// RemoveBadge deletes the badge keyed by (name, issuer). Manager-only;
// NotFound if the key is absent.
func (s *ScorerService) RemoveBadge(ctx context.Context, scorer, sender model.Address, name string, issuer model.Address) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, scorer, KindScorer); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, scorer); err != nil {
			return err
		}
		if err := authorize(ctx, st, scorer, sender, roleManager, ""); err != nil {
			return err
		}

		badges, err := badgesOf(ctx, st, scorer)
		if err != nil {
			return err
		}
		id := model.BadgeID{Name: name, Issuer: issuer}
		idx := -1
		for i := range badges {
			if badges[i].ID() == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperror.NotFound("badge", name)
		}
		badges = append(badges[:idx], badges[idx+1:]...)
		if err := saveBadges(ctx, st, scorer, badges); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: scorer,
			Topic:    model.TopicBadge,
			Action:   model.ActionRemove,
			Data: eventData(map[string]any{
				"sender": sender,
				"name":   name,
				"issuer": issuer,
			}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("badge removed",
		slog.String("scorer", string(scorer)),
		slog.String("name", name),
		slog.String("issuer", string(issuer)),
	)
	return nil
}

// GetBadges returns the badge map keyed by (name, issuer).
func (s *ScorerService) GetBadges(ctx context.Context, scorer model.Address) (map[model.BadgeID]uint32, error) {
	if _, err := instanceOfKind(ctx, s.db, s.codes, scorer, KindScorer); err != nil {
		return nil, err
	}
	badges, err := badgesOf(ctx, s.db, scorer)
	if err != nil {
		return nil, err
	}
	out := make(map[model.BadgeID]uint32, len(badges))
	for _, b := range badges {
		out[b.ID()] = b.Score
	}
	return out, nil
}

// GetMetadata returns the scorer's declared name, description and icon.
func (s *ScorerService) GetMetadata(ctx context.Context, scorer model.Address) (model.ScorerMetadata, error) {
	if _, err := instanceOfKind(ctx, s.db, s.codes, scorer, KindScorer); err != nil {
		return model.ScorerMetadata{}, err
	}

	var meta model.ScorerMetadata
	var err error
	if meta.Name, err = stateString(ctx, s.db, scorer, repository.KeyName); err != nil {
		return model.ScorerMetadata{}, err
	}
	if meta.Description, err = stateString(ctx, s.db, scorer, repository.KeyDescription); err != nil {
		return model.ScorerMetadata{}, err
	}
	if meta.Icon, err = stateString(ctx, s.db, scorer, repository.KeyIcon); err != nil {
		return model.ScorerMetadata{}, err
	}
	return meta, nil
}

// Upgrade swaps the scorer's code to a registered newer implementation.
// Manager-gated. The key-value store (badges, users, managers,
// metadata) is preserved untouched.
func (s *ScorerService) Upgrade(ctx context.Context, scorer, sender model.Address, newCode model.CodeHash) error {
	err := s.db.InTx(ctx, func(st repository.Store) error {
		if _, err := instanceOfKind(ctx, st, s.codes, scorer, KindScorer); err != nil {
			return err
		}
		if err := requireInitialized(ctx, st, scorer); err != nil {
			return err
		}
		if err := authorize(ctx, st, scorer, sender, roleManager, ""); err != nil {
			return err
		}

		code, ok := s.codes.Lookup(newCode)
		if !ok {
			return apperror.NotFound("code", string(newCode))
		}
		if code.Kind != KindScorer {
			return apperror.ValidationFailed("codeHash", "upgrade target is not scorer code")
		}

		if err := st.SetInstanceCode(ctx, scorer, newCode); err != nil {
			return err
		}

		return st.AppendEvent(ctx, &model.Event{
			Instance: scorer,
			Topic:    model.TopicContract,
			Action:   model.ActionUpgrade,
			Data: eventData(map[string]any{
				"sender":   sender,
				"codeHash": newCode,
			}),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("scorer upgraded",
		slog.String("scorer", string(scorer)),
		slog.String("code", string(newCode)),
	)
	return nil
}

// ContractVersion reports the version of the code a scorer currently
// runs.
func (s *ScorerService) ContractVersion(ctx context.Context, scorer model.Address) (uint32, error) {
	inst, err := instanceOfKind(ctx, s.db, s.codes, scorer, KindScorer)
	if err != nil {
		return 0, err
	}
	code, ok := s.codes.Lookup(inst.CodeHash)
	if !ok {
		return 0, apperror.NotFound("code", string(inst.CodeHash))
	}
	return code.Version, nil
}
