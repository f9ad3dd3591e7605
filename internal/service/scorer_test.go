package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustful/badge-registry/internal/apperror"
	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/repository"
)

func TestScorerInitializeOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", nil)

	err := env.db.InTx(ctx, func(st repository.Store) error {
		_, err := scorerInitialize(ctx, st, scorer, creator, mustJSON(t, map[string]any{
			"creator": creator,
			"name":    "Again",
		}))
		return err
	})
	assert.ErrorIs(t, err, apperror.ErrAlreadyInitialized)

	meta, err := env.scorer.GetMetadata(ctx, scorer)
	require.NoError(t, err)
	assert.Equal(t, "Community", meta.Name)
}

func TestScorerInitializeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	factory := deployFactory(t, env, creator)

	tests := []struct {
		name string
		args map[string]any
		want error
	}{
		{
			name: "missing name",
			args: map[string]any{"creator": creator},
			want: apperror.ErrValidation,
		},
		{
			name: "malformed creator",
			args: map[string]any{"creator": "not-an-address", "name": "X"},
			want: apperror.ErrValidation,
		},
		{
			name: "seed badge without name",
			args: map[string]any{
				"creator": creator,
				"name":    "X",
				"badges":  []model.Badge{{Issuer: creator, Score: 1}},
			},
			want: apperror.ErrValidation,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			salt := model.Salt(string(rune('a' + i)))
			_, err := env.factory.CreateScorer(ctx, factory, creator, salt, InitName, mustJSON(t, tt.args))
			require.ErrorIs(t, err, apperror.ErrInitializationFailed)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestScorerSeedBadgeDedupe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	factory := deployFactory(t, env, creator)

	scorer := createScorer(t, env, factory, creator, "salt", []model.Badge{
		{Name: "Attendance", Issuer: creator, Score: 100},
		{Name: "Attendance", Issuer: creator, Score: 250},
	})

	badges, err := env.scorer.GetBadges(ctx, scorer)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, uint32(250), badges[model.BadgeID{Name: "Attendance", Issuer: creator}])
}

func TestBadgeScoreBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", nil)

	require.NoError(t, env.scorer.AddBadge(ctx, scorer, creator, "zero", creator, 0))
	require.NoError(t, env.scorer.AddBadge(ctx, scorer, creator, "max", creator, 10000))

	err := env.scorer.AddBadge(ctx, scorer, creator, "over", creator, 10001)
	assert.ErrorIs(t, err, apperror.ErrInvalidScore)

	badges, err := env.scorer.GetBadges(ctx, scorer)
	require.NoError(t, err)
	assert.Len(t, badges, 2)
	assert.NotContains(t, badges, model.BadgeID{Name: "over", Issuer: creator})
}

func TestAddBadgeUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	other := testAddr(0x02)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", nil)

	require.NoError(t, env.scorer.AddBadge(ctx, scorer, creator, "Attendance", creator, 100))
	require.NoError(t, env.scorer.AddBadge(ctx, scorer, creator, "Attendance", creator, 400))
	// Same name, different issuer: a distinct badge.
	require.NoError(t, env.scorer.AddBadge(ctx, scorer, creator, "Attendance", other, 50))

	badges, err := env.scorer.GetBadges(ctx, scorer)
	require.NoError(t, err)
	require.Len(t, badges, 2)
	assert.Equal(t, uint32(400), badges[model.BadgeID{Name: "Attendance", Issuer: creator}])
	assert.Equal(t, uint32(50), badges[model.BadgeID{Name: "Attendance", Issuer: other}])
}

func TestRemoveBadge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", []model.Badge{
		{Name: "Attendance", Issuer: creator, Score: 100},
	})

	require.NoError(t, env.scorer.RemoveBadge(ctx, scorer, creator, "Attendance", creator))

	badges, err := env.scorer.GetBadges(ctx, scorer)
	require.NoError(t, err)
	assert.Empty(t, badges)

	err = env.scorer.RemoveBadge(ctx, scorer, creator, "Attendance", creator)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestBadgeOpsManagerOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	outsider := testAddr(0x02)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", []model.Badge{
		{Name: "Attendance", Issuer: creator, Score: 100},
	})

	err := env.scorer.AddBadge(ctx, scorer, outsider, "Rogue", outsider, 1)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	err = env.scorer.RemoveBadge(ctx, scorer, outsider, "Attendance", creator)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	badges, err := env.scorer.GetBadges(ctx, scorer)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}

func TestUserSelfService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	user := testAddr(0x02)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", nil)

	// Nobody can join on another address's behalf, managers included.
	err := env.scorer.AddUser(ctx, scorer, creator, user)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	require.NoError(t, env.scorer.AddUser(ctx, scorer, user, user))

	users, err := env.scorer.GetUsers(ctx, scorer)
	require.NoError(t, err)
	assert.True(t, users[user])

	// Leaving keeps the record, flagged inactive.
	err = env.scorer.RemoveUser(ctx, scorer, creator, user)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	require.NoError(t, env.scorer.RemoveUser(ctx, scorer, user, user))

	users, err = env.scorer.GetUsers(ctx, scorer)
	require.NoError(t, err)
	active, present := users[user]
	assert.True(t, present)
	assert.False(t, active)

	// Re-joining flips the same record back to active.
	require.NoError(t, env.scorer.AddUser(ctx, scorer, user, user))
	users, err = env.scorer.GetUsers(ctx, scorer)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[user])
}

func TestRemoveUserNeverJoined(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	stranger := testAddr(0x02)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", nil)

	err := env.scorer.RemoveUser(ctx, scorer, stranger, stranger)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestScorerManagerRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	manager := testAddr(0x02)
	outsider := testAddr(0x03)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", nil)

	err := env.scorer.AddManager(ctx, scorer, outsider, outsider)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	require.NoError(t, env.scorer.AddManager(ctx, scorer, creator, manager))

	// The new manager has full manager powers.
	require.NoError(t, env.scorer.AddBadge(ctx, scorer, manager, "Attendance", manager, 10))

	require.NoError(t, env.scorer.RemoveManager(ctx, scorer, manager, creator))
	err = env.scorer.AddBadge(ctx, scorer, creator, "Late", creator, 1)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	err = env.scorer.RemoveManager(ctx, scorer, manager, outsider)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// Removing the last manager is permitted and leaves the instance
// readable but unmanageable.
func TestScorerRemoveLastManager(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", nil)

	require.NoError(t, env.scorer.RemoveManager(ctx, scorer, creator, creator))

	err := env.scorer.AddManager(ctx, scorer, creator, creator)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = env.scorer.GetBadges(ctx, scorer)
	assert.NoError(t, err)
}

func TestUpgradePreservesState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	user := testAddr(0x02)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", []model.Badge{
		{Name: "Attendance", Issuer: creator, Score: 100},
	})
	require.NoError(t, env.scorer.AddUser(ctx, scorer, user, user))

	v, err := env.scorer.ContractVersion(ctx, scorer)
	require.NoError(t, err)
	require.Equal(t, uint32(1), v)

	v2 := env.codes.Register(KindScorer, 2, scorerInitialize)
	require.NoError(t, env.scorer.Upgrade(ctx, scorer, creator, v2))

	v, err = env.scorer.ContractVersion(ctx, scorer)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)

	// Badges, users, managers and metadata all survive the swap.
	badges, err := env.scorer.GetBadges(ctx, scorer)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), badges[model.BadgeID{Name: "Attendance", Issuer: creator}])

	users, err := env.scorer.GetUsers(ctx, scorer)
	require.NoError(t, err)
	assert.True(t, users[user])

	meta, err := env.scorer.GetMetadata(ctx, scorer)
	require.NoError(t, err)
	assert.Equal(t, "Community", meta.Name)

	require.NoError(t, env.scorer.AddBadge(ctx, scorer, creator, "Post-upgrade", creator, 5))
}

func TestUpgradeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	outsider := testAddr(0x02)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", nil)

	// Unregistered target.
	err := env.scorer.Upgrade(ctx, scorer, creator, model.DeriveCodeHash(KindScorer, 99))
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// Factory code is not a valid scorer upgrade target.
	err = env.scorer.Upgrade(ctx, scorer, creator, env.factoryCode)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	// Manager-gated.
	err = env.scorer.Upgrade(ctx, scorer, outsider, env.scorerCode)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	v, err := env.scorer.ContractVersion(ctx, scorer)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
}

func TestScorerEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	user := testAddr(0x02)
	factory := deployFactory(t, env, creator)
	scorer := createScorer(t, env, factory, creator, "salt", nil)

	require.NoError(t, env.scorer.AddUser(ctx, scorer, user, user))
	require.NoError(t, env.scorer.AddBadge(ctx, scorer, creator, "Attendance", creator, 100))
	require.NoError(t, env.scorer.RemoveBadge(ctx, scorer, creator, "Attendance", creator))

	events, err := env.db.ListEvents(ctx, scorer)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, model.TopicUser, events[0].Topic)
	assert.Equal(t, model.ActionAdd, events[0].Action)
	assert.Equal(t, model.TopicBadge, events[1].Topic)
	assert.Equal(t, model.ActionAdd, events[1].Action)
	assert.Equal(t, model.TopicBadge, events[2].Topic)
	assert.Equal(t, model.ActionRemove, events[2].Action)
}

func TestScorerOpsOnFactoryAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testAddr(0x01)
	factory := deployFactory(t, env, creator)

	_, err := env.scorer.GetBadges(ctx, factory)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	err = env.scorer.AddUser(ctx, factory, creator, creator)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
