package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/repository/sqlite"
)

// testEnv wires the full service stack over an in-memory database:
// code registry with the builtin contracts, deployer, factory, scorer.
type testEnv struct {
	db          *sqlite.DB
	codes       *CodeRegistry
	deployer    *DeployerService
	factory     *FactoryService
	scorer      *ScorerService
	factoryCode model.CodeHash
	scorerCode  model.CodeHash
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	codes := NewCodeRegistry()
	factoryCode, scorerCode := RegisterBuiltin(codes)

	deployer := NewDeployerService(db, codes, logger)
	return &testEnv{
		db:          db,
		codes:       codes,
		deployer:    deployer,
		factory:     NewFactoryService(db, codes, deployer, logger),
		scorer:      NewScorerService(db, codes, logger),
		factoryCode: factoryCode,
		scorerCode:  scorerCode,
	}
}

// testAddr builds a syntactically valid address from one repeated byte.
func testAddr(b byte) model.Address {
	return model.Address(strings.Repeat(fmt.Sprintf("%02x", b), 32))
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling %v: %v", v, err)
	}
	return raw
}

// deployFactory deploys and initializes a factory owned by creator.
func deployFactory(t *testing.T, env *testEnv, creator model.Address) model.Address {
	t.Helper()
	args := mustJSON(t, map[string]any{
		"creator":        creator,
		"scorerCodeHash": env.scorerCode,
	})
	addr, _, err := env.deployer.Deploy(context.Background(), creator, env.factoryCode, "factory-salt", InitName, args)
	if err != nil {
		t.Fatalf("deploying factory: %v", err)
	}
	return addr
}

// createScorer creates a scorer through the factory with the given
// creator acting as deployer.
func createScorer(t *testing.T, env *testEnv, factory, creator model.Address, salt model.Salt, badges []model.Badge) model.Address {
	t.Helper()
	args := mustJSON(t, map[string]any{
		"creator":     creator,
		"badges":      badges,
		"name":        "Community",
		"description": "A community scorer",
		"icon":        "icon.png",
	})
	addr, err := env.factory.CreateScorer(context.Background(), factory, creator, salt, InitName, args)
	if err != nil {
		t.Fatalf("creating scorer: %v", err)
	}
	return addr
}
