package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/trustful/badge-registry/internal/model"
)

// GetState reads one value from an instance's flat key-value store.
// Values are stored as JSON text; out must be a pointer. Returns
// (false, nil) when the key has never been written.
func (s *store) GetState(ctx context.Context, addr model.Address, key string, out any) (bool, error) {
	var raw string
	err := s.q.QueryRowContext(ctx,
		`SELECT value FROM instance_state WHERE address = ? AND key = ?`,
		string(addr), key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: reading state %s/%s: %w", addr, key, err)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("sqlite: decoding state %s/%s: %w", addr, key, err)
	}
	return true, nil
}

// SetState writes one value into an instance's key-value store,
// overwriting any previous value for the key.
func (s *store) SetState(ctx context.Context, addr model.Address, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlite: encoding state %s/%s: %w", addr, key, err)
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO instance_state (address, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(address, key) DO UPDATE SET value = excluded.value`,
		string(addr), key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing state %s/%s: %w", addr, key, err)
	}
	return nil
}
