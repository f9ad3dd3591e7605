package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/trustful/badge-registry/internal/model"
)

// AppendEvent appends one audit record. IDs are xid strings, which sort
// by creation time, so (instance, id) gives emission order for free.
func (s *store) AppendEvent(ctx context.Context, ev *model.Event) error {
	if ev.ID == "" {
		ev.ID = xid.New().String()
	}
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = time.Now().UTC()
	}
	data := ev.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO events (id, instance, topic, action, data, emitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID,
		string(ev.Instance),
		ev.Topic,
		ev.Action,
		string(data),
		ev.EmittedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending event %s/%s: %w", ev.Topic, ev.Action, err)
	}
	return nil
}

// ListEvents returns all events emitted by one instance, oldest first.
func (s *store) ListEvents(ctx context.Context, addr model.Address) ([]model.Event, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, instance, topic, action, data, emitted_at
		 FROM events
		 WHERE instance = ?
		 ORDER BY id`,
		string(addr),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events for %s: %w", addr, err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var data string
		if err := rows.Scan(&ev.ID, &ev.Instance, &ev.Topic, &ev.Action, &data, &ev.EmittedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event: %w", err)
		}
		ev.Data = []byte(data)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}
	return events, nil
}
