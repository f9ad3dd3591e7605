package service

import (
	"context"

	"github.com/trustful/badge-registry/internal/model"
	"github.com/trustful/badge-registry/internal/repository"
)

// EventService reads the audit trail committed alongside instance
// mutations.
type EventService struct {
	db repository.DB
}

func NewEventService(db repository.DB) *EventService {
	return &EventService{db: db}
}

// List returns an instance's events in emission order. NotFound if no
// instance lives at the address.
func (s *EventService) List(ctx context.Context, instance model.Address) ([]model.Event, error) {
	if _, err := s.db.GetInstance(ctx, instance); err != nil {
		return nil, err
	}
	return s.db.ListEvents(ctx, instance)
}
