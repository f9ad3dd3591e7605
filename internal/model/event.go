package model

import (
	"encoding/json"
	"time"
)

// Event topics and actions. Every mutating operation emits exactly one
// event tagged with the entity it touched and what happened to it.
// The event log is the sole audit trail; external observers consume it.
const (
	TopicScorer   = "scorer"
	TopicManager  = "manager"
	TopicUser     = "user"
	TopicBadge    = "badge"
	TopicContract = "contract"

	ActionCreate  = "create"
	ActionAdd     = "add"
	ActionRemove  = "remove"
	ActionUpgrade = "upgrade"
)

// Event is a structured audit record emitted by a contract instance.
// Events are appended inside the same transaction as the mutation they
// describe, so a rolled-back operation leaves no event behind.
type Event struct {
	ID        string          `json:"id"`
	Instance  Address         `json:"instance"`
	Topic     string          `json:"topic"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data"`
	EmittedAt time.Time       `json:"emittedAt"`
}
