package model

import "time"

// Instance is one deployed contract: an address, the code it currently
// runs, and how it came to exist. The row is created exactly once by
// the deployer; only CodeHash ever changes afterwards (via upgrade).
//
// The per-instance key-value state lives separately in the state store,
// keyed by the instance address; deleting a factory's registry entry
// for a scorer does not touch the scorer's own instance or state.
type Instance struct {
	Address   Address   `json:"address"`
	CodeHash  CodeHash  `json:"codeHash"`
	Deployer  Address   `json:"deployer"`
	Salt      Salt      `json:"salt"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScorerMetadata is the display metadata a scorer declares at
// initialization and the factory records in its registry.
type ScorerMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}
