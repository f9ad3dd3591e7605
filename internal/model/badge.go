package model

// MaxBadgeScore is the inclusive upper bound for a badge score.
// Scores are basis points: 10000 = 100%.
const MaxBadgeScore = 10000

// BadgeID uniquely identifies a badge within one scorer instance.
// The key is composite: the same name issued by two different issuers
// is two different badges.
type BadgeID struct {
	Name   string  `json:"name"`
	Issuer Address `json:"issuer"`
}

// Badge is a named, issuer-scoped unit of recognition carrying a score
// in [0, MaxBadgeScore].
type Badge struct {
	Name   string  `json:"name"`
	Issuer Address `json:"issuer"`
	Score  uint32  `json:"score"`
}

// ID returns the badge's composite key.
func (b Badge) ID() BadgeID {
	return BadgeID{Name: b.Name, Issuer: b.Issuer}
}

// ValidScore reports whether the badge's score is within range.
func (b Badge) ValidScore() bool {
	return b.Score <= MaxBadgeScore
}
