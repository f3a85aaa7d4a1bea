package model

import "time"

// Encounter is one recorded fight of an account. It is created by telemetry
// ingestion and later annotated with an analysis and a faction fight reference.
type Encounter struct {
	ID         string           `json:"id" bson:"_id"`
	AccountID  string           `json:"accountId" bson:"accountId"`
	Shots      []ShotEvent      `json:"shotLogs" bson:"shotLogs"`
	Damages    []DamageEvent    `json:"damageLogs" bson:"damageLogs"`
	Created    time.Time        `json:"created" bson:"created"`
	LastUpdate time.Time        `json:"lastUpdate" bson:"lastUpdate"`
	Analysis   *AnalysisSummary `json:"analysis" bson:"analysis"`

	// ClusterRef holds the faction fight id once assigned.
	ClusterRef *string `json:"factionFightId,omitempty" bson:"factionFightId,omitempty"`
	// Attempts counts faction assignment passes; absent means zero.
	Attempts *int `json:"factionAssignmentAttempts,omitempty" bson:"factionAssignmentAttempts,omitempty"`
}

// AssignmentAttempts returns the attempt counter with absent treated as zero.
func (e *Encounter) AssignmentAttempts() int {
	if e.Attempts == nil {
		return 0
	}
	return *e.Attempts
}

// EncounterPatch is a per-id field update. Nil fields are left untouched.
type EncounterPatch struct {
	ID         string
	Analysis   *AnalysisSummary
	ClusterRef *string
	Attempts   *int
}

// Empty reports whether the patch changes nothing.
func (p *EncounterPatch) Empty() bool {
	return p.Analysis == nil && p.ClusterRef == nil && p.Attempts == nil
}

// Apply copies the patched fields onto e.
func (p *EncounterPatch) Apply(e *Encounter) {
	if p.Analysis != nil {
		e.Analysis = p.Analysis
	}
	if p.ClusterRef != nil {
		ref := *p.ClusterRef
		e.ClusterRef = &ref
	}
	if p.Attempts != nil {
		n := *p.Attempts
		e.Attempts = &n
	}
}
