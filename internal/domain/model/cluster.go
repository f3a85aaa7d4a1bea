package model

import "time"

// FactionCluster is a faction fight: encounters of at least a minimum number
// of distinct accounts of one faction that happened close together in time.
// Member sets only ever grow.
type FactionCluster struct {
	ID               string    `json:"id" bson:"_id"`
	FactionID        string    `json:"factionId" bson:"factionId"`
	EncounterIDs     []string  `json:"fightIds" bson:"fightIds"`
	MemberAccountIDs []string  `json:"memberAccountIds" bson:"memberAccountIds"`
	StartTime        time.Time `json:"startTime" bson:"startTime"`
	EndTime          time.Time `json:"endTime" bson:"endTime"`
	Created          time.Time `json:"created" bson:"created"`
}

// Overlaps reports whether [start, end] touches the cluster span widened by tolerance.
func (c *FactionCluster) Overlaps(start, end time.Time, tolerance time.Duration) bool {
	return !start.Add(-tolerance).After(c.EndTime) && !end.Add(tolerance).Before(c.StartTime)
}

// Absorb merges a span and member sets into the cluster. It returns true when
// anything changed.
func (c *FactionCluster) Absorb(start, end time.Time, encounterIDs, accountIDs []string) bool {
	changed := false
	if start.Before(c.StartTime) {
		c.StartTime = start
		changed = true
	}
	if end.After(c.EndTime) {
		c.EndTime = end
		changed = true
	}
	var added bool
	c.EncounterIDs, added = union(c.EncounterIDs, encounterIDs)
	changed = changed || added
	c.MemberAccountIDs, added = union(c.MemberAccountIDs, accountIDs)
	return changed || added
}

func union(dst, src []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, id := range dst {
		seen[id] = struct{}{}
	}
	added := false
	for _, id := range src {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		dst = append(dst, id)
		added = true
	}
	return dst, added
}
