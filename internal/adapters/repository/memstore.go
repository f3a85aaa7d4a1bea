package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/fightlens/internal/domain/model"
)

// MemoryStore is a mutex-guarded in-memory Store. Reads return copies so
// callers never alias stored state.
type MemoryStore struct {
	mu             sync.RWMutex
	encounters     map[string]*model.Encounter
	encounterOrder []string
	clusters       map[string]*model.FactionCluster
	clusterOrder   []string
	newID          func() string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		encounters: make(map[string]*model.Encounter),
		clusters:   make(map[string]*model.FactionCluster),
		newID:      newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutEncounter inserts or replaces an encounter.
func (s *MemoryStore) PutEncounter(e model.Encounter) error {
	if e.ID == "" {
		return fmt.Errorf("put encounter: %w", ErrMissingID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.encounters[e.ID]; !ok {
		s.encounterOrder = append(s.encounterOrder, e.ID)
	}
	cp := copyEncounter(&e)
	s.encounters[e.ID] = &cp
	return nil
}

// Encounter returns a stored encounter by id.
func (s *MemoryStore) Encounter(id string) (model.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.encounters[id]
	if !ok {
		return model.Encounter{}, ErrNotFound
	}
	return copyEncounter(e), nil
}

// Clusters returns every stored cluster in insertion order.
func (s *MemoryStore) Clusters() []model.FactionCluster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FactionCluster, 0, len(s.clusterOrder))
	for _, id := range s.clusterOrder {
		out = append(out, copyCluster(s.clusters[id]))
	}
	return out
}

// PendingAnalysis returns encounters without an analysis in insertion order.
func (s *MemoryStore) PendingAnalysis(ctx context.Context) ([]model.Encounter, error) {
	return s.filter(ctx, func(e *model.Encounter) bool { return e.Analysis == nil })
}

// PendingClustering returns analyzed, unassigned encounters below maxAttempts.
func (s *MemoryStore) PendingClustering(ctx context.Context, maxAttempts int) ([]model.Encounter, error) {
	return s.filter(ctx, func(e *model.Encounter) bool {
		return e.Analysis != nil && e.ClusterRef == nil && e.AssignmentAttempts() < maxAttempts
	})
}

func (s *MemoryStore) filter(ctx context.Context, keep func(*model.Encounter) bool) ([]model.Encounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Encounter, 0)
	for _, id := range s.encounterOrder {
		e := s.encounters[id]
		if keep(e) {
			out = append(out, copyEncounter(e))
		}
	}
	return out, nil
}

// ApplyPatches applies all patches under one lock. Unknown ids are ignored,
// matching an unmatched update in the document store.
func (s *MemoryStore) ApplyPatches(ctx context.Context, patches []model.EncounterPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range patches {
		p := &patches[i]
		if p.Empty() {
			continue
		}
		if e, ok := s.encounters[p.ID]; ok {
			p.Apply(e)
		}
	}
	return nil
}

// RecentClusters returns up to limit clusters of a faction, newest end time first.
func (s *MemoryStore) RecentClusters(ctx context.Context, factionID string, limit int) ([]model.FactionCluster, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.FactionCluster, 0)
	for _, id := range s.clusterOrder {
		if c := s.clusters[id]; c.FactionID == factionID {
			out = append(out, copyCluster(c))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].EndTime.After(out[j].EndTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertCluster stores a new cluster, assigning an id when it has none.
func (s *MemoryStore) InsertCluster(ctx context.Context, c *model.FactionCluster) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cp := copyCluster(c)
	if cp.ID == "" {
		cp.ID = s.newID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clusters[cp.ID]; !ok {
		s.clusterOrder = append(s.clusterOrder, cp.ID)
	}
	s.clusters[cp.ID] = &cp
	return cp.ID, nil
}

// UpdateClusters replaces stored clusters. An unknown id fails the whole batch.
func (s *MemoryStore) UpdateClusters(ctx context.Context, clusters []model.FactionCluster) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range clusters {
		if _, ok := s.clusters[clusters[i].ID]; !ok {
			return fmt.Errorf("update cluster %s: %w", clusters[i].ID, ErrNotFound)
		}
	}
	for i := range clusters {
		cp := copyCluster(&clusters[i])
		s.clusters[cp.ID] = &cp
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close(context.Context) error { return nil }

func copyEncounter(e *model.Encounter) model.Encounter {
	cp := *e
	if e.Analysis != nil {
		a := *e.Analysis
		cp.Analysis = &a
	}
	if e.ClusterRef != nil {
		ref := *e.ClusterRef
		cp.ClusterRef = &ref
	}
	if e.Attempts != nil {
		n := *e.Attempts
		cp.Attempts = &n
	}
	return cp
}

func copyCluster(c *model.FactionCluster) model.FactionCluster {
	cp := *c
	cp.EncounterIDs = append([]string(nil), c.EncounterIDs...)
	cp.MemberAccountIDs = append([]string(nil), c.MemberAccountIDs...)
	return cp
}
