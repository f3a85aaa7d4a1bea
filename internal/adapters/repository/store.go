// Package repository persists encounters and faction clusters.
package repository

import (
	"context"

	"github.com/okian/fightlens/internal/domain/model"
)

// Collection names.
const (
	EncounterCollection = "player-fights"
	ClusterCollection   = "faction-fights"
)

// EncounterStore reads pending encounters and applies field patches.
type EncounterStore interface {
	// PendingAnalysis returns encounters that have no analysis yet.
	PendingAnalysis(ctx context.Context) ([]model.Encounter, error)
	// PendingClustering returns analyzed encounters without a faction fight
	// whose attempt count is below maxAttempts.
	PendingClustering(ctx context.Context, maxAttempts int) ([]model.Encounter, error)
	// ApplyPatches writes all patches in one batch. Empty patches are ignored.
	ApplyPatches(ctx context.Context, patches []model.EncounterPatch) error
}

// ClusterStore persists faction clusters.
type ClusterStore interface {
	RecentClusters(ctx context.Context, factionID string, limit int) ([]model.FactionCluster, error)
	InsertCluster(ctx context.Context, c *model.FactionCluster) (string, error)
	UpdateClusters(ctx context.Context, clusters []model.FactionCluster) error
}

// Store is a backend holding both collections.
type Store interface {
	EncounterStore
	ClusterStore

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend.
	Close(ctx context.Context) error
}
