// Package cluster groups analyzed encounters of one faction that happened
// close together in time into faction fights. It is incremental: runs are
// merged into overlapping clusters from earlier passes, so re-processing the
// same encounters never produces a second cluster for the same fight.
package cluster

import (
	"context"
	"sort"
	"time"

	"github.com/okian/fightlens/internal/domain/model"
	"github.com/okian/fightlens/pkg/logger"
)

// Store is the faction fight persistence the clusterer needs.
type Store interface {
	// RecentClusters returns up to limit clusters of a faction ordered by end time, newest first.
	RecentClusters(ctx context.Context, factionID string, limit int) ([]model.FactionCluster, error)
	// InsertCluster persists a new cluster and returns its id.
	InsertCluster(ctx context.Context, c *model.FactionCluster) (string, error)
	// UpdateClusters persists merged clusters.
	UpdateClusters(ctx context.Context, clusters []model.FactionCluster) error
}

// Resolver maps an account to its faction.
type Resolver interface {
	FactionOf(ctx context.Context, accountID string) (factionID string, ok bool, err error)
}

// Result summarizes one clustering pass.
type Result struct {
	// Patches holds the encounter updates to persist.
	Patches []model.EncounterPatch

	Created   int // new clusters
	Merged    int // runs merged into existing clusters
	Clustered int // encounters that received a cluster reference
	Deferred  int // encounters in runs below the member minimum
	Exhausted int // encounters whose attempts reached the cap in this pass
	NoFaction int // encounters whose account has no faction
	Skipped   int // encounters left untouched after a lookup or store failure
	Ignored   int // encounters that were not eligible for clustering
}

// Clusterer builds faction fights from analyzed encounters.
type Clusterer struct {
	store    Store
	resolver Resolver

	gap         time.Duration
	minMembers  int
	recentLimit int
	maxAttempts int
	now         func() time.Time

	logger logger.Logger
}

// New creates a Clusterer.
func New(store Store, resolver Resolver, opts ...Option) *Clusterer {
	c := &Clusterer{
		store:       store,
		resolver:    resolver,
		gap:         DefaultGap,
		minMembers:  DefaultMinMembers,
		recentLimit: DefaultRecentLimit,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("cluster")
	}
	return c
}

// MaxAttempts returns the attempt cap.
func (c *Clusterer) MaxAttempts() int { return c.maxAttempts }

// run is a chain of encounters where adjacent creation times are within the gap.
type run struct {
	encounters []*model.Encounter
	start, end time.Time
	ids        []string
	accounts   []string
}

func (r *run) add(e *model.Encounter, seen map[string]struct{}) {
	if len(r.encounters) == 0 {
		r.start = e.Created
	}
	r.end = e.Created
	r.encounters = append(r.encounters, e)
	r.ids = append(r.ids, e.ID)
	if _, ok := seen[e.AccountID]; !ok {
		seen[e.AccountID] = struct{}{}
		r.accounts = append(r.accounts, e.AccountID)
	}
}

// pass carries the state of a single Run call.
type pass struct {
	factions map[string]faction
	recent   map[string][]model.FactionCluster
	res      Result
}

type faction struct {
	id string
	ok bool
}

// Run clusters the given encounters. Eligible encounters have an analysis, no
// cluster reference and fewer attempts than the cap.
func (c *Clusterer) Run(ctx context.Context, encounters []model.Encounter) (Result, error) {
	p := &pass{
		factions: make(map[string]faction),
		recent:   make(map[string][]model.FactionCluster),
	}

	byFaction := make(map[string][]*model.Encounter)
	for i := range encounters {
		if err := ctx.Err(); err != nil {
			return p.res, err
		}
		e := &encounters[i]
		if !c.eligible(e) {
			p.res.Ignored++
			continue
		}
		fid, ok, err := c.factionOf(ctx, p, e.AccountID)
		if err != nil {
			c.logger.Warn(ctx, "faction lookup failed; skipping encounter",
				logger.String("encounterID", e.ID),
				logger.String("accountID", e.AccountID),
				logger.Error(err),
			)
			p.res.Skipped++
			continue
		}
		if !ok {
			c.setAttempts(p, e, c.maxAttempts)
			p.res.NoFaction++
			continue
		}
		byFaction[fid] = append(byFaction[fid], e)
	}

	factionIDs := make([]string, 0, len(byFaction))
	for fid := range byFaction {
		factionIDs = append(factionIDs, fid)
	}
	sort.Strings(factionIDs)

	for _, fid := range factionIDs {
		if err := ctx.Err(); err != nil {
			return p.res, err
		}
		for _, r := range c.chain(byFaction[fid]) {
			if len(r.accounts) < c.minMembers {
				for _, e := range r.encounters {
					c.setAttempts(p, e, e.AssignmentAttempts()+1)
					p.res.Deferred++
				}
				continue
			}
			c.place(ctx, p, fid, r)
		}
	}
	return p.res, nil
}

func (c *Clusterer) eligible(e *model.Encounter) bool {
	return e.Analysis != nil && e.ClusterRef == nil && e.AssignmentAttempts() < c.maxAttempts
}

func (c *Clusterer) factionOf(ctx context.Context, p *pass, accountID string) (string, bool, error) {
	if f, ok := p.factions[accountID]; ok {
		return f.id, f.ok, nil
	}
	id, ok, err := c.resolver.FactionOf(ctx, accountID)
	if err != nil {
		return "", false, err
	}
	if id == "" {
		ok = false
	}
	p.factions[accountID] = faction{id: id, ok: ok}
	return id, ok, nil
}

func (c *Clusterer) setAttempts(p *pass, e *model.Encounter, n int) {
	if n > c.maxAttempts {
		n = c.maxAttempts
	}
	if n >= c.maxAttempts {
		p.res.Exhausted++
	}
	p.res.Patches = append(p.res.Patches, model.EncounterPatch{ID: e.ID, Attempts: &n})
}

// chain sorts encounters by creation time and splits them wherever two
// neighbours are more than the gap apart.
func (c *Clusterer) chain(encounters []*model.Encounter) []*run {
	sort.SliceStable(encounters, func(i, j int) bool {
		if encounters[i].Created.Equal(encounters[j].Created) {
			return encounters[i].ID < encounters[j].ID
		}
		return encounters[i].Created.Before(encounters[j].Created)
	})

	var runs []*run
	var cur *run
	var seen map[string]struct{}
	for _, e := range encounters {
		if cur == nil || e.Created.Sub(cur.end) > c.gap {
			cur = &run{}
			seen = make(map[string]struct{})
			runs = append(runs, cur)
		}
		cur.add(e, seen)
	}
	return runs
}

// place merges a qualifying run into an overlapping recent cluster or creates a new one.
func (c *Clusterer) place(ctx context.Context, p *pass, factionID string, r *run) {
	recent, err := c.recentFor(ctx, p, factionID)
	if err != nil {
		c.skipRun(ctx, p, r, "loading recent clusters failed", err)
		return
	}

	var clusterID string
	if idx := c.overlapping(recent, r); idx >= 0 {
		merged := recent[idx]
		merged.EncounterIDs = append([]string(nil), merged.EncounterIDs...)
		merged.MemberAccountIDs = append([]string(nil), merged.MemberAccountIDs...)
		if merged.Absorb(r.start, r.end, r.ids, r.accounts) {
			if err := c.store.UpdateClusters(ctx, []model.FactionCluster{merged}); err != nil {
				c.skipRun(ctx, p, r, "merging into cluster failed", err)
				return
			}
		}
		recent[idx] = merged
		clusterID = merged.ID
		p.res.Merged++
		c.logger.Debug(ctx, "merged run into faction fight",
			logger.String("factionID", factionID),
			logger.String("clusterID", clusterID),
			logger.Int("encounters", len(r.ids)),
		)
	} else {
		created := model.FactionCluster{
			FactionID:        factionID,
			EncounterIDs:     append([]string(nil), r.ids...),
			MemberAccountIDs: append([]string(nil), r.accounts...),
			StartTime:        r.start,
			EndTime:          r.end,
			Created:          c.now(),
		}
		id, err := c.store.InsertCluster(ctx, &created)
		if err != nil {
			c.skipRun(ctx, p, r, "creating cluster failed", err)
			return
		}
		created.ID = id
		recent = append(recent, created)
		clusterID = id
		p.res.Created++
		c.logger.Info(ctx, "created faction fight",
			logger.String("factionID", factionID),
			logger.String("clusterID", clusterID),
			logger.Int("members", len(r.accounts)),
			logger.Int("encounters", len(r.ids)),
		)
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].EndTime.After(recent[j].EndTime) })
	p.recent[factionID] = recent

	for _, e := range r.encounters {
		ref := clusterID
		p.res.Patches = append(p.res.Patches, model.EncounterPatch{ID: e.ID, ClusterRef: &ref})
		p.res.Clustered++
	}
}

// recentFor loads the recent clusters of a faction once per pass; clusters
// created or merged later in the pass are kept in the same list.
func (c *Clusterer) recentFor(ctx context.Context, p *pass, factionID string) ([]model.FactionCluster, error) {
	if recent, ok := p.recent[factionID]; ok {
		return recent, nil
	}
	recent, err := c.store.RecentClusters(ctx, factionID, c.recentLimit)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []model.FactionCluster{}
	}
	p.recent[factionID] = recent
	return recent, nil
}

func (c *Clusterer) overlapping(recent []model.FactionCluster, r *run) int {
	for i := range recent {
		if recent[i].Overlaps(r.start, r.end, c.gap) {
			return i
		}
	}
	return -1
}

func (c *Clusterer) skipRun(ctx context.Context, p *pass, r *run, msg string, err error) {
	c.logger.Error(ctx, msg,
		logger.Int("encounters", len(r.encounters)),
		logger.Error(err),
	)
	p.res.Skipped += len(r.encounters)
}
