package service

import "time"

type passStats struct {
	RunID   string    `json:"runId"`
	At      time.Time `json:"at"`
	TookMS  int64     `json:"tookMs"`
	Pending int       `json:"pending"`
	Error   string    `json:"error,omitempty"`
}

type stats struct {
	anticheatRuns  int
	factionRuns    int
	analyzed       int
	flagged        int
	clustersNew    int
	clustersMerged int
	clustered      int

	lastAnticheat *passStats
	lastFaction   *passStats
}

func newPassStats(runID string, pending int, took time.Duration, err error) *passStats {
	p := &passStats{RunID: runID, At: time.Now(), TookMS: took.Milliseconds(), Pending: pending}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

func (s *Service) recordAnticheat(rep AnticheatReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.anticheatRuns++
	if err == nil {
		s.stats.analyzed += rep.Analyzed
		s.stats.flagged += rep.Flagged
	}
	s.stats.lastAnticheat = newPassStats(rep.RunID, rep.Pending, rep.Took, err)
}

func (s *Service) recordFaction(rep FactionReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.factionRuns++
	s.stats.clustersNew += rep.Result.Created
	s.stats.clustersMerged += rep.Result.Merged
	s.stats.clustered += rep.Result.Clustered
	s.stats.lastFaction = newPassStats(rep.RunID, rep.Pending, rep.Took, err)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"anticheatRuns":     s.stats.anticheatRuns,
		"factionRuns":       s.stats.factionRuns,
		"analyzed":          s.stats.analyzed,
		"flagged":           s.stats.flagged,
		"clustersCreated":   s.stats.clustersNew,
		"clustersMerged":    s.stats.clustersMerged,
		"clustered":         s.stats.clustered,
		"alertsHealthy":     s.sink.Healthy(),
		"anticheatSchedule": s.anticheatSchedule,
		"factionSchedule":   s.factionSchedule,
	}
	if s.stats.lastAnticheat != nil {
		out["lastAnticheat"] = *s.stats.lastAnticheat
	}
	if s.stats.lastFaction != nil {
		out["lastFaction"] = *s.stats.lastFaction
	}
	return out
}
