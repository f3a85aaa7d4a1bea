package accounts

import "context"

// Static resolves from a fixed account to faction table.
type Static struct {
	factions map[string]string
}

// NewStatic copies table into a new resolver.
func NewStatic(table map[string]string) *Static {
	s := &Static{factions: make(map[string]string, len(table))}
	for k, v := range table {
		s.factions[k] = v
	}
	return s
}

// FactionOf implements cluster.Resolver.
func (s *Static) FactionOf(_ context.Context, accountID string) (string, bool, error) {
	f, ok := s.factions[accountID]
	if !ok || f == "" {
		return "", false, nil
	}
	return f, true, nil
}
