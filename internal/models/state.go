package models

import "time"

// Epoch is the watermark assumed for any repo or source type without state.
var Epoch = time.Unix(0, 0).UTC()

// SourceState is the watermark of a single source type within one repo.
type SourceState struct {
	LastTimestamp time.Time `json:"lastTimestamp"`
}

// RepositoryState holds the watermarks of all seen source types of one repo.
type RepositoryState map[SourceType]SourceState

// Watermark returns the last processed timestamp for t, or Epoch.
func (r RepositoryState) Watermark(t SourceType) time.Time {
	if s, ok := r[t]; ok {
		return s.LastTimestamp
	}
	return Epoch
}

// Clone returns an independent copy of the repository state.
func (r RepositoryState) Clone() RepositoryState {
	out := make(RepositoryState, len(r))
	for t, s := range r {
		out[t] = s
	}
	return out
}

// State maps a repo full name to its watermarks. It is the entire
// persisted state.
type State map[string]RepositoryState

// Clone returns a structural deep copy. The result never aliases s.
func (s State) Clone() State {
	out := make(State, len(s))
	for repo, rs := range s {
		out[repo] = rs.Clone()
	}
	return out
}

// Repo returns the state of one repo. The result is never nil.
func (s State) Repo(name string) RepositoryState {
	if rs, ok := s[name]; ok && rs != nil {
		return rs
	}
	return RepositoryState{}
}
