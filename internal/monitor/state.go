package monitor

import "github.com/joescharf/ghwatch/internal/models"

// CalculateNextState returns the watermark state after accounting for
// activities. current is never modified; the result shares no maps with it.
//
// Only the maximum creation time per (repo, source type) matters, so the
// result does not depend on the order of activities and reapplying the
// same activities is a no-op. Items without a repo are ignored.
func CalculateNextState(current models.State, activities []models.ActivityItem) models.State {
	next := current.Clone()
	for _, a := range activities {
		if a.Repo == "" {
			continue
		}
		rs, ok := next[a.Repo]
		if !ok || rs == nil {
			rs = models.RepositoryState{}
			next[a.Repo] = rs
		}
		src, ok := rs[a.SourceType]
		if !ok {
			src = models.SourceState{LastTimestamp: models.Epoch}
		}
		if a.CreatedAt.After(src.LastTimestamp) {
			src.LastTimestamp = a.CreatedAt
		}
		rs[a.SourceType] = src
	}
	return next
}
