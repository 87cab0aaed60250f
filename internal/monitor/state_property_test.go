package monitor

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/joescharf/ghwatch/internal/models"
)

var (
	propRepos = []string{"o/a", "o/b", "p/c", ""}
	propTypes = models.AllSourceTypes()
	propBase  = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
)

func genItem() *rapid.Generator[models.ActivityItem] {
	return rapid.Custom(func(t *rapid.T) models.ActivityItem {
		return models.ActivityItem{
			Repo:       rapid.SampledFrom(propRepos).Draw(t, "repo"),
			SourceType: rapid.SampledFrom(propTypes).Draw(t, "type"),
			ID:         rapid.StringMatching(`[0-9]{1,4}`).Draw(t, "id"),
			CreatedAt:  propBase.Add(time.Duration(rapid.IntRange(0, 1000).Draw(t, "minutes")) * time.Minute),
		}
	})
}

func genState() *rapid.Generator[models.State] {
	return rapid.Custom(func(t *rapid.T) models.State {
		state := models.State{}
		for _, repo := range propRepos[:3] {
			if !rapid.Bool().Draw(t, "has_"+repo) {
				continue
			}
			rs := models.RepositoryState{}
			for _, st := range propTypes {
				if rapid.Bool().Draw(t, "has_"+repo+string(st)) {
					m := rapid.IntRange(0, 1000).Draw(t, "wm_"+repo+string(st))
					rs[st] = models.SourceState{LastTimestamp: propBase.Add(time.Duration(m) * time.Minute)}
				}
			}
			state[repo] = rs
		}
		return state
	})
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func TestNextState_WatermarkIsTrueMaximum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := genState().Draw(t, "state")
		items := rapid.SliceOf(genItem()).Draw(t, "items")
		next := CalculateNextState(current, items)

		want := map[string]map[models.SourceType]time.Time{}
		for repo, rs := range current {
			want[repo] = map[models.SourceType]time.Time{}
			for st, src := range rs {
				want[repo][st] = src.LastTimestamp
			}
		}
		for _, it := range items {
			if it.Repo == "" {
				continue
			}
			if want[it.Repo] == nil {
				want[it.Repo] = map[models.SourceType]time.Time{}
			}
			prev, ok := want[it.Repo][it.SourceType]
			if !ok {
				prev = models.Epoch
			}
			want[it.Repo][it.SourceType] = maxTime(prev, it.CreatedAt)
		}

		if _, ok := next[""]; ok {
			t.Fatalf("empty repo key present in %v", next)
		}
		for repo, types := range want {
			for st, wm := range types {
				got := next[repo].Watermark(st)
				if !got.Equal(wm) {
					t.Fatalf("%s/%s: got %v, want %v", repo, st, got, wm)
				}
				if got.Before(current.Repo(repo).Watermark(st)) {
					t.Fatalf("%s/%s regressed", repo, st)
				}
			}
		}
	})
}

func TestNextState_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := genState().Draw(t, "state")
		items := rapid.SliceOf(genItem()).Draw(t, "items")

		once := CalculateNextState(current, items)
		twice := CalculateNextState(once, items)
		assertStatesEqual(t, once, twice)
	})
}

func TestNextState_OrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := genState().Draw(t, "state")
		items := rapid.SliceOf(genItem()).Draw(t, "items")
		perm := rapid.Permutation(items).Draw(t, "perm")

		assertStatesEqual(t, CalculateNextState(current, items), CalculateNextState(current, perm))
	})
}

func TestNextState_DoesNotMutateInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := genState().Draw(t, "state")
		snapshot := current.Clone()
		items := rapid.SliceOf(genItem()).Draw(t, "items")

		_ = CalculateNextState(current, items)
		assertStatesEqual(t, snapshot, current)
	})
}

func assertStatesEqual(t *rapid.T, a, b models.State) {
	if len(a) != len(b) {
		t.Fatalf("repo count differs: %v vs %v", a, b)
	}
	for repo, rs := range a {
		other, ok := b[repo]
		if !ok || len(other) != len(rs) {
			t.Fatalf("repo %q differs: %v vs %v", repo, rs, other)
		}
		for st, src := range rs {
			if !other[st].LastTimestamp.Equal(src.LastTimestamp) {
				t.Fatalf("%s/%s: %v vs %v", repo, st, src.LastTimestamp, other[st].LastTimestamp)
			}
		}
	}
}
