package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceTypeValid(t *testing.T) {
	for _, st := range AllSourceTypes() {
		assert.True(t, st.Valid(), st)
	}
	assert.False(t, SourceType("release").Valid())
	assert.False(t, SourceType("").Valid())
}

func TestActivityItem_Summary(t *testing.T) {
	var a ActivityItem
	assert.False(t, a.HasSummary())

	b := a.WithSummary("")
	assert.False(t, b.HasSummary(), "empty summary does not count")

	c := a.WithSummary("fixes a leak")
	assert.True(t, c.HasSummary())
	assert.Nil(t, a.Summary, "receiver unchanged")
}

func TestActivityItem_Before(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := ActivityItem{Repo: "a/b", SourceType: SourceIssue, ID: "1", CreatedAt: t0}

	later := base
	later.CreatedAt = t0.Add(time.Second)
	assert.True(t, base.Before(later))
	assert.False(t, later.Before(base))

	// Same instant in another zone is a tie on time.
	sameInstant := base
	sameInstant.CreatedAt = t0.In(time.FixedZone("KST", 9*3600))
	sameInstant.ID = "2"
	assert.True(t, base.Before(sameInstant))

	otherRepo := base
	otherRepo.Repo = "a/c"
	assert.True(t, base.Before(otherRepo))

	otherType := base
	otherType.SourceType = SourcePullRequest
	assert.True(t, base.Before(otherType))

	assert.False(t, base.Before(base))
}

func TestRepositoryState_Watermark(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rs := RepositoryState{SourceIssue: {LastTimestamp: ts}}
	assert.Equal(t, ts, rs.Watermark(SourceIssue))
	assert.Equal(t, Epoch, rs.Watermark(SourceDiscussion))

	var empty RepositoryState
	assert.Equal(t, Epoch, empty.Watermark(SourceIssue))
}

func TestState_Clone(t *testing.T) {
	s := State{"a/b": {SourceIssue: {LastTimestamp: time.Unix(100, 0)}}}
	c := s.Clone()
	c["a/b"][SourceIssue] = SourceState{LastTimestamp: time.Unix(200, 0)}
	c["x/y"] = RepositoryState{}

	assert.Equal(t, time.Unix(100, 0), s["a/b"][SourceIssue].LastTimestamp)
	assert.NotContains(t, s, "x/y")
}

func TestState_Repo(t *testing.T) {
	s := State{"a/b": nil}
	assert.NotNil(t, s.Repo("a/b"))
	assert.NotNil(t, s.Repo("missing"))
}

func TestState_JSON(t *testing.T) {
	s := State{"a/b": {SourceIssue: {LastTimestamp: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)}}}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a/b":{"issue":{"lastTimestamp":"2023-01-03T00:00:00Z"}}}`, string(data))
}
