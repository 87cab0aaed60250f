package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/ghwatch/internal/models"
)

func TestHistory_ListsRuns(t *testing.T) {
	_, out := testEnv(t)

	s, err := openStores(context.Background(), true)
	require.NoError(t, err)
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.recorder().RecordRun(context.Background(), &models.Run{
		ID: "01RUNA", StartedAt: started, FinishedAt: started.Add(time.Second),
		Status: models.RunStatusNotified, Fetched: 3, Notified: 3, StateSaved: true,
	}))
	require.NoError(t, s.recorder().RecordRun(context.Background(), &models.Run{
		ID: "01RUNB", StartedAt: started.Add(time.Hour), FinishedAt: started.Add(time.Hour),
		Status: models.RunStatusNotifyFailed, Fetched: 1, Error: "discord webhook returned status 500",
	}))
	require.NoError(t, s.Close())

	require.NoError(t, historyRun(context.Background()))
	text := out.String()
	assert.Contains(t, text, "notified")
	assert.Contains(t, text, "notify_failed")
	assert.Contains(t, text, "yes")
	assert.Contains(t, text, "discord webhook returned status 500")
}

func TestHistory_EmptyAndDisabled(t *testing.T) {
	_, out := testEnv(t)
	require.NoError(t, historyRun(context.Background()))
	assert.Contains(t, out.String(), "No runs recorded yet")

	viper.Set("history.enabled", false)
	require.NoError(t, historyRun(context.Background()))
	assert.Contains(t, ui.ErrOut.(*bytes.Buffer).String(), "Run history is disabled")
}
