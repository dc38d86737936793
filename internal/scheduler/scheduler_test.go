package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddJob(t *testing.T) {
	s := New()

	require.NoError(t, s.AddJob("sweep", "@every 1m", func() {}))
	require.NoError(t, s.AddJob("prune", "0 3 * * *", func() {}))
	assert.Equal(t, 2, s.JobCount())
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := New()

	err := s.AddJob("broken", "not a cron spec", func() {})
	require.Error(t, err)
	assert.Zero(t, s.JobCount())
}

func TestAddJobReplacesExisting(t *testing.T) {
	s := New()

	require.NoError(t, s.AddJob("sweep", "@every 1m", func() {}))
	require.NoError(t, s.AddJob("sweep", "@every 5m", func() {}))
	assert.Equal(t, 1, s.JobCount())
}

func TestRemoveJob(t *testing.T) {
	s := New()

	require.NoError(t, s.AddJob("sweep", "@every 1m", func() {}))
	s.RemoveJob("sweep")
	assert.Zero(t, s.JobCount())

	// Removing an unknown name is a no-op.
	s.RemoveJob("ghost")
	assert.Zero(t, s.JobCount())
}

func TestStartStop(t *testing.T) {
	s := New()
	require.NoError(t, s.AddJob("sweep", "@every 1h", func() {}))

	s.Start()
	s.Stop()
}
