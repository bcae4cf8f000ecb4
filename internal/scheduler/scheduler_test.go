package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_RejectsBadSpecAndDuplicates(t *testing.T) {
	s := New(time.UTC, nil)

	assert.Error(t, s.Register("hourly", "not a cron spec", func() {}))
	require.NoError(t, s.Register("hourly", "0 * * * *", func() {}))
	assert.Error(t, s.Register("hourly", "0 * * * *", func() {}))
}

func TestNext_FollowsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	s := New(loc, nil)
	require.NoError(t, s.Register("daily", "0 0 * * *", func() {}))

	_, ok := s.Next("daily")
	assert.False(t, ok, "no schedule before Start")

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	next, ok := s.Next("daily")
	require.True(t, ok)
	local := next.In(loc)
	assert.Equal(t, 0, local.Hour())
	assert.Equal(t, 0, local.Minute())

	_, ok = s.Next("missing")
	assert.False(t, ok)
}

func TestJobRunsAndPanicsAreRecovered(t *testing.T) {
	s := New(time.UTC, nil)
	ran := make(chan struct{}, 2)
	require.NoError(t, s.Register("boom", "@every 1s", func() {
		ran <- struct{}{}
		panic("job exploded")
	}))

	s.Start()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
