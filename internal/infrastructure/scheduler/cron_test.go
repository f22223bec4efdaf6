package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	_, err := NewCronScheduler("every day", nil, nil)
	require.Error(t, err)
}

func TestCronSchedulerNext(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("IST", 5*3600+1800)
	c, err := NewCronScheduler("0 3 * * *", loc, nil)
	require.NoError(t, err)

	next := c.Next(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, time.Date(2024, 5, 2, 3, 0, 0, 0, loc).Equal(next), "next = %s", next)
}

func TestCronSchedulerStartStop(t *testing.T) {
	t.Parallel()

	c, err := NewCronScheduler("@daily", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Start(ctx, func(time.Time) {}))
	require.NoError(t, c.Start(ctx, func(time.Time) {}), "second start is a no-op")
	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
}
