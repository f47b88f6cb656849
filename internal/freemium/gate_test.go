package freemium

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestGate(t *testing.T, store SessionStore, isPro bool, now time.Time) *Gate {
	t.Helper()
	if store == nil {
		store = NewMemorySessionStore()
	}
	g := NewGate(context.Background(), DefaultConfig(), store, "viewer-1", isPro, nil,
		WithClock(fixedClock(now)), WithLocation(time.UTC))
	t.Cleanup(g.Close)
	return g
}

func TestSlotLockBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	free := newTestGate(t, nil, false, now)
	assert.False(t, free.IsSlotLocked(0))
	assert.False(t, free.IsSlotLocked(4), "last free slot")
	assert.True(t, free.IsSlotLocked(5), "first locked slot")
	assert.True(t, free.IsSlotLocked(7))

	pro := newTestGate(t, nil, true, now)
	assert.False(t, pro.IsSlotLocked(0))
	assert.False(t, pro.IsSlotLocked(7))
}

func TestWatchBudgetExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore()
	budget := DefaultConfig().WatchBudgetSeconds
	require.NoError(t, store.Save(context.Background(), "viewer-1", Record{Time: budget - 1, Date: "2026-03-01"}))

	g := newTestGate(t, store, false, now)
	require.Equal(t, budget-1, g.WatchTimeSeconds())
	require.False(t, g.WatchTimeExpired())

	// The tick that crosses the threshold stops watching, marks expiry and
	// raises the upgrade prompt together.
	g.mu.Lock()
	g.watching = true
	g.mu.Unlock()
	g.tick()

	assert.True(t, g.WatchTimeExpired())
	assert.False(t, g.IsWatching())
	snap := g.Snapshot()
	assert.True(t, snap.ShowUpgradeModal)
	assert.Equal(t, ReasonWatchTimeExpired, snap.UpgradeReason)
	assert.Equal(t, 0, snap.RemainingSeconds)

	// Expiry is terminal for the day: starting again is a silent no-op.
	g.StartWatching()
	assert.False(t, g.IsWatching())

	rec, err := store.Load(context.Background(), "viewer-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, budget, rec.Time)
	assert.Equal(t, "2026-03-01", rec.Date)
}

func TestDayRolloverResetsOnLoad(t *testing.T) {
	store := NewMemorySessionStore()
	require.NoError(t, store.Save(context.Background(), "viewer-1", Record{Time: 800, Date: "2023-01-01"}))

	today := time.Date(2023, 1, 2, 0, 30, 0, 0, time.UTC)
	g := newTestGate(t, store, false, today)

	assert.Equal(t, 0, g.WatchTimeSeconds(), "a stale day record resets to zero")
	assert.False(t, g.WatchTimeExpired())
}

func TestSameDayRecordRestored(t *testing.T) {
	store := NewMemorySessionStore()
	require.NoError(t, store.Save(context.Background(), "viewer-1", Record{Time: 800, Date: "2023-01-01"}))

	today := time.Date(2023, 1, 1, 18, 0, 0, 0, time.UTC)
	g := newTestGate(t, store, false, today)
	assert.Equal(t, 800, g.WatchTimeSeconds())
}

func TestMidnightRolloverDuringTick(t *testing.T) {
	current := time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)
	store := NewMemorySessionStore()
	g := NewGate(context.Background(), DefaultConfig(), store, "viewer-1", false, nil,
		WithClock(func() time.Time { return current }), WithLocation(time.UTC))
	t.Cleanup(g.Close)

	g.mu.Lock()
	g.watching = true
	g.seconds = 500
	g.mu.Unlock()

	current = current.Add(2 * time.Second) // past midnight
	g.tick()

	assert.Equal(t, 1, g.WatchTimeSeconds(), "counter restarts at the day boundary")
}

func TestProViewerNeverExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore()
	budget := DefaultConfig().WatchBudgetSeconds
	require.NoError(t, store.Save(context.Background(), "viewer-1", Record{Time: budget + 100, Date: "2026-03-01"}))

	g := newTestGate(t, store, true, now)
	assert.False(t, g.WatchTimeExpired(), "pro is never subject to expiry")

	// Watch time still accumulates for bookkeeping.
	g.mu.Lock()
	g.watching = true
	g.mu.Unlock()
	g.tick()
	assert.Equal(t, budget+101, g.WatchTimeSeconds())
	assert.True(t, g.IsWatching())
	assert.False(t, g.Snapshot().ShowUpgradeModal)
}

func TestStartWatchingIsSingleTimer(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g := newTestGate(t, nil, false, now)

	g.StartWatching()
	require.True(t, g.IsWatching())
	g.mu.Lock()
	first := g.stop
	g.mu.Unlock()

	g.StartWatching()
	g.mu.Lock()
	second := g.stop
	g.mu.Unlock()
	assert.Equal(t, first, second, "a second start must not spawn another tick source")

	g.StopWatching()
	assert.False(t, g.IsWatching())
	g.mu.Lock()
	assert.Nil(t, g.stop, "stopping releases the timer handle")
	g.mu.Unlock()
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g := newTestGate(t, nil, false, now)
	assert.NotPanics(t, g.StopWatching)
	assert.False(t, g.IsWatching())
}

func TestFormatRemainingTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		watched int
		want    string
	}{
		{"full budget", 0, "15:00"},
		{"one minute left", 840, "1:00"},
		{"seconds zero-padded", 833, "1:07"},
		{"under a minute", 895, "0:05"},
		{"exhausted", 900, "0:00"},
		{"over budget clamps to zero", 950, "0:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemorySessionStore()
			require.NoError(t, store.Save(context.Background(), "viewer-1", Record{Time: tt.watched, Date: "2026-03-01"}))
			g := newTestGate(t, store, false, now)
			assert.Equal(t, tt.want, g.FormatRemainingTime())
		})
	}
}

func TestAckUpgradeClearsPrompt(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g := newTestGate(t, nil, false, now)

	g.PromptUpgrade(ReasonLockedSlot)
	snap := g.Snapshot()
	require.True(t, snap.ShowUpgradeModal)
	require.Equal(t, ReasonLockedSlot, snap.UpgradeReason)

	g.AckUpgrade()
	snap = g.Snapshot()
	assert.False(t, snap.ShowUpgradeModal)
	assert.Empty(t, snap.UpgradeReason)
}

func TestSnapshotLockedSlots(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g := newTestGate(t, nil, false, now)
	snap := g.Snapshot()
	require.Len(t, snap.LockedSlots, 8)
	assert.Equal(t, []bool{false, false, false, false, false, true, true, true}, snap.LockedSlots)
}
