// Package freemium decides, per viewer session, which stream slots are
// watchable and whether the daily watch-time budget is exhausted. Pure state
// over wall-clock time; no network calls besides session persistence.
package freemium

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Upgrade prompt reasons surfaced to the UI layer.
const (
	ReasonWatchTimeExpired = "watch_time_expired"
	ReasonLockedSlot       = "locked_slot"
)

// Config holds the gating limits. Zero values fall back to the defaults.
type Config struct {
	FreeSlotLimit      int // leading slot indices always unlocked for free viewers
	TotalSlots         int // addressable slots in the grid
	WatchBudgetSeconds int // daily allowance for free viewers
}

// DefaultConfig returns the standard grid limits: 5 free slots of 8,
// 15 minutes of daily watch time.
func DefaultConfig() Config {
	return Config{FreeSlotLimit: 5, TotalSlots: 8, WatchBudgetSeconds: 900}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FreeSlotLimit <= 0 {
		c.FreeSlotLimit = d.FreeSlotLimit
	}
	if c.TotalSlots <= 0 {
		c.TotalSlots = d.TotalSlots
	}
	if c.WatchBudgetSeconds <= 0 {
		c.WatchBudgetSeconds = d.WatchBudgetSeconds
	}
	return c
}

// State is a point-in-time snapshot of a viewer's gate, shaped for the UI.
type State struct {
	IsPro              bool   `json:"is_pro"`
	IsWatching         bool   `json:"is_watching"`
	WatchTimeSeconds   int    `json:"watch_time_seconds"`
	WatchTimeExpired   bool   `json:"watch_time_expired"`
	RemainingSeconds   int    `json:"remaining_seconds"`
	RemainingFormatted string `json:"remaining_formatted"`
	LockedSlots        []bool `json:"locked_slots"`
	ShowUpgradeModal   bool   `json:"show_upgrade_modal"`
	UpgradeReason      string `json:"upgrade_reason,omitempty"`
}

// Gate is one viewer's watch-time state machine: Idle -> Watching -> Expired,
// with Expired terminal until the next calendar day in the configured zone.
// Pro viewers accumulate watch time for bookkeeping but are never locked out.
type Gate struct {
	cfg      Config
	store    SessionStore
	viewerID string
	isPro    bool
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location

	mu       sync.Mutex
	seconds  int
	day      string
	watching bool
	expired  bool
	closed   bool
	stop     chan struct{} // non-nil exactly while the tick goroutine runs

	showUpgrade   bool
	upgradeReason string

	saveWarn sync.Once
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLocation sets the time zone used for the daily reset boundary.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) { g.loc = loc }
}

// NewGate builds a gate for one viewer, loading the persisted day record.
// A record from a previous calendar day resets the budget to zero.
func NewGate(ctx context.Context, cfg Config, store SessionStore, viewerID string, isPro bool, logger *zap.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		cfg:      cfg.withDefaults(),
		store:    store,
		viewerID: viewerID,
		isPro:    isPro,
		logger:   logger,
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.day = g.today()
	if rec, err := store.Load(ctx, viewerID); err == nil && rec != nil && rec.Date == g.day {
		g.seconds = rec.Time
		g.expired = !g.isPro && g.seconds >= g.cfg.WatchBudgetSeconds
	}
	return g
}

func (g *Gate) today() string {
	return g.now().In(g.loc).Format("2006-01-02")
}

// IsSlotLocked reports whether the slot index is locked for this viewer.
func (g *Gate) IsSlotLocked(index int) bool {
	if g.isPro {
		return false
	}
	return index >= g.cfg.FreeSlotLimit
}

// StartWatching begins accumulation. A no-op when the budget is already
// exhausted for the day, or when a tick source is already running.
func (g *Gate) StartWatching() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()
	if g.closed || g.watching {
		return
	}
	if !g.isPro && g.expired {
		return
	}
	g.watching = true
	g.stop = make(chan struct{})
	go g.run(g.stop)
}

// StopWatching halts accumulation and releases the timer. Always allowed.
func (g *Gate) StopWatching() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watching = false
	g.releaseTimerLocked()
}

// Close tears the session down, releasing the timer and persisting state.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watching = false
	g.releaseTimerLocked()
	if !g.closed {
		g.closed = true
		g.persistLocked()
	}
}

func (g *Gate) run(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

// tick adds one watched second. The tick that reaches the budget stops
// watching, marks expiry, and raises the upgrade prompt in the same critical
// section, so no later tick is needed to observe the terminal state.
func (g *Gate) tick() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.watching {
		return
	}
	g.rolloverLocked()
	g.seconds++
	if !g.isPro && g.seconds >= g.cfg.WatchBudgetSeconds {
		g.watching = false
		g.expired = true
		g.showUpgrade = true
		g.upgradeReason = ReasonWatchTimeExpired
		g.releaseTimerLocked()
	}
	g.persistLocked()
}

// rolloverLocked resets the counter at the local-calendar-day boundary.
func (g *Gate) rolloverLocked() {
	today := g.today()
	if g.day == today {
		return
	}
	g.day = today
	g.seconds = 0
	g.expired = false
}

func (g *Gate) releaseTimerLocked() {
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
}

func (g *Gate) persistLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.store.Save(ctx, g.viewerID, Record{Time: g.seconds, Date: g.day}); err != nil {
		g.saveWarn.Do(func() {
			g.logger.Warn("failed to persist watch session", zap.String("viewer_id", g.viewerID), zap.Error(err))
		})
	}
}

// IsWatching reports whether the accumulation timer is running.
func (g *Gate) IsWatching() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.watching
}

// WatchTimeSeconds returns the seconds watched so far today.
func (g *Gate) WatchTimeSeconds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seconds
}

// WatchTimeExpired reports whether the daily budget is exhausted.
// Always false for pro viewers.
func (g *Gate) WatchTimeExpired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.isPro && g.expired
}

// RemainingTime returns the seconds left in today's budget.
func (g *Gate) RemainingTime() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked()
}

func (g *Gate) remainingLocked() int {
	remaining := g.cfg.WatchBudgetSeconds - g.seconds
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatRemainingTime renders the remaining budget as M:SS.
func (g *Gate) FormatRemainingTime() string {
	remaining := g.RemainingTime()
	return fmt.Sprintf("%d:%02d", remaining/60, remaining%60)
}

// PromptUpgrade raises the upgrade modal with the given reason
// (e.g. a free viewer tapping a locked slot).
func (g *Gate) PromptUpgrade(reason string) {
	if g.isPro {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.showUpgrade = true
	g.upgradeReason = reason
}

// AckUpgrade clears the upgrade prompt after the UI has shown it.
func (g *Gate) AckUpgrade() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.showUpgrade = false
	g.upgradeReason = ""
}

// Snapshot returns the gate state shaped for the UI layer.
func (g *Gate) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	locked := make([]bool, g.cfg.TotalSlots)
	for i := range locked {
		locked[i] = !g.isPro && i >= g.cfg.FreeSlotLimit
	}
	remaining := g.remainingLocked()
	return State{
		IsPro:              g.isPro,
		IsWatching:         g.watching,
		WatchTimeSeconds:   g.seconds,
		WatchTimeExpired:   !g.isPro && g.expired,
		RemainingSeconds:   remaining,
		RemainingFormatted: fmt.Sprintf("%d:%02d", remaining/60, remaining%60),
		LockedSlots:        locked,
		ShowUpgradeModal:   g.showUpgrade,
		UpgradeReason:      g.upgradeReason,
	}
}
