// Package monitor drives the unbounded polling cycle: config reload check,
// session health and recycle, the one-time follow pass, per-account fetch and
// change detection with pacing jitter, and loop-level failure containment.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tweetwatch/tweetwatch/internal/accounts"
	"github.com/tweetwatch/tweetwatch/internal/fetch"
	"github.com/tweetwatch/tweetwatch/internal/tweet"
)

// SessionDriver is the session lifecycle surface the loop needs. All methods
// contain their own failures; none of them return errors.
type SessionDriver interface {
	Alive() bool
	Connect(ctx context.Context) bool
	Recycle(ctx context.Context) bool
	Discard()
	FollowAll(ctx context.Context, handles []string)
	Page() fetch.Page
}

// Fetcher retrieves recent posts for one handle through the session's page.
type Fetcher interface {
	Recent(page fetch.Page, handle string) ([]tweet.Post, error)
}

// Detector runs change detection over a fetched batch.
type Detector interface {
	Process(ctx context.Context, acct *accounts.Account, posts []tweet.Post) bool
}

type Config struct {
	// BaseInterval is the sleep between full cycles, jittered by
	// ±CycleJitter.
	BaseInterval time.Duration
	CycleJitter  time.Duration
	// AccountPauseMin/Max bound the randomized pause between accounts.
	AccountPauseMin time.Duration
	AccountPauseMax time.Duration
	// RecycleEvery is the number of iterations between session recycles.
	RecycleEvery int
	// Cooldown is the pause applied after a session-level failure. Retries
	// are not capped; the loop keeps trying for the life of the process.
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseInterval:    60 * time.Second,
		CycleJitter:     10 * time.Second,
		AccountPauseMin: 3 * time.Second,
		AccountPauseMax: 8 * time.Second,
		RecycleEvery:    100,
		Cooldown:        60 * time.Second,
	}
}

// State is the loop's own mutable state, threaded through iterations rather
// than held as process globals.
type State struct {
	// Cycles counts iterations since the last recycle.
	Cycles int
	// FollowedOnce records that the one-time follow pass ran. It is set on
	// the first successful iteration of the process and never again, even
	// across recycles.
	FollowedOnce bool
}

type Monitor struct {
	cfg      Config
	store    *accounts.Store
	session  SessionDriver
	fetcher  Fetcher
	detector Detector
	logger   *slog.Logger
	tracer   trace.Tracer
	rng      *rand.Rand

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) bool
}

func New(cfg Config, store *accounts.Store, session SessionDriver, fetcher Fetcher, detector Detector, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = def.BaseInterval
	}
	if cfg.CycleJitter <= 0 {
		cfg.CycleJitter = def.CycleJitter
	}
	if cfg.AccountPauseMin <= 0 {
		cfg.AccountPauseMin = def.AccountPauseMin
	}
	if cfg.AccountPauseMax <= cfg.AccountPauseMin {
		cfg.AccountPauseMax = cfg.AccountPauseMin + def.AccountPauseMax - def.AccountPauseMin
	}
	if cfg.RecycleEvery <= 0 {
		cfg.RecycleEvery = def.RecycleEvery
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Monitor{
		cfg:      cfg,
		store:    store,
		session:  session,
		fetcher:  fetcher,
		detector: detector,
		logger:   logger,
		tracer:   otel.Tracer("tweetwatch/monitor"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepCtx,
	}
}

// Run executes the monitoring loop until ctx is canceled. The loop itself
// never returns an error: every failure below startup is contained and
// retried.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("monitor started",
		"interval", m.cfg.BaseInterval,
		"recycle_every", m.cfg.RecycleEvery,
	)
	st := State{}
	for {
		if ctx.Err() != nil {
			m.logger.Info("stop requested, shutting down")
			return
		}
		st = m.runOnce(ctx, st)
	}
}

// runOnce performs a single iteration and returns the advanced state.
func (m *Monitor) runOnce(ctx context.Context, st State) State {
	cycleCtx, span := m.tracer.Start(ctx, "monitor.cycle",
		trace.WithAttributes(attribute.Int("cycle", st.Cycles)))
	defer span.End()

	m.store.CheckExternalUpdate()

	if !m.session.Alive() {
		if !m.session.Connect(cycleCtx) {
			m.logger.Error("session connect failed, cooling down", "cooldown", m.cfg.Cooldown)
			m.sleep(ctx, m.cfg.Cooldown)
			return st
		}
	}

	if !st.FollowedOnce {
		m.session.FollowAll(cycleCtx, m.enabledHandles())
		st.FollowedOnce = true
	}

	st.Cycles++
	if st.Cycles >= m.cfg.RecycleEvery {
		st.Cycles = 0
		if !m.session.Recycle(cycleCtx) {
			m.logger.Error("session recycle failed, discarding session", "cooldown", m.cfg.Cooldown)
			m.session.Discard()
			m.sleep(ctx, m.cfg.Cooldown)
			return st
		}
	}

	for _, acct := range m.store.Accounts() {
		if !acct.Enabled {
			continue
		}
		if !m.checkAccount(cycleCtx, acct) {
			break
		}
		if !m.sleep(ctx, m.accountPause()) {
			return st
		}
	}

	delay := m.cycleDelay()
	m.logger.Info("cycle complete", "next_check_in", delay)
	m.sleep(ctx, delay)
	return st
}

// checkAccount fetches and runs detection for one account. Failures are
// contained here: the account is skipped for this cycle and the loop moves
// on. It returns false when the session died under us, in which case the
// caller abandons the rest of the cycle and the next iteration reconnects.
func (m *Monitor) checkAccount(ctx context.Context, acct *accounts.Account) bool {
	ctx, span := m.tracer.Start(ctx, "monitor.check_account",
		trace.WithAttributes(attribute.String("handle", acct.Handle)))
	defer span.End()

	m.logger.Info("checking account", "name", acct.Name, "handle", acct.Handle)

	page := m.session.Page()
	if page == nil {
		m.logger.Error("session lost mid-cycle, discarding", "handle", acct.Handle)
		m.session.Discard()
		return false
	}

	posts, err := m.fetcher.Recent(page, acct.Handle)
	if err != nil {
		if errors.Is(err, fetch.ErrUnavailable) {
			m.logger.Warn("posts unavailable this cycle", "handle", acct.Handle)
		} else {
			m.logger.Error("fetch failed", "handle", acct.Handle, "error", err)
		}
		return true
	}
	m.detector.Process(ctx, acct, posts)
	return true
}

func (m *Monitor) enabledHandles() []string {
	var handles []string
	for _, acct := range m.store.Accounts() {
		if acct.Enabled {
			handles = append(handles, acct.Handle)
		}
	}
	return handles
}

// accountPause returns a random pause in [AccountPauseMin, AccountPauseMax]
// so per-account requests do not arrive in bursts.
func (m *Monitor) accountPause() time.Duration {
	spread := m.cfg.AccountPauseMax - m.cfg.AccountPauseMin
	return m.cfg.AccountPauseMin + time.Duration(m.rng.Int63n(int64(spread)+1))
}

// cycleDelay returns the base interval jittered by ±CycleJitter.
func (m *Monitor) cycleDelay() time.Duration {
	jitter := time.Duration(m.rng.Int63n(2*int64(m.cfg.CycleJitter)+1)) - m.cfg.CycleJitter
	delay := m.cfg.BaseInterval + jitter
	if delay < 0 {
		delay = 0
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
