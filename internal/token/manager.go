// Package token owns the session-token lifecycle: captcha buffer prefill,
// background replenishment, and periodic refresh.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/calcourts/portal-scraper/internal/captcha"
	"github.com/calcourts/portal-scraper/internal/metrics"
	"github.com/calcourts/portal-scraper/internal/scraper"
)

// State is the lifecycle state of the Manager.
type State int32

// Manager lifecycle states.
const (
	StateUnstarted State = iota
	StateStarting
	StateRunning
	StateStopped
)

// Config controls Manager timing behavior.
type Config struct {
	BufferSize int
	// RefreshInterval is how long the refresh loop sleeps between token
	// exchanges.
	RefreshInterval time.Duration
	// TakeTimeout bounds how long the refresh loop waits for a buffered
	// solution. Generous: a refresh can tolerate a solve in flight.
	TakeTimeout time.Duration
	// SolveFailureBackoff is the replenish loop's delay after a failed solve.
	SolveFailureBackoff time.Duration
	// BufferFullPoll is the replenish loop's sleep while the buffer is full.
	BufferFullPoll time.Duration
	// JoinTimeout bounds how long Stop waits for both loops to exit.
	JoinTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 2
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 10 * time.Minute
	}
	if c.TakeTimeout <= 0 {
		c.TakeTimeout = time.Minute
	}
	if c.SolveFailureBackoff <= 0 {
		c.SolveFailureBackoff = 10 * time.Second
	}
	if c.BufferFullPoll <= 0 {
		c.BufferFullPoll = 5 * time.Second
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 5 * time.Second
	}
	return c
}

// Manager owns the current session token and the captcha buffer behind it.
// Exactly one current token exists at a time; readers receive a snapshot via
// Token and never a mutable handle.
type Manager struct {
	solver    scraper.CaptchaSolver
	exchanger scraper.TokenExchanger
	buffer    *captcha.Buffer
	cfg       Config
	logger    *zap.Logger

	tokenMu sync.RWMutex
	token   string

	stateMu sync.Mutex
	state   State

	stopCtx  context.Context
	stopFn   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager constructs a Manager. Call Start before reading tokens.
func NewManager(solver scraper.CaptchaSolver, exchanger scraper.TokenExchanger, cfg Config, logger *zap.Logger) *Manager {
	cfg = cfg.withDefaults()
	stopCtx, stopFn := context.WithCancel(context.Background())
	return &Manager{
		solver:    solver,
		exchanger: exchanger,
		buffer:    captcha.NewBuffer(cfg.BufferSize),
		cfg:       cfg,
		logger:    logger,
		stopCtx:   stopCtx,
		stopFn:    stopFn,
	}
}

// Buffer exposes the underlying captcha buffer (used by tests and the app
// container for gauge reporting).
func (m *Manager) Buffer() *captcha.Buffer {
	return m.buffer
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

// Start pre-fills the captcha buffer, obtains the initial session token, and
// launches the replenish and refresh loops. Individual solve failures during
// prefill are logged and tolerated; failure to obtain the initial token is
// fatal and reported as scraper.ErrInitializationFailed.
func (m *Manager) Start(ctx context.Context) error {
	m.stateMu.Lock()
	if m.state != StateUnstarted {
		m.stateMu.Unlock()
		return fmt.Errorf("token manager already started")
	}
	m.state = StateStarting
	m.stateMu.Unlock()

	m.logger.Info("starting token manager", zap.Int("buffer_size", m.cfg.BufferSize))

	for i := 0; i < m.cfg.BufferSize; i++ {
		solution, err := m.solver.Solve(ctx)
		if err != nil {
			m.logger.Error("prefill solve failed",
				zap.Int("slot", i+1),
				zap.Int("buffer_size", m.cfg.BufferSize),
				zap.Error(err),
			)
			metrics.CaptchaSolve("error")
			continue
		}
		metrics.CaptchaSolve("ok")
		if err := m.buffer.Put(ctx, solution); err != nil {
			return fmt.Errorf("prefill buffer: %w", err)
		}
		m.logger.Debug("captcha buffered", zap.Int("buffered", m.buffer.Len()))
	}

	solution, err := m.buffer.Take(ctx, m.cfg.TakeTimeout)
	if err != nil {
		return fmt.Errorf("%w: no buffered solution: %v", scraper.ErrInitializationFailed, err)
	}
	initial, err := m.exchanger.Exchange(ctx, solution)
	if err != nil {
		return fmt.Errorf("%w: %v", scraper.ErrInitializationFailed, err)
	}
	if initial == "" {
		return fmt.Errorf("%w: empty token", scraper.ErrInitializationFailed)
	}
	m.setToken(initial)
	m.setState(StateRunning)

	m.wg.Add(2)
	go m.replenishLoop(ctx)
	go m.refreshLoop(ctx)

	m.logger.Info("token manager started")
	return nil
}

// Token returns a snapshot of the current session token, or "" before Start
// has completed. Non-blocking and safe for concurrent use.
func (m *Manager) Token() string {
	m.tokenMu.RLock()
	defer m.tokenMu.RUnlock()
	return m.token
}

func (m *Manager) setToken(token string) {
	m.tokenMu.Lock()
	m.token = token
	m.tokenMu.Unlock()
}

// Stop signals both loops to exit and waits up to JoinTimeout for them.
// In-flight network calls are allowed to complete. Idempotent.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.logger.Info("stopping token manager")
		m.stopFn()

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(m.cfg.JoinTimeout):
			m.logger.Warn("token manager loops did not exit before join timeout")
		}
		m.setState(StateStopped)
	})
}

// replenishLoop keeps the captcha buffer topped up. It never exits on a
// transient failure; only the stop signal ends it.
func (m *Manager) replenishLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		if m.stopped() {
			return
		}
		if m.buffer.Full() {
			if !m.sleep(m.cfg.BufferFullPoll) {
				return
			}
			continue
		}

		solution, err := m.solver.Solve(ctx)
		if err != nil {
			m.logger.Warn("captcha solve failed, backing off",
				zap.Duration("backoff", m.cfg.SolveFailureBackoff),
				zap.Error(err),
			)
			metrics.CaptchaSolve("error")
			if !m.sleep(m.cfg.SolveFailureBackoff) {
				return
			}
			continue
		}
		metrics.CaptchaSolve("ok")

		if err := m.buffer.Put(m.stopCtx, solution); err != nil {
			return
		}
		m.logger.Debug("captcha buffered",
			zap.Int("buffered", m.buffer.Len()),
			zap.Int("capacity", m.buffer.Cap()),
		)
	}
}

// refreshLoop exchanges a buffered solution for a fresh session token on a
// fixed cadence. A failed exchange keeps the old token and returns the
// consumed solution to the head of the buffer.
func (m *Manager) refreshLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		if !m.sleep(m.cfg.RefreshInterval) {
			return
		}

		solution, err := m.buffer.Take(m.stopCtx, m.cfg.TakeTimeout)
		if err != nil {
			if errors.Is(err, scraper.ErrExhausted) {
				m.logger.Warn("token refresh skipped: captcha buffer exhausted")
				metrics.TokenRefresh("exhausted")
				continue
			}
			return
		}

		fresh, err := m.exchanger.Exchange(ctx, solution)
		if err != nil || fresh == "" {
			m.logger.Error("token refresh failed, keeping old token", zap.Error(err))
			metrics.TokenRefresh("error")
			if perr := m.buffer.PutFront(m.stopCtx, solution); perr != nil {
				return
			}
			continue
		}

		m.setToken(fresh)
		metrics.TokenRefresh("ok")
		m.logger.Info("session token refreshed")
	}
}

func (m *Manager) stopped() bool {
	select {
	case <-m.stopCtx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for d or until the stop signal; it reports false when stopped.
func (m *Manager) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-m.stopCtx.Done():
		return false
	case <-timer.C:
		return true
	}
}
