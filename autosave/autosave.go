// Package autosave debounces document changes into saves and tracks the save status.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type ISaver interface {
	// PreSync pushes the pending local changes to the server side copy.
	PreSync(ctx context.Context) error
	Save(ctx context.Context) error
}

// ErrorHookFunc is called after a failed save has left the in-flight slot.
type ErrorHookFunc func(ctx context.Context, err error)

type config struct {
	ctx       context.Context
	interval  time.Duration
	clock     IClock
	indicator IIndicator
	presenter IPresenter
	onError   ErrorHookFunc
}

type Option func(c *config)

func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// WithInterval sets the debounce window, a non positive value disables autosaving.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		c.interval = d
	}
}

func WithClock(clk IClock) Option {
	return func(c *config) {
		c.clock = clk
	}
}

func WithIndicator(ind IIndicator) Option {
	return func(c *config) {
		c.indicator = ind
	}
}

func WithPresenter(p IPresenter) Option {
	return func(c *config) {
		c.presenter = p
	}
}

func WithErrorHook(fn ErrorHookFunc) Option {
	return func(c *config) {
		c.onError = fn
	}
}

type Controller struct {
	c     *config
	saver ISaver

	mu                sync.Mutex
	state             State
	timer             ITimer
	timerGen          uint64
	saving            bool
	changedDuringSave bool
	closed            bool

	wg sync.WaitGroup
}

func New(saver ISaver, opts ...Option) *Controller {
	c := &config{
		ctx:       context.Background(),
		interval:  5 * time.Second,
		clock:     realClock{},
		indicator: nopIndicator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.presenter == nil {
		c.presenter = NewPresenter(int(c.interval / time.Second))
	}
	ctrl := &Controller{c: c, saver: saver, state: StateClean}
	ctrl.c.indicator.Show(ctrl.c.presenter.Present(StateClean))
	return ctrl
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	logutil.GetLogger(c.c.ctx).Debug("autosave state changed", zap.String("from", c.state.String()), zap.String("to", s.String()))
	c.state = s
	c.c.indicator.Show(c.c.presenter.Present(s))
}

// armLocked schedules the debounce timer unless one is already pending.
func (c *Controller) armLocked() {
	if c.timer != nil || c.c.interval <= 0 {
		return
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = c.c.clock.AfterFunc(c.c.interval, func() {
		c.onTimer(gen)
	})
}

func (c *Controller) stopTimerLocked() {
	if c.timer == nil {
		return
	}
	c.timer.Stop()
	c.timer = nil
	c.timerGen++
}

// ContentChanged records an edit. During a save it is only remembered, the save completion
// turns it into Dirty.
func (c *Controller) ContentChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.saving {
		c.changedDuringSave = true
		return
	}
	c.setStateLocked(StateDirty)
	c.armLocked()
}

func (c *Controller) onTimer(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.timerGen {
		return
	}
	c.timer = nil
	if c.closed || c.saving || c.state != StateDirty {
		return
	}
	c.setStateLocked(StateSaving)
	c.startSaveLocked()
}

func (c *Controller) startSaveLocked() {
	c.saving = true
	c.changedDuringSave = false
	c.wg.Add(1)
	go c.runSave()
}

func (c *Controller) runSave() {
	defer c.wg.Done()
	ctx := c.c.ctx
	logger := logutil.GetLogger(ctx)
	start := time.Now()
	if err := c.saver.PreSync(ctx); err != nil {
		logger.Error("sync document before save failed", zap.Error(err))
		c.mu.Lock()
		c.saving = false
		c.setStateLocked(StateDirty)
		if c.changedDuringSave && !c.closed {
			c.armLocked()
		}
		c.changedDuringSave = false
		c.mu.Unlock()
		c.reportError(ctx, err)
		return
	}
	err := c.saver.Save(ctx)
	c.mu.Lock()
	c.saving = false
	pending := c.changedDuringSave
	c.changedDuringSave = false
	switch {
	case err != nil:
		c.setStateLocked(StateError)
	case pending:
		c.setStateLocked(StateDirty)
		if !c.closed {
			c.armLocked()
		}
	default:
		c.setStateLocked(StateClean)
	}
	c.mu.Unlock()
	if err != nil {
		logger.Error("autosave failed", zap.Error(err), zap.Duration("cost", time.Since(start)))
		c.reportError(ctx, err)
		return
	}
	logger.Debug("autosave succ", zap.Bool("pending_change", pending), zap.Duration("cost", time.Since(start)))
}

func (c *Controller) reportError(ctx context.Context, err error) {
	if c.c.onError != nil {
		c.c.onError(ctx, err)
	}
}

// ManualSave marks the document clean right away and saves it. While a save is in flight the
// request is remembered like an edit.
func (c *Controller) ManualSave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopTimerLocked()
	c.setStateLocked(StateClean)
	if c.saving {
		c.changedDuringSave = true
		return
	}
	c.startSaveLocked()
}

// Retry saves again after a failure, going through Saving directly.
func (c *Controller) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.saving || c.state != StateError {
		return
	}
	c.setStateLocked(StateSaving)
	c.startSaveLocked()
}

// IndicatorClicked returns the recovery options offered in Error, nil otherwise.
func (c *Controller) IndicatorClicked() []RecoveryOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateError {
		return nil
	}
	return append([]RecoveryOption(nil), errorRecoveryOptions...)
}

// MarkClean drops the pending changes without saving them.
func (c *Controller) MarkClean() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.changedDuringSave = false
	c.setStateLocked(StateClean)
}

// Wait blocks until no save is in flight.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops the timer and waits for the in-flight save.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()
	c.wg.Wait()
}
