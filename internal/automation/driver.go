// Package automation presses the send button of the messaging app after the
// dispatcher opened a pre-filled conversation.
package automation

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"go.uber.org/zap"
)

const (
	DefaultSettleDelay   = 500 * time.Millisecond
	DefaultHomeDelay     = 1000 * time.Millisecond
	DefaultTargetPackage = "com.whatsapp.w4b"

	attemptTimeout = 5 * time.Second
)

// Attempt results, also used as metric labels.
const (
	ResultClicked     = "clicked"
	ResultStale       = "stale"
	ResultNoWindow    = "no_window"
	ResultNotFound    = "not_found"
	ResultClickFailed = "click_failed"
	ResultHostError   = "host_error"
)

type Options struct {
	TargetPackage string
	Matchers      []Matcher
	SettleDelay   time.Duration
	HomeDelay     time.Duration
}

type Driver struct {
	host    Host
	signal  *PendingSignal
	opts    Options
	logger  *zap.Logger
	metrics *observability.Metrics

	scheduled atomic.Bool

	now   func() time.Time
	after func(d time.Duration, f func())
}

func NewDriver(host Host, signal *PendingSignal, opts Options, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if signal == nil {
		signal = NewPendingSignal(DefaultStaleAfter)
	}
	if strings.TrimSpace(opts.TargetPackage) == "" {
		opts.TargetPackage = DefaultTargetPackage
	}
	if len(opts.Matchers) == 0 {
		opts.Matchers = DefaultMatchers()
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.HomeDelay <= 0 {
		opts.HomeDelay = DefaultHomeDelay
	}

	return &Driver{
		host:   host,
		signal: signal,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

func (d *Driver) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// HandleEvent schedules a send attempt when the event comes from the target
// app while a send is pending. It reports whether an attempt was scheduled.
// Events arriving while an attempt is already scheduled are coalesced.
func (d *Driver) HandleEvent(event UIEvent) bool {
	if event.Package != d.opts.TargetPackage {
		return false
	}
	switch event.Type {
	case EventWindowStateChanged, EventWindowContentChanged:
	default:
		return false
	}
	if !d.signal.Armed(d.now()) {
		return false
	}
	if !d.scheduled.CompareAndSwap(false, true) {
		return false
	}

	d.after(d.opts.SettleDelay, func() {
		defer d.scheduled.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
		defer cancel()
		d.Attempt(ctx)
	})
	return true
}

// Attempt looks for a send control in the active window and clicks the first
// one that accepts the click. It never retries.
func (d *Driver) Attempt(ctx context.Context) string {
	if ctx == nil {
		ctx = context.Background()
	}

	result := d.attempt(ctx)
	d.metrics.IncAutomationClick(result)
	return result
}

func (d *Driver) attempt(ctx context.Context) string {
	if !d.signal.Armed(d.now()) {
		d.logger.Debug("pending send signal is not armed, skipping")
		return ResultStale
	}

	root, err := d.host.ActiveRoot(ctx)
	if err != nil {
		d.logger.Warn("failed to read active window", zap.Error(err))
		return ResultHostError
	}
	if root == nil {
		return ResultNoWindow
	}

	candidates, strategy := FindCandidates(root, d.opts.Matchers)
	if len(candidates) == 0 {
		d.logger.Debug("no send control found")
		return ResultNotFound
	}

	for _, node := range candidates {
		performed, err := d.host.Click(ctx, node.ID)
		if err != nil {
			d.logger.Warn("click failed",
				zap.String("nodeId", node.ID),
				zap.String("strategy", strategy),
				zap.Error(err),
			)
			continue
		}
		if !performed {
			continue
		}

		d.signal.Disarm()
		d.logger.Info("send control clicked",
			zap.String("nodeId", node.ID),
			zap.String("strategy", strategy),
		)
		d.after(d.opts.HomeDelay, d.goHome)
		return ResultClicked
	}

	return ResultClickFailed
}

func (d *Driver) goHome() {
	ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
	defer cancel()

	if err := d.host.GlobalHome(ctx); err != nil {
		d.logger.Warn("failed to return to home screen", zap.Error(err))
	}
}
