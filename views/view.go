// Package views holds the three role portals. A view owns its local state,
// patches it only after the backend confirmed a mutation, and reports every
// outcome to its Notifier. Responses that arrive after Close are dropped.
package views

import (
	"context"
	"errors"
	"sync"
	"time"

	"rescuelink/models"
	"rescuelink/realtime"
	"rescuelink/services"
	"rescuelink/utils"

	"github.com/sirupsen/logrus"
)

// Notifier receives the toast produced by each user action.
type Notifier interface {
	Notify(n models.Notification)
}

// NotificationLog is a Notifier that keeps everything it receives.
type NotificationLog struct {
	mu    sync.Mutex
	items []models.Notification
}

func NewNotificationLog() *NotificationLog {
	return &NotificationLog{}
}

func (l *NotificationLog) Notify(n models.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, n)
}

// Drain returns and forgets the pending notifications.
func (l *NotificationLog) Drain() []models.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := l.items
	l.items = nil
	return items
}

func (l *NotificationLog) All() []models.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Notification(nil), l.items...)
}

// Deps wires a view to the rest of the client.
type Deps struct {
	Services *services.Container
	Notifier Notifier
	// Feeds are started on mount by views that consume realtime updates.
	Feeds   []realtime.Feed
	Updates *realtime.Buffer
	Now     func() time.Time
}

// base carries the lifetime and bookkeeping shared by every portal.
type base struct {
	deps Deps
	role models.Role

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	loading map[string]bool
	svc     *services.SessionServices
}

func newBase(deps Deps, role models.Role) *base {
	if deps.Notifier == nil {
		deps.Notifier = NewNotificationLog()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &base{
		deps:    deps,
		role:    role,
		ctx:     ctx,
		cancel:  cancel,
		loading: make(map[string]bool),
	}
}

// guard runs the role guard. An empty token means the stored credential.
// Nothing is fetched unless the outcome is GuardAllow.
func (b *base) guard(ctx context.Context, token string) services.GuardDecision {
	var decision services.GuardDecision
	if token == "" {
		decision = b.deps.Services.Sessions.Guard(ctx, b.role)
	} else {
		decision = b.deps.Services.Sessions.GuardToken(token, b.role)
	}
	if decision.Outcome != services.GuardAllow {
		logrus.WithFields(logrus.Fields{
			"portal":  b.role,
			"outcome": decision.Outcome.String(),
		}).Info("Portal access denied")
		return decision
	}

	b.mu.Lock()
	b.svc = b.deps.Services.ForSession(decision.Session)
	b.mu.Unlock()
	return decision
}

func (b *base) services() (*services.SessionServices, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, utils.ErrViewClosed
	}
	if b.svc == nil {
		return nil, utils.NewUnauthenticatedError("View is not mounted")
	}
	return b.svc, nil
}

// Session returns the session the view was mounted with, nil before Mount.
func (b *base) Session() *services.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.svc == nil {
		return nil
	}
	return b.svc.Session
}

// opContext ends when either the caller or the view goes away.
func (b *base) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// begin marks an action in flight. The returned func clears the flag.
func (b *base) begin(action string) func() {
	b.mu.Lock()
	b.loading[action] = true
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.loading, action)
		b.mu.Unlock()
	}
}

// Loading reports whether an action is in flight.
func (b *base) Loading(action string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading[action]
}

// commit applies a state mutation unless the view has been closed.
func (b *base) commit(apply func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return utils.ErrViewClosed
	}
	apply()
	return nil
}

// fail reports err as a single destructive notification and returns it.
// Nothing is reported once the view is closed.
func (b *base) fail(title string, err error) error {
	if b.isClosed() {
		return utils.ErrViewClosed
	}
	if errors.Is(err, context.Canceled) && b.ctx.Err() != nil {
		return utils.ErrViewClosed
	}
	logrus.WithFields(logrus.Fields{
		"portal": b.role,
		"action": title,
	}).Warnf("Action failed: %v", err)

	b.deps.Notifier.Notify(models.Notification{
		Variant:     models.VariantDestructive,
		Title:       title,
		Description: describe(err),
		CreatedAt:   b.deps.Now(),
	})
	return err
}

func (b *base) notify(title, description string) {
	if b.isClosed() {
		return
	}
	b.deps.Notifier.Notify(models.Notification{
		Variant:     models.VariantDefault,
		Title:       title,
		Description: description,
		CreatedAt:   b.deps.Now(),
	})
}

func (b *base) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// goBackground runs fn under the view lifetime; Close waits for it.
func (b *base) goBackground(fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}

// Close unmounts the view. In-flight responses are discarded and background
// work is awaited. Close is idempotent.
func (b *base) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

func describe(err error) string {
	if se, ok := utils.GetServiceError(err); ok {
		return se.Message
	}
	return err.Error()
}
