package poller

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
)

// Notifier delivers events to an ordered set of listeners.
// It is safe for concurrent use; in parallel mode several directories notify
// through the same Notifier at once.
type Notifier struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *slog.Logger
}

// NewNotifier creates an empty notifier. A nil logger uses slog.Default().
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

// Add registers l. Adding a listener that is already registered is a no-op.
// It returns false when l was already present.
func (n *Notifier) Add(l Listener) (bool, error) {
	if err := validateListener(l); err != nil {
		return false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.indexOf(l) >= 0 {
		return false, nil
	}
	n.listeners = append(n.listeners, l)
	return true, nil
}

// Remove unregisters l. It returns false when l was not registered.
func (n *Notifier) Remove(l Listener) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	i := n.indexOf(l)
	if i < 0 {
		return false
	}
	n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
	return true
}

// Listeners returns the registered listeners in registration order.
func (n *Notifier) Listeners() []Listener {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]Listener(nil), n.listeners...)
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Notify delivers ev to every listener implementing the matching capability.
// Listener failures and panics are logged and do not stop delivery.
// A cancellation error from ctx or from a listener is returned immediately.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, l := range n.Listeners() {
		if err := n.deliver(ctx, l, ev); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) deliver(ctx context.Context, l Listener, ev Event) (cancelErr error) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("listener panicked",
				slog.String("listener", fmt.Sprintf("%T", l)),
				slog.String("event", ev.Kind().String()),
				slog.Any("panic", r))
			cancelErr = nil
		}
	}()

	handled, err := dispatch(ctx, l, ev)
	if !handled || err == nil {
		return nil
	}
	if IsCancellation(err) {
		return err
	}
	n.logger.Warn("listener failed",
		slog.String("listener", fmt.Sprintf("%T", l)),
		slog.String("event", ev.Kind().String()),
		slog.String("error", err.Error()))
	return nil
}

func (n *Notifier) indexOf(l Listener) int {
	for i, x := range n.listeners {
		if x == l {
			return i
		}
	}
	return -1
}

// validateListener rejects values that cannot be compared for identity.
func validateListener(l Listener) error {
	if l == nil {
		return apperrors.ValidationError("listener must not be nil", nil)
	}
	if !reflect.TypeOf(l).Comparable() {
		return apperrors.ValidationError(
			fmt.Sprintf("listener of type %T is not comparable; register a pointer instead", l), nil)
	}
	return nil
}
