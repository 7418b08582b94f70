// Package outbox implements the client side of the synchronization channel:
// a debounced pusher that collapses bursts of local offer edits into a single
// full-snapshot push carrying a monotonically increasing edit counter.
// Snapshots make pushes idempotent; the counter lets the server apply
// last-write-wins per side even when the network reorders them.
package outbox

import (
	"sync"
	"time"

	"trade_post/internal/config"
	"trade_post/internal/models"
	"trade_post/internal/trade"
)

// PushFunc delivers a pruned offer snapshot and its edit counter to the
// negotiation store. Implementations may retry freely; the store discards
// stale counters and unchanged offers.
type PushFunc func(offer models.TradeOffer, counter uint64)

// Outbox debounces offer edits. Timers are client-local and may be
// rescheduled freely; nothing is server-visible until a push fires.
type Outbox struct {
	mu      sync.Mutex
	window  time.Duration
	push    PushFunc
	timer   *time.Timer
	draft   models.TradeOffer
	pending bool
	counter uint64
	locked  bool
	closed  bool
}

// New creates an outbox debouncing over the configured window
// (OFFER_DEBOUNCE_MS).
func New(push PushFunc) *Outbox {
	return NewWithWindow(config.OfferDebounce, push)
}

// NewWithWindow creates an outbox with an explicit debounce window.
func NewWithWindow(window time.Duration, push PushFunc) *Outbox {
	return &Outbox{window: window, push: push}
}

// Queue records the latest draft and (re)starts the debounce timer.
// Edits queued after the side's offer is locked are dropped; the server
// would reject them as a no-op anyway.
func (o *Outbox) Queue(draft models.TradeOffer) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.locked {
		return
	}

	o.draft = trade.PruneOffer(draft)
	o.pending = true
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.window, o.fire)
}

// fire pushes the pending snapshot when the debounce window elapses.
func (o *Outbox) fire() {
	o.mu.Lock()
	if o.closed || o.locked || !o.pending {
		o.mu.Unlock()
		return
	}
	o.pending = false
	o.counter++
	offer := trade.CloneOffer(o.draft)
	counter := o.counter
	push := o.push
	o.mu.Unlock()

	// Pushing outside the lock keeps slow transports from blocking Queue.
	push(offer, counter)
}

// Flush pushes the pending draft immediately, cancelling any running timer.
// Used when the dialog is about to lock or close.
func (o *Outbox) Flush() {
	o.mu.Lock()
	if o.timer != nil {
		o.timer.Stop()
	}
	o.mu.Unlock()
	o.fire()
}

// SetLocked tracks the side's acceptance state as observed from server
// broadcasts. While locked, queued edits and pending pushes are suppressed;
// a settlement rollback unlocks and editing resumes.
func (o *Outbox) SetLocked(locked bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.locked = locked
	if locked {
		o.pending = false
		if o.timer != nil {
			o.timer.Stop()
		}
	}
}

// Counter returns the last counter handed to a push.
func (o *Outbox) Counter() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counter
}

// Close stops the outbox; any pending push is discarded.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.pending = false
	if o.timer != nil {
		o.timer.Stop()
	}
}
