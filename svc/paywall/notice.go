package paywall

import (
	"context"
	"sync"
)

// NoticeKind identifies a user-visible notice category.
type NoticeKind string

const (
	NoticeLoadFailed     NoticeKind = "load_failed"
	NoticePurchaseFailed NoticeKind = "purchase_failed"
	NoticeRestoreFailed  NoticeKind = "restore_failed"
	NoticeNoSubscription NoticeKind = "no_subscription"
)

// Notice is a transient message for the user. All current kinds are errors.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message,omitempty"`
}

var notices = map[NoticeKind]Notice{
	NoticeLoadFailed:     {Kind: NoticeLoadFailed, Title: "Error", Message: "Failed to load subscription options"},
	NoticePurchaseFailed: {Kind: NoticePurchaseFailed, Title: "Purchase Failed", Message: "Something went wrong. Please try again."},
	NoticeRestoreFailed:  {Kind: NoticeRestoreFailed, Title: "Restore Failed", Message: "Unable to restore purchases. Please try again."},
	NoticeNoSubscription: {Kind: NoticeNoSubscription, Title: "No Active Subscription", Message: "No active subscription found."},
}

// NoticeFor returns the canonical notice of the given kind.
func NoticeFor(kind NoticeKind) Notice {
	return notices[kind]
}

// Notifier delivers notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) {
	f(ctx, n)
}

// Observer receives controller snapshots. Observe is called outside the
// controller lock, so it may call back into the controller.
type Observer interface {
	Observe(ctx context.Context, s State)
}

type ObserverFunc func(ctx context.Context, s State)

func (f ObserverFunc) Observe(ctx context.Context, s State) {
	f(ctx, s)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) {}

// NoticeQueue buffers notices until the presentation layer drains them.
type NoticeQueue struct {
	mu      sync.Mutex
	pending []Notice
	limit   int
}

// NewNoticeQueue keeps at most limit undrained notices, dropping the oldest.
// A non-positive limit defaults to 8.
func NewNoticeQueue(limit int) *NoticeQueue {
	if limit <= 0 {
		limit = 8
	}
	return &NoticeQueue{limit: limit}
}

func (q *NoticeQueue) Notify(_ context.Context, n Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, n)
	if over := len(q.pending) - q.limit; over > 0 {
		q.pending = q.pending[over:]
	}
}

// Drain returns pending notices in arrival order and empties the queue.
func (q *NoticeQueue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Len reports the number of undrained notices.
func (q *NoticeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
