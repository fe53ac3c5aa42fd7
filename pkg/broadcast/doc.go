// Package broadcast fans typed messages out to subscribers.
//
// The in-memory broadcaster never blocks the publisher. Each subscriber has a
// small buffer; when it is full the oldest pending message is replaced by the
// newest, which suits state snapshots where only the latest one matters.
//
//	updates := broadcast.NewMemoryBroadcaster[paywall.State](1)
//	defer updates.Close()
//
//	sub := updates.Subscribe(r.Context())
//	defer sub.Close()
//
//	for msg := range sub.Receive(r.Context()) {
//		render(msg.Data)
//	}
//
// Subscriptions end when their context is cancelled, when Close is called on
// them, or when the broadcaster is closed.
package broadcast
