// Package statemachine implements small table-driven finite state machines.
//
// The paywall controller keeps one machine per activity lane so that a
// purchase, a restore and an offerings refresh each have their own
// single-flight guard:
//
//	lane := statemachine.MustNew(idle,
//		statemachine.WithTransition(idle, purchasing, start,
//			statemachine.WithAction(holdOffering)),
//		statemachine.WithTransition(purchasing, idle, finish),
//	)
//	if err := lane.Fire(ctx, start, offeringID); statemachine.IsNoTransitionAvailableError(err) {
//		// already purchasing
//	}
//
// Transitions sharing a source state and event are tried in order and the
// first whose guards pass wins. Actions run before the state changes and
// any action error leaves the state untouched.
package statemachine
