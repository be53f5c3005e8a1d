package engine

import "context"

// Adapter performs the actual delivery of a notification on one external
// channel. The engine's obligation ends at invoking the adapter: delivery
// failures are logged at this boundary and never propagated back to block
// or unwind the in-app store write.
type Adapter interface {
	Channel() Channel
	Deliver(ctx context.Context, n Notification) error
}
