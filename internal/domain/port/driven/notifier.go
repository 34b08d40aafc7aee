package driven

import "context"

// Notifier defines the driven port for delivering a rendered digest to the
// team chat channel. Implementations wrap the body in whatever envelope
// their channel expects.
type Notifier interface {
	Notify(ctx context.Context, body string) error
}
