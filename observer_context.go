package configprocessor

import "context"

type syncNotifyCtxKey struct{}

var syncKey = syncNotifyCtxKey{}

// WithSynchronousNotification marks ctx so that a Processor delivers events
// inline instead of on separate goroutines. Process, Emit and Watch passes
// started with such a context return only after every observer has seen
// their events.
func WithSynchronousNotification(ctx context.Context) context.Context {
	return context.WithValue(ctx, syncKey, true)
}

// IsSynchronousNotification reports whether ctx requests synchronous delivery.
func IsSynchronousNotification(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(syncKey).(bool)
	return v
}
