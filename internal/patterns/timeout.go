package patterns

import (
	"context"
	"time"
)

// WithTimeout derives a context that fails fast after duration
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

// DefaultTimeout is the default timeout for HTTP requests
const DefaultTimeout = 3 * time.Second

// PingTimeout bounds the storage check behind the health endpoint
const PingTimeout = 2 * time.Second

// SlowServiceTimeout is a longer timeout for bulk calls such as seeding
const SlowServiceTimeout = 10 * time.Second
