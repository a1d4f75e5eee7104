package device

import (
	"context"
	"time"
)

// WithConnectTimeout bounds WaitForConnect on the wrapped driver. A zero or
// negative timeout returns d unchanged, waiting forever.
func WithConnectTimeout(d Driver, timeout time.Duration) Driver {
	if timeout <= 0 {
		return d
	}
	return &timeoutDriver{Driver: d, timeout: timeout}
}

type timeoutDriver struct {
	Driver
	timeout time.Duration
}

func (t *timeoutDriver) WaitForConnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Driver.WaitForConnect(ctx)
}
