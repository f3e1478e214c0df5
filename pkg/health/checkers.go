package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck flags a goroutine leak once the count passes the
// threshold.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is the subset of a connection pool needed for a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a connection pool.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}
