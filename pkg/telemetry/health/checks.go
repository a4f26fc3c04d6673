package health

import (
	"context"
	"errors"
)

// Pinger is implemented by dependencies that can report reachability,
// such as journal storage.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger into a CheckFunc.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// LimitersCheck fails when count reports no configured limiters. The
// server passes a closure over its current manager so the check follows
// reloads.
func LimitersCheck(count func() int) CheckFunc {
	return func(context.Context) error {
		if count() == 0 {
			return errors.New("no limiters configured")
		}
		return nil
	}
}
