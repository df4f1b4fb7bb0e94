package ports

import "time"

// Clock is the time source for progress accounting and timeouts.
type Clock interface {
	Now() time.Time
}
