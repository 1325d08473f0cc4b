package msgloop

import (
	"math"
	"time"
)

// timeoutMillis converts a wait timeout to poll milliseconds, -1 meaning
// forever. Sub-millisecond waits round up to 1ms, so that a due delayed
// task isn't spun on.
func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	if timeout > time.Duration(math.MaxInt32)*time.Millisecond {
		return math.MaxInt32
	}
	ms := timeout / time.Millisecond
	if timeout%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}
