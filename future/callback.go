package future

import (
	"runtime/debug"

	"github.com/amp-labs/statechart/errors"
	"github.com/amp-labs/statechart/logger"
)

// invokeCallback runs callback(value) on its own goroutine. A panic inside the
// callback is recovered and logged so it can never take down the producer.
func invokeCallback[T any](kind string, callback func(T), value T) {
	if callback == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if err := errors.FromPanic(r, debug.Stack()); err != nil {
					logger.Get().Error("panic encountered in future."+kind+" callback", "error", err)
				}
			}
		}()

		callback(value)
	}()
}
