// Package goroutine isolates panics in background work and in best-effort
// cleanup steps.
package goroutine

import (
	"fmt"
	"runtime/debug"
	"sync"

	"iapgate/internal/shared/logger"
)

// SafeGo launches fn on a new goroutine. A panic is logged with its stack
// instead of crashing the process. When wg is non-nil it is incremented
// before the goroutine starts and released when fn returns.
func SafeGo(log logger.Interface, wg *sync.WaitGroup, name string, fn func()) {
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("goroutine panicked",
					"goroutine", name,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}

// Guard runs fn on the calling goroutine and turns a panic into an error.
func Guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return fn()
}
