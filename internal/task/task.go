// Package task implements a small periodic-task scheduler. Its contract
// (Func, Schedule, Every, Start, Group) mirrors github.com/canonical/lxd's
// lxd/task package, whose source was not available in the reference pack
// but whose behavior is fully pinned down by its test suite
// (lxd/task/task_test.go, lxd/task/group_test.go): a schedule function
// returns the delay until the next run (or an error to abort), Start
// executes immediately and then re-arms the timer after every run, and
// Reset re-triggers an immediate run.
package task

import (
	"context"
	"time"
)

// Func is the unit of work a Schedule drives.
type Func func(context.Context)

// Schedule returns the delay before the next invocation of a Func, or an
// error to stop scheduling entirely.
type Schedule func() (time.Duration, error)

// Every returns a Schedule that fires at a fixed interval. An interval of
// zero means "never run".
func Every(interval time.Duration) Schedule {
	return func() (time.Duration, error) {
		return interval, nil
	}
}

// Start begins executing f according to schedule, immediately and then
// after each interval elapses. It returns two functions: stop requests
// termination and waits up to timeout for the in-flight run (if any) to
// finish, and reset triggers an immediate re-run regardless of the
// schedule's timer.
func Start(f Func, schedule Schedule) (stop func(timeout time.Duration) error, reset func()) {
	ctx, cancel := context.WithCancel(context.Background())
	resetCh := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			case <-resetCh:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}

			if ctx.Err() != nil {
				return
			}

			interval, err := schedule()
			if err != nil {
				return
			}

			if interval <= 0 {
				// Zero interval means "don't run"; still re-arm so a
				// later reset (or schedule change) can trigger a run.
				timer.Reset(24 * time.Hour)
				continue
			}

			f(ctx)

			timer.Reset(interval)
		}
	}()

	stop = func(timeout time.Duration) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-time.After(timeout):
			return errStillRunning
		}
	}

	reset = func() {
		select {
		case resetCh <- struct{}{}:
		default:
		}
	}

	return stop, reset
}
