package task

import "errors"

var errStillRunning = errors.New("task did not stop before the timeout")
