package scheduler

import "errors"

// ErrInvalidSchedule — cron-выражение не разбирается.
var ErrInvalidSchedule = errors.New("invalid cron expression")
