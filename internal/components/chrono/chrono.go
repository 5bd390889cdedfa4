package chrono

import (
	"context"
	"time"
)

var jakarta *time.Location

func init() {
	var err error
	jakarta, err = time.LoadLocation("Asia/Jakarta")
	if err != nil {
		panic(err)
	}
}

// Jakarta returns the timezone of the monitored site. The site's branch
// catalogue and status text are all served relative to it.
func Jakarta() *time.Location {
	return jakarta
}

// TimeAPI is the interface that anything depending on the current time should use.
type TimeAPI interface {
	Now() time.Time
	Location() *time.Location
}

// StandardTime is the standard implementation of TimeAPI.
type StandardTime struct{}

func (StandardTime) Now() time.Time {
	return time.Now().In(jakarta)
}

func (StandardTime) Location() *time.Location {
	return jakarta
}

// SleepAPI is the interface that anything that blocks on wall-clock waits
// should use. Backoff and pacing delays are part of the retrieval contract,
// so they go through an injectable API the same way Now() does.
type SleepAPI interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// StandardSleep is the standard implementation of SleepAPI.
type StandardSleep struct{}

func (StandardSleep) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
