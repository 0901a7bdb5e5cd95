package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Clock allows injecting time in domain/services.
// Every admission, reclaim and projection decision reads "now" from a Clock.
type Clock interface {
	Now(ctx context.Context) (time.Time, error)
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now. Local clock, cosmetic use only.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now(context.Context) (time.Time, error) {
	return time.Now().UTC(), nil
}

type fixedClock struct {
	now time.Time
}

// NewFixed returns a clock that always returns the same instant (useful for tests).
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now(context.Context) (time.Time, error) {
	return f.now, nil
}

// Getter is the subset of sqlx.DB used by the store clock.
type Getter interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type storeClock struct {
	db Getter
}

// NewStore returns a clock that asks the database for its own time, so every
// caller shares one time authority regardless of the local machine clock.
func NewStore(db Getter) Clock {
	return storeClock{db: db}
}

func (c storeClock) Now(ctx context.Context) (time.Time, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "Clock.Now")
	defer seg.Close(nil)

	var now time.Time
	if err := c.db.GetContext(ctx, &now, `SELECT clock_timestamp()`); err != nil {
		seg.Close(err)
		return time.Time{}, fmt.Errorf("failed to read store time: %w", err)
	}
	return now.UTC(), nil
}
