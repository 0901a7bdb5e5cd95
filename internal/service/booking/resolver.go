package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// Overlaps reports whether [s1, e1) and [s2, e2) intersect. Touching intervals
// (one ends exactly when the other starts) do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Resolver decides whether a candidate interval collides with an active
// reservation of the same resource.
type Resolver struct {
	store  ActiveReservationLister
	logger *slog.Logger
}

func NewResolver(store ActiveReservationLister, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// HasConflict fetches the active reservations of resourceID and checks them
// against [start, end). Records with missing or inverted timestamps are
// skipped and logged.
func (r *Resolver) HasConflict(ctx context.Context, resourceID string, start, end time.Time) (bool, error) {
	reservations, err := r.store.ListActiveReservations(ctx, resourceID)
	if err != nil {
		return false, fmt.Errorf("list active reservations: %w", err)
	}
	_, found := FirstConflict(reservations, start, end, r.logger)
	return found, nil
}

// FirstConflict returns the first active reservation overlapping [start, end).
func FirstConflict(reservations []model.Reservation, start, end time.Time, logger *slog.Logger) (model.Reservation, bool) {
	for _, existing := range reservations {
		if existing.Status != model.ReservationStatusActive {
			continue
		}
		exStart, exEnd, ok := existing.Interval()
		if !ok {
			if logger != nil {
				logger.Warn("skipping reservation with invalid interval",
					"reservation_id", existing.ID,
					"resource_id", existing.ResourceID,
				)
			}
			continue
		}
		if Overlaps(start, end, exStart, exEnd) {
			return existing, true
		}
	}
	return model.Reservation{}, false
}
