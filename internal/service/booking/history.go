package booking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// HistoryFilter selects which past reservations are listed as history.
type HistoryFilter string

const (
	HistoryAll       HistoryFilter = "all"
	HistoryCompleted HistoryFilter = "completed"
	HistoryCancelled HistoryFilter = "cancelled"
)

func ParseHistoryFilter(s string) (HistoryFilter, error) {
	switch HistoryFilter(s) {
	case "", HistoryAll:
		return HistoryAll, nil
	case HistoryCompleted, HistoryCancelled:
		return HistoryFilter(s), nil
	default:
		return "", fmt.Errorf("unknown history filter %q", s)
	}
}

// UserReservations splits a user's reservations into the ones still running or
// upcoming and everything else.
type UserReservations struct {
	Active  []model.Reservation `json:"active"`
	History []model.Reservation `json:"history"`
}

// ListUserReservations returns the caller's reservations, newest first. An
// active reservation whose end has passed is listed as completed history even
// when the reclaimer has not run yet.
func (s *Service) ListUserReservations(ctx context.Context, userID string, filter HistoryFilter) (UserReservations, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingService.ListUserReservations")
	defer seg.Close(nil)

	var result UserReservations
	err := s.withRetry(ctx, "list user reservations", func(ctx context.Context) error {
		now, err := s.clock.Now(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrStoreTransient, err)
		}
		all, err := s.store.ListReservationsByUser(ctx, userID)
		if err != nil {
			return err
		}
		result = SplitReservations(all, now, filter)
		return nil
	})
	if err != nil {
		seg.Close(err)
		return UserReservations{}, err
	}
	return result, nil
}

// SplitReservations partitions reservations by liveness at now.
func SplitReservations(all []model.Reservation, now time.Time, filter HistoryFilter) UserReservations {
	result := UserReservations{
		Active:  []model.Reservation{},
		History: []model.Reservation{},
	}
	for _, r := range all {
		status := r.Status
		if status == model.ReservationStatusActive {
			_, end, ok := r.Interval()
			if ok && end.After(now) {
				result.Active = append(result.Active, r)
				continue
			}
			status = model.ReservationStatusCompleted
		}
		if filter == HistoryAll || filter == "" || HistoryFilter(status) == filter {
			r.Status = status
			result.History = append(result.History, r)
		}
	}
	newestFirst(result.Active)
	newestFirst(result.History)
	return result
}

func newestFirst(list []model.Reservation) {
	sort.SliceStable(list, func(i, j int) bool {
		return startOf(list[i]).After(startOf(list[j]))
	})
}

func startOf(r model.Reservation) time.Time {
	if r.StartTime == nil {
		return r.CreatedAt
	}
	return *r.StartTime
}

// ClearHistory deletes everything ListUserReservations shows as history:
// completed and cancelled reservations, and active ones that already ended at
// store time. Live reservations are never removed.
func (s *Service) ClearHistory(ctx context.Context, userID string) (int64, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingService.ClearHistory")
	defer seg.Close(nil)

	var deleted int64
	err := s.withRetry(ctx, "clear history", func(ctx context.Context) error {
		now, err := s.clock.Now(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrStoreTransient, err)
		}
		deleted, err = s.store.DeleteHistory(ctx, userID, now)
		return err
	})
	if err != nil {
		seg.Close(err)
		return 0, err
	}
	s.logger.Info("history cleared", "user_id", userID, "deleted", deleted)
	return deleted, nil
}
