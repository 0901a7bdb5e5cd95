package booking

import (
	"context"
	"time"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// ActiveReservationLister is the read the conflict resolver needs.
type ActiveReservationLister interface {
	ListActiveReservations(ctx context.Context, resourceID string) ([]model.Reservation, error)
}

// Store is the access pattern the booking service needs from the reservation
// store. Calls made with the context passed to WithTx's fn run inside that
// transaction.
type Store interface {
	ActiveReservationLister

	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetResource(ctx context.Context, resourceID string) (model.Resource, error)
	// LockResource reads the resource row and holds it until the transaction ends.
	LockResource(ctx context.Context, resourceID string) (model.Resource, error)
	InsertReservation(ctx context.Context, r model.Reservation) error
	SetResourceAvailability(ctx context.Context, resourceID string, available bool) error
	// RefreshResourceAvailability re-derives the availability flag from the
	// reservation set: available unless an active reservation ends after now.
	RefreshResourceAvailability(ctx context.Context, resourceID string, now time.Time) error

	GetReservationForUpdate(ctx context.Context, reservationID string) (model.Reservation, error)
	// UpdateReservationStatus moves a reservation from one status to another and
	// reports false when the row was no longer in the from status.
	UpdateReservationStatus(ctx context.Context, reservationID string, from, to model.ReservationStatus, at time.Time) (bool, error)

	ListReservationsByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	// DeleteHistory removes the user's terminal reservations and the active ones
	// that already ended at now but were not reclaimed yet.
	DeleteHistory(ctx context.Context, userID string, now time.Time) (int64, error)
}

// EventPublisher receives reservation lifecycle events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event model.ReservationEvent) error
}

// Recorder receives admission and cancellation outcomes for metrics.
type Recorder interface {
	AdmissionResult(reason string, elapsed time.Duration)
	CancellationResult(outcome string)
}

const (
	EventAdmitted  = "booking.admitted"
	EventCancelled = "booking.cancelled"
	EventCompleted = "booking.completed"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, model.ReservationEvent) error { return nil }

type nopRecorder struct{}

func (nopRecorder) AdmissionResult(string, time.Duration) {}
func (nopRecorder) CancellationResult(string)             {}
