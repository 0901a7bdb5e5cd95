package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"

	"github.com/hollanddz228/ComputerClubBookingg/internal/catalog"
	"github.com/hollanddz228/ComputerClubBookingg/internal/clock"
	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// SummaryLayout is used to render reservation intervals for display.
const SummaryLayout = "02.01 15:04"

type Identity struct {
	UserID      string
	UserContact string
}

type Request struct {
	ResourceID  string
	PackageName string
	Start       time.Time
	Identity    Identity
}

// Summary holds the human-readable fields of an admitted reservation.
type Summary struct {
	ResourceName string    `json:"resource_name"`
	PackageName  string    `json:"package_name"`
	Price        float64   `json:"price"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Interval     string    `json:"interval"`
}

type Admission struct {
	Reservation model.Reservation `json:"reservation"`
	Summary     Summary           `json:"summary"`
}

// Outcome is delivered by SubmitBooking once the admission attempt finished.
type Outcome struct {
	Admission Admission
	Err       error
}

func (o Outcome) Admitted() bool { return o.Err == nil }

func (o Outcome) Reason() Reason { return ReasonOf(o.Err) }

type Service struct {
	store     Store
	resolver  *Resolver
	catalog   *catalog.Catalog
	clock     clock.Clock
	nightHour int
	location  *time.Location
	retry     RetryPolicy
	publisher EventPublisher
	recorder  Recorder
	logger    *slog.Logger
	newID     func() string
}

type Option func(*Service)

// WithNightStartHour overrides the hour a night package has to start at.
func WithNightStartHour(hour int) Option {
	return func(s *Service) {
		if hour >= 0 && hour <= 23 {
			s.nightHour = hour
		}
	}
}

// WithLocation sets the zone hour-of-day checks and summaries are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithRetry(p RetryPolicy) Option {
	return func(s *Service) {
		s.retry = p
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewService(store Store, cat *catalog.Catalog, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		store:     store,
		catalog:   cat,
		clock:     clk,
		nightHour: catalog.DefaultNightStartHour,
		location:  time.UTC,
		retry:     RetryPolicy{Attempts: defaultRetryAttempts, BaseDelay: defaultRetryBaseDelay},
		publisher: nopPublisher{},
		recorder:  nopRecorder{},
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = NewResolver(store, s.logger)
	return s
}

// Resolver returns the conflict resolver backed by the service's store.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Admit validates req and, when every check passes, persists an active
// reservation and marks the resource unavailable in one transaction.
// Rejections are returned as errors; ReasonOf maps them to a Reason.
func (s *Service) Admit(ctx context.Context, req Request) (Admission, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingService.Admit")
	defer seg.Close(nil)

	started := time.Now()
	// The ID is fixed across retries so an attempt whose commit succeeded but
	// whose acknowledgement was lost can be recognised by the next one.
	id := s.newID()
	attempt := 0
	var admission Admission
	err := s.withRetry(ctx, "admit", func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			committed, ok, err := s.committedAdmission(ctx, id)
			if err != nil {
				return err
			}
			if ok {
				admission = committed
				return nil
			}
		}
		var err error
		admission, err = s.admitOnce(ctx, req, id)
		return err
	})

	s.recorder.AdmissionResult(string(ReasonOf(err)), time.Since(started))
	if err != nil {
		if ReasonOf(err) == ReasonStoreUnavailable {
			seg.Close(err)
			s.logger.Error("admission failed",
				"resource_id", req.ResourceID,
				"user_id", req.Identity.UserID,
				"error", err,
			)
		} else {
			s.logger.Info("admission rejected",
				"resource_id", req.ResourceID,
				"user_id", req.Identity.UserID,
				"reason", ReasonOf(err),
			)
		}
		return Admission{}, err
	}

	s.logger.Info("admission accepted",
		"reservation_id", admission.Reservation.ID,
		"resource_id", admission.Reservation.ResourceID,
		"user_id", admission.Reservation.UserID,
		"interval", admission.Summary.Interval,
	)
	s.publish(ctx, EventAdmitted, admission.Reservation, admission.Reservation.CreatedAt)
	return admission, nil
}

// committedAdmission looks up a reservation written by an earlier attempt of
// the same admission.
func (s *Service) committedAdmission(ctx context.Context, id string) (Admission, bool, error) {
	var existing model.Reservation
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		existing, err = s.store.GetReservationForUpdate(txCtx, id)
		return err
	})
	if errors.Is(err, model.ErrReservationNotFound) {
		return Admission{}, false, nil
	}
	if err != nil {
		return Admission{}, false, err
	}
	start, end, ok := existing.Interval()
	if !ok {
		return Admission{}, false, fmt.Errorf("reservation %s has an invalid interval", id)
	}
	return Admission{Reservation: existing, Summary: s.summarize(existing, start, end)}, true, nil
}

func (s *Service) admitOnce(ctx context.Context, req Request, id string) (Admission, error) {
	resource, err := s.store.GetResource(ctx, req.ResourceID)
	if err != nil {
		return Admission{}, err
	}
	pkg, ok := s.catalog.Lookup(resource.Category, req.PackageName)
	if !ok {
		return Admission{}, fmt.Errorf("%w: %q for category %s", ErrInvalidPackage, req.PackageName, resource.Category)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return Admission{}, fmt.Errorf("%w: %w", model.ErrStoreTransient, err)
	}

	start := req.Start.UTC()
	if start.Before(now) {
		return Admission{}, ErrPastStartTime
	}
	if pkg.IsNightOnly && start.In(s.location).Hour() != s.nightHour {
		return Admission{}, ErrInvalidNightStart
	}
	end := start.Add(pkg.Duration())

	conflict, err := s.resolver.HasConflict(ctx, resource.ID, start, end)
	if err != nil {
		return Admission{}, err
	}
	if conflict {
		return Admission{}, ErrSlotTaken
	}

	reservation := model.Reservation{
		ID:           id,
		ResourceID:   resource.ID,
		ResourceName: resource.Name,
		Category:     resource.Category,
		UserID:       req.Identity.UserID,
		UserContact:  req.Identity.UserContact,
		PackageName:  pkg.Name,
		Price:        pkg.Price,
		StartTime:    &start,
		EndTime:      &end,
		Status:       model.ReservationStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.store.LockResource(txCtx, resource.ID); err != nil {
			return err
		}
		// The flag may be stale in either direction, so the reservation set is
		// checked again under the lock.
		conflict, err := s.resolver.HasConflict(txCtx, resource.ID, start, end)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotTaken
		}
		if err := s.store.InsertReservation(txCtx, reservation); err != nil {
			return err
		}
		return s.store.SetResourceAvailability(txCtx, resource.ID, false)
	})
	if errors.Is(err, model.ErrIntervalConflict) {
		return Admission{}, fmt.Errorf("%w: %w", ErrSlotTaken, err)
	}
	if err != nil {
		return Admission{}, err
	}

	return Admission{
		Reservation: reservation,
		Summary:     s.summarize(reservation, start, end),
	}, nil
}

func (s *Service) summarize(r model.Reservation, start, end time.Time) Summary {
	return Summary{
		ResourceName: r.ResourceName,
		PackageName:  r.PackageName,
		Price:        r.Price,
		Start:        start,
		End:          end,
		Interval:     FormatInterval(start, end, s.location),
	}
}

// FormatInterval renders [start, end) as "dd.MM HH:mm - dd.MM HH:mm" in loc.
func FormatInterval(start, end time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return start.In(loc).Format(SummaryLayout) + " - " + end.In(loc).Format(SummaryLayout)
}

// SubmitBooking runs Admit in the background and delivers exactly one Outcome.
// The attempt is detached from ctx cancellation: once submitted it runs to
// completion.
func (s *Service) SubmitBooking(ctx context.Context, req Request) <-chan Outcome {
	out := make(chan Outcome, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(out)
		admission, err := s.Admit(detached, req)
		out <- Outcome{Admission: admission, Err: err}
	}()
	return out
}

// Cancel moves an active reservation owned by userID to cancelled and
// re-derives the resource flag in the same transaction.
func (s *Service) Cancel(ctx context.Context, reservationID, userID string) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingService.Cancel")
	defer seg.Close(nil)

	var cancelled model.Reservation
	attempt := 0
	err := s.withRetry(ctx, "cancel", func(ctx context.Context) error {
		attempt++
		now, err := s.clock.Now(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrStoreTransient, err)
		}
		return s.store.WithTx(ctx, func(txCtx context.Context) error {
			r, err := s.store.GetReservationForUpdate(txCtx, reservationID)
			if err != nil {
				return err
			}
			if r.UserID != userID {
				return ErrNotOwner
			}
			if attempt > 1 && r.Status == model.ReservationStatusCancelled {
				// an earlier attempt committed before its acknowledgement was lost
				cancelled = r
				return nil
			}
			if !r.Status.CanTransitionTo(model.ReservationStatusCancelled) {
				return ErrNotActive
			}
			updated, err := s.store.UpdateReservationStatus(txCtx, r.ID, model.ReservationStatusActive, model.ReservationStatusCancelled, now)
			if err != nil {
				return err
			}
			if !updated {
				// completed by a concurrent reclaim
				return ErrNotActive
			}
			// Taken after the reservation row, the same order the reclaimer uses.
			// The refresh below then reads a snapshot that includes any admission
			// that held the resource row.
			if _, err := s.store.LockResource(txCtx, r.ResourceID); err != nil {
				return err
			}
			if err := s.store.RefreshResourceAvailability(txCtx, r.ResourceID, now); err != nil {
				return err
			}
			r.Status = model.ReservationStatusCancelled
			r.UpdatedAt = now
			cancelled = r
			return nil
		})
	})

	outcome := "cancelled"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotOwner):
		outcome = "not_owner"
	case errors.Is(err, ErrNotActive):
		outcome = "not_active"
	case errors.Is(err, model.ErrReservationNotFound):
		outcome = "not_found"
	default:
		outcome = "store_unavailable"
		seg.Close(err)
	}
	s.recorder.CancellationResult(outcome)

	if err != nil {
		s.logger.Info("cancellation failed",
			"reservation_id", reservationID,
			"user_id", userID,
			"outcome", outcome,
			"error", err,
		)
		return model.Reservation{}, err
	}

	s.logger.Info("reservation cancelled",
		"reservation_id", cancelled.ID,
		"resource_id", cancelled.ResourceID,
	)
	s.publish(ctx, EventCancelled, cancelled, cancelled.UpdatedAt)
	return cancelled, nil
}

// CancelReservation is the asynchronous face of Cancel.
func (s *Service) CancelReservation(ctx context.Context, reservationID, userID string) <-chan error {
	out := make(chan error, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(out)
		_, err := s.Cancel(detached, reservationID, userID)
		out <- err
	}()
	return out
}

func (s *Service) publish(ctx context.Context, key string, r model.Reservation, at time.Time) {
	if err := s.publisher.Publish(ctx, key, model.NewReservationEvent(r, at)); err != nil {
		s.logger.Warn("failed to publish booking event",
			"key", key,
			"reservation_id", r.ID,
			"error", err,
		)
	}
}
