package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

type txKey struct{}

// fakeStore serializes transactions with a mutex and restores its state when
// fn fails, which is enough to model a serializable store in unit tests.
type fakeStore struct {
	txMu sync.Mutex

	mu           sync.Mutex
	resources    map[string]model.Resource
	reservations []model.Reservation

	// transientFailures makes the next N GetResource calls fail transiently.
	transientFailures int
	// insertErr is returned by InsertReservation when set.
	insertErr error

	txCount     int
	insertCount int
	flagWrites  int
	// locked records LockResource calls in order.
	locked []string
}

func newFakeStore(resources []model.Resource, reservations []model.Reservation) *fakeStore {
	s := &fakeStore{resources: make(map[string]model.Resource)}
	for _, r := range resources {
		s.resources[r.ID] = r
	}
	s.reservations = append(s.reservations, reservations...)
	return s
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.txCount++
	savedResources := make(map[string]model.Resource, len(s.resources))
	for k, v := range s.resources {
		savedResources[k] = v
	}
	savedReservations := append([]model.Reservation(nil), s.reservations...)
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.resources = savedResources
		s.reservations = savedReservations
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *fakeStore) GetResource(_ context.Context, resourceID string) (model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transientFailures > 0 {
		s.transientFailures--
		return model.Resource{}, errors.Join(model.ErrStoreTransient, errors.New("connection reset"))
	}
	r, ok := s.resources[resourceID]
	if !ok {
		return model.Resource{}, model.ErrResourceNotFound
	}
	return r, nil
}

func (s *fakeStore) LockResource(ctx context.Context, resourceID string) (model.Resource, error) {
	if ctx.Value(txKey{}) == nil {
		return model.Resource{}, errors.New("LockResource called outside a transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = append(s.locked, resourceID)
	r, ok := s.resources[resourceID]
	if !ok {
		return model.Resource{}, model.ErrResourceNotFound
	}
	return r, nil
}

func (s *fakeStore) ListActiveReservations(_ context.Context, resourceID string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.ResourceID == resourceID && r.Status == model.ReservationStatusActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertReservation(ctx context.Context, r model.Reservation) error {
	if ctx.Value(txKey{}) == nil {
		return errors.New("InsertReservation called outside a transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.insertCount++
	s.reservations = append(s.reservations, r)
	return nil
}

func (s *fakeStore) SetResourceAvailability(_ context.Context, resourceID string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[resourceID]
	if !ok {
		return model.ErrResourceNotFound
	}
	s.flagWrites++
	r.IsAvailable = available
	s.resources[resourceID] = r
	return nil
}

func (s *fakeStore) RefreshResourceAvailability(_ context.Context, resourceID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[resourceID]
	if !ok {
		return model.ErrResourceNotFound
	}
	available := true
	for _, res := range s.reservations {
		if res.ResourceID != resourceID || res.Status != model.ReservationStatusActive {
			continue
		}
		if res.EndTime != nil && res.EndTime.After(now) {
			available = false
		}
	}
	s.flagWrites++
	r.IsAvailable = available
	s.resources[resourceID] = r
	return nil
}

func (s *fakeStore) GetReservationForUpdate(_ context.Context, reservationID string) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.ID == reservationID {
			return r, nil
		}
	}
	return model.Reservation{}, model.ErrReservationNotFound
}

func (s *fakeStore) UpdateReservationStatus(_ context.Context, reservationID string, from, to model.ReservationStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.reservations {
		if r.ID != reservationID {
			continue
		}
		if r.Status != from {
			return false, nil
		}
		s.reservations[i].Status = to
		s.reservations[i].UpdatedAt = at
		return true, nil
	}
	return false, nil
}

func (s *fakeStore) ListReservationsByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteHistory(_ context.Context, userID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		kept    []model.Reservation
		deleted int64
	)
	for _, r := range s.reservations {
		lapsed := r.Status == model.ReservationStatusActive && r.EndTime != nil && !r.EndTime.After(now)
		if r.UserID == userID && (r.Status.IsTerminal() || lapsed) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.reservations = kept
	return deleted, nil
}

func (s *fakeStore) resource(id string) model.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resources[id]
}

func (s *fakeStore) activeOn(resourceID string) []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.ResourceID == resourceID && r.Status == model.ReservationStatusActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(*out[j].StartTime) })
	return out
}

type recordedEvent struct {
	key   string
	event model.ReservationEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, key string, event model.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{key: key, event: event})
	return p.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	reasons []string
	cancels []string
}

func (r *fakeRecorder) AdmissionResult(reason string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *fakeRecorder) CancellationResult(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels = append(r.cancels, outcome)
}

func ptr(t time.Time) *time.Time { return &t }

// droppedAckStore commits like fakeStore but reports the next lostAcks
// successful top-level commits as transient failures.
type droppedAckStore struct {
	*fakeStore
	lostAcks int
}

func (s *droppedAckStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	nested := ctx.Value(txKey{}) != nil
	if err := s.fakeStore.WithTx(ctx, fn); err != nil || nested {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lostAcks > 0 {
		s.lostAcks--
		return errors.Join(model.ErrStoreTransient, errors.New("connection reset after commit"))
	}
	return nil
}
