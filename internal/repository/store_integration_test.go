package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hollanddz228/ComputerClubBookingg/internal/catalog"
	"github.com/hollanddz228/ComputerClubBookingg/internal/clock"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/logger"
	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
	"github.com/hollanddz228/ComputerClubBookingg/internal/service/booking"
	"github.com/hollanddz228/ComputerClubBookingg/internal/testutil"
)

func TestMain(m *testing.M) {
	os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
	os.Exit(m.Run())
}

func setupStore(t *testing.T) (*Store, *DB, context.Context) {
	t.Helper()
	ctx := context.Background()
	raw := testutil.NewTestDB(t)
	testutil.ApplyMigrations(t, ctx, raw)
	testutil.TruncateAll(t, ctx, raw)
	testutil.InsertResource(t, ctx, raw, model.Resource{ID: "pc-1", Name: "PC 1", Category: model.CategoryStandard, IsAvailable: true})
	testutil.InsertResource(t, ctx, raw, model.Resource{ID: "vip-1", Name: "VIP 1", Category: model.CategoryPremium, IsAvailable: true})
	db := NewDB(raw)
	return NewStore(db), db, ctx
}

func reservationAt(resourceID, user string, start time.Time, d time.Duration) model.Reservation {
	end := start.Add(d)
	return model.Reservation{
		ID:          uuid.NewString(),
		ResourceID:  resourceID,
		UserID:      user,
		PackageName: "1 hour",
		Price:       900,
		StartTime:   &start,
		EndTime:     &end,
		Status:      model.ReservationStatusActive,
		CreatedAt:   start.Add(-time.Hour),
		UpdatedAt:   start.Add(-time.Hour),
	}
}

func TestStore_AdmitAgainstPostgres(t *testing.T) {
	store, db, ctx := setupStore(t)

	now, err := clock.NewStore(db).Now(ctx)
	if err != nil {
		t.Fatalf("store clock: %v", err)
	}
	svc := booking.NewService(store, catalog.Default(), clock.NewStore(db),
		booking.WithLogger(logger.Discard()),
		booking.WithRetry(booking.RetryPolicy{Attempts: 3, BaseDelay: 10 * time.Millisecond}),
	)

	t.Run("exactly one concurrent overlapping admission wins", func(t *testing.T) {
		start := now.Add(2 * time.Hour).Truncate(time.Minute)

		const attempts = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			reasons = map[booking.Reason]int{}
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := svc.Admit(ctx, booking.Request{
					ResourceID:  "pc-1",
					PackageName: "2+1 hours",
					Start:       start.Add(time.Duration(i) * 10 * time.Minute),
					Identity:    booking.Identity{UserID: "user-1"},
				})
				mu.Lock()
				reasons[booking.ReasonOf(err)]++
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		if reasons[""] != 1 || reasons[booking.ReasonSlotTaken] != attempts-1 {
			t.Fatalf("expected 1 admission and %d SlotTaken, got %v", attempts-1, reasons)
		}

		resource, err := store.GetResource(ctx, "pc-1")
		if err != nil {
			t.Fatalf("get resource: %v", err)
		}
		if resource.IsAvailable {
			t.Fatal("expected pc-1 to be unavailable")
		}
	})

	t.Run("exclusion constraint rejects overlapping insert", func(t *testing.T) {
		start := now.Add(24 * time.Hour)
		first := reservationAt("vip-1", "user-1", start, time.Hour)
		second := reservationAt("vip-1", "user-2", start.Add(30*time.Minute), time.Hour)
		touching := reservationAt("vip-1", "user-3", start.Add(time.Hour), time.Hour)

		if err := store.InsertReservation(ctx, first); err != nil {
			t.Fatalf("insert first: %v", err)
		}
		if err := store.InsertReservation(ctx, second); !errors.Is(err, model.ErrIntervalConflict) {
			t.Fatalf("expected ErrIntervalConflict, got %v", err)
		}
		if err := store.InsertReservation(ctx, touching); err != nil {
			t.Fatalf("expected back-to-back insert to succeed, got %v", err)
		}
	})
}

func TestStore_StatusAndAvailability(t *testing.T) {
	store, db, ctx := setupStore(t)
	now, err := clock.NewStore(db).Now(ctx)
	if err != nil {
		t.Fatalf("store clock: %v", err)
	}

	expired := reservationAt("pc-1", "user-1", now.Add(-3*time.Hour), time.Hour)
	live := reservationAt("vip-1", "user-1", now.Add(-30*time.Minute), time.Hour)
	for _, r := range []model.Reservation{expired, live} {
		if err := store.InsertReservation(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	t.Run("ListExpired returns only lapsed active reservations", func(t *testing.T) {
		got, err := store.ListExpired(ctx, now)
		if err != nil {
			t.Fatalf("list expired: %v", err)
		}
		if len(got) != 1 || got[0].ID != expired.ID {
			t.Fatalf("unexpected expired set: %+v", got)
		}
	})

	t.Run("status update only applies from the expected status", func(t *testing.T) {
		var updated bool
		err := store.WithTx(ctx, func(txCtx context.Context) error {
			var err error
			updated, err = store.UpdateReservationStatus(txCtx, expired.ID, model.ReservationStatusActive, model.ReservationStatusCompleted, now)
			if err != nil {
				return err
			}
			return store.RefreshResourceAvailability(txCtx, expired.ResourceID, now)
		})
		if err != nil || !updated {
			t.Fatalf("expected update, got updated=%v err=%v", updated, err)
		}

		again, err := store.UpdateReservationStatus(ctx, expired.ID, model.ReservationStatusActive, model.ReservationStatusCompleted, now)
		if err != nil {
			t.Fatalf("second update: %v", err)
		}
		if again {
			t.Fatal("expected second update to be a no-op")
		}

		resource, err := store.GetResource(ctx, "pc-1")
		if err != nil {
			t.Fatalf("get resource: %v", err)
		}
		if !resource.IsAvailable {
			t.Fatal("expected pc-1 to be available after reclaim")
		}
	})

	t.Run("refresh keeps resource with a live reservation unavailable", func(t *testing.T) {
		if err := store.RefreshResourceAvailability(ctx, "vip-1", now); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		resource, err := store.GetResource(ctx, "vip-1")
		if err != nil {
			t.Fatalf("get resource: %v", err)
		}
		if resource.IsAvailable {
			t.Fatal("expected vip-1 to be unavailable")
		}
	})

	t.Run("unknown ids map to not found", func(t *testing.T) {
		if _, err := store.GetReservationForUpdate(ctx, "not-a-uuid"); !errors.Is(err, model.ErrReservationNotFound) {
			t.Fatalf("expected ErrReservationNotFound, got %v", err)
		}
		if _, err := store.GetReservationForUpdate(ctx, uuid.NewString()); !errors.Is(err, model.ErrReservationNotFound) {
			t.Fatalf("expected ErrReservationNotFound, got %v", err)
		}
		if _, err := store.GetResource(ctx, "pc-404"); !errors.Is(err, model.ErrResourceNotFound) {
			t.Fatalf("expected ErrResourceNotFound, got %v", err)
		}
		if _, err := store.GetNameByID(ctx, "pc-404"); !errors.Is(err, model.ErrResourceNotFound) {
			t.Fatalf("expected ErrResourceNotFound, got %v", err)
		}
	})

	t.Run("history deletion keeps active reservations", func(t *testing.T) {
		lapsed := reservationAt("pc-1", "user-1", now.Add(-6*time.Hour), time.Hour)
		if err := store.InsertReservation(ctx, lapsed); err != nil {
			t.Fatalf("insert: %v", err)
		}
		deleted, err := store.DeleteHistory(ctx, "user-1", now)
		if err != nil {
			t.Fatalf("delete history: %v", err)
		}
		if deleted != 2 {
			t.Fatalf("expected the completed and the lapsed reservation deleted, got %d", deleted)
		}
		left, err := store.ListReservationsByUser(ctx, "user-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(left) != 1 || left[0].ID != live.ID {
			t.Fatalf("unexpected remaining reservations: %+v", left)
		}
	})
}

func TestListener_ReceivesReservationChanges(t *testing.T) {
	store, _, ctx := setupStore(t)

	listener, err := NewListener(testutil.TestDSN(), ReservationsChannel, logger.Discard())
	if err != nil {
		t.Fatalf("listener: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes := listener.Changes(ctx)

	r := reservationAt("pc-1", "user-1", time.Now().Add(48*time.Hour), time.Hour)
	if err := store.InsertReservation(ctx, r); err != nil {
		t.Fatalf("insert: %v", err)
	}

	select {
	case resourceID := <-changes:
		if resourceID != "pc-1" {
			t.Fatalf("expected pc-1, got %q", resourceID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

// holdAdmission inserts r under the resource row lock like an admission and
// keeps the transaction open until release is closed.
func holdAdmission(t *testing.T, ctx context.Context, store *Store, r model.Reservation, locked chan<- struct{}, release <-chan struct{}) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- store.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := store.LockResource(txCtx, r.ResourceID); err != nil {
				return err
			}
			if err := store.InsertReservation(txCtx, r); err != nil {
				return err
			}
			if err := store.SetResourceAvailability(txCtx, r.ResourceID, false); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	return done
}

func TestStore_CancelRacingAdmissionKeepsFlag(t *testing.T) {
	store, db, ctx := setupStore(t)
	now, err := clock.NewStore(db).Now(ctx)
	if err != nil {
		t.Fatalf("store clock: %v", err)
	}
	svc := booking.NewService(store, catalog.Default(), clock.NewStore(db), booking.WithLogger(logger.Discard()))

	later := reservationAt("pc-1", "user-1", now.Add(3*time.Hour), time.Hour)
	if err := store.InsertReservation(ctx, later); err != nil {
		t.Fatalf("insert: %v", err)
	}

	locked, release := make(chan struct{}), make(chan struct{})
	admitted := holdAdmission(t, ctx, store, reservationAt("pc-1", "user-2", now.Add(time.Hour), time.Hour), locked, release)
	<-locked

	cancelled := make(chan error, 1)
	go func() {
		_, err := svc.Cancel(ctx, later.ID, "user-1")
		cancelled <- err
	}()
	// give the cancellation time to block on the resource row
	time.Sleep(300 * time.Millisecond)
	close(release)

	if err := <-admitted; err != nil {
		t.Fatalf("admission: %v", err)
	}
	if err := <-cancelled; err != nil {
		t.Fatalf("cancel: %v", err)
	}

	resource, err := store.GetResource(ctx, "pc-1")
	if err != nil {
		t.Fatalf("get resource: %v", err)
	}
	if resource.IsAvailable {
		t.Fatal("expected pc-1 to stay unavailable while the admitted reservation is live")
	}
}
