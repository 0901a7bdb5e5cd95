package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/hollanddz228/ComputerClubBookingg/internal/clock"
	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
	"github.com/hollanddz228/ComputerClubBookingg/internal/service/booking"
)

// DefaultReclaimInterval は期限切れ予約の回収間隔です
const DefaultReclaimInterval = 30 * time.Second

// ReclaimStore は期限切れ予約の回収に必要なストア操作です
type ReclaimStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListExpired(ctx context.Context, now time.Time) ([]model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID string, from, to model.ReservationStatus, at time.Time) (bool, error)
	LockResource(ctx context.Context, resourceID string) (model.Resource, error)
	RefreshResourceAvailability(ctx context.Context, resourceID string, now time.Time) error
}

// ReclaimRecorder は回収結果を受け取ります
type ReclaimRecorder interface {
	ReclaimResult(reclaimed, failed int, elapsed time.Duration)
}

type nopReclaimRecorder struct{}

func (nopReclaimRecorder) ReclaimResult(int, int, time.Duration) {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, model.ReservationEvent) error { return nil }

// Reclaimer は終了時刻を過ぎたアクティブな予約を完了にし、コンピューターを解放します
// 予約ごとに個別のトランザクションで処理するため、1件の失敗が他の予約の回収を妨げません
type Reclaimer struct {
	store     ReclaimStore
	clock     clock.Clock
	publisher booking.EventPublisher
	recorder  ReclaimRecorder
	logger    *slog.Logger
}

type ReclaimerOption func(*Reclaimer)

func WithReclaimPublisher(p booking.EventPublisher) ReclaimerOption {
	return func(r *Reclaimer) {
		if p != nil {
			r.publisher = p
		}
	}
}

func WithReclaimRecorder(rec ReclaimRecorder) ReclaimerOption {
	return func(r *Reclaimer) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

func WithReclaimLogger(l *slog.Logger) ReclaimerOption {
	return func(r *Reclaimer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReclaimer は新しいReclaimerを作成します
func NewReclaimer(store ReclaimStore, clk clock.Clock, opts ...ReclaimerOption) *Reclaimer {
	r := &Reclaimer{
		store:     store,
		clock:     clk,
		publisher: nopPublisher{},
		recorder:  nopReclaimRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReclaimExpired は期限切れの予約を回収し、完了にした予約のイベントを返します
// 既に完了済みの予約は何もしないため、同時に複数回実行しても結果は変わりません
func (r *Reclaimer) ReclaimExpired(ctx context.Context) ([]model.ReservationEvent, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "Reclaimer.ReclaimExpired")
	defer seg.Close(nil)

	startTime := time.Now()

	now, err := r.clock.Now(ctx)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to read store time: %w", err)
	}

	expired, err := r.store.ListExpired(ctx, now)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}

	events := make([]model.ReservationEvent, 0, len(expired))
	failed := 0
	for _, reservation := range expired {
		if _, _, ok := reservation.Interval(); !ok {
			r.logger.Warn("skipping reservation with invalid interval",
				"reservation_id", reservation.ID,
				"resource_id", reservation.ResourceID,
			)
			continue
		}

		completed, err := r.reclaimOne(ctx, reservation, now)
		if err != nil {
			// 次のサイクルで再度回収を試みる
			failed++
			r.logger.Error("failed to reclaim reservation",
				"reservation_id", reservation.ID,
				"resource_id", reservation.ResourceID,
				"error", err,
			)
			continue
		}
		if !completed {
			continue
		}

		reservation.Status = model.ReservationStatusCompleted
		event := model.NewReservationEvent(reservation, now)
		events = append(events, event)
		if err := r.publisher.Publish(ctx, booking.EventCompleted, event); err != nil {
			r.logger.Warn("failed to publish booking event",
				"key", booking.EventCompleted,
				"reservation_id", reservation.ID,
				"error", err,
			)
		}
	}

	duration := time.Since(startTime)
	r.recorder.ReclaimResult(len(events), failed, duration)

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("reclaimed", len(events)); err != nil {
		r.logger.Debug("failed to add reclaimed metadata", "error", err)
	}

	if len(expired) > 0 {
		r.logger.Info("reclaim cycle finished",
			"expired", len(expired),
			"reclaimed", len(events),
			"failed", failed,
			"duration", duration.String(),
		)
	}
	return events, nil
}

func (r *Reclaimer) reclaimOne(ctx context.Context, reservation model.Reservation, now time.Time) (bool, error) {
	var completed bool
	err := r.store.WithTx(ctx, func(txCtx context.Context) error {
		updated, err := r.store.UpdateReservationStatus(txCtx, reservation.ID,
			model.ReservationStatusActive, model.ReservationStatusCompleted, now)
		if err != nil {
			return err
		}
		if !updated {
			// 別の回収処理かキャンセルで既に終端状態になっている
			return nil
		}
		completed = true
		// 予約行の次にコンピューター行をロックする(キャンセルと同じ順序)
		// ロック取得後のフラグ再計算は、並行する予約処理のコミットを含めて判定される
		if _, err := r.store.LockResource(txCtx, reservation.ResourceID); err != nil {
			return err
		}
		return r.store.RefreshResourceAvailability(txCtx, reservation.ResourceID, now)
	})
	if err != nil {
		return false, err
	}
	return completed, nil
}

// Run は ctx がキャンセルされるまで interval ごとに ReclaimExpired を実行します
// 1回の失敗でループは停止しません
func (r *Reclaimer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReclaimInterval
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		cycleCtx, seg := xray.BeginSegment(ctx, "reclaim-cycle")
		if _, err := r.ReclaimExpired(cycleCtx); err != nil {
			seg.Close(err)
			r.logger.Error("reclaim cycle failed", "error", err)
		} else {
			seg.Close(nil)
		}

		timer.Reset(interval)
	}
}
