package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// ReservationRepository は予約の永続化を担当するインターフェースです
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListActiveReservations(ctx context.Context, resourceID string) ([]model.Reservation, error)
	ListAllActive(ctx context.Context) ([]model.Reservation, error)
	ListExpired(ctx context.Context, now time.Time) ([]model.Reservation, error)
	InsertReservation(ctx context.Context, r model.Reservation) error
	UpdateReservationStatus(ctx context.Context, reservationID string, from, to model.ReservationStatus, at time.Time) (bool, error)
}

type ReservationRepositoryImpl struct {
	db *DB
}

func NewReservationRepository(db *DB) *ReservationRepositoryImpl {
	return &ReservationRepositoryImpl{db: db}
}

const reservationColumns = `
			id,
			resource_id,
			resource_name,
			category,
			user_id,
			user_contact,
			package_name,
			price,
			start_time,
			end_time,
			status,
			created_at,
			updated_at`

// WithTx は予約処理用のトランザクションを開始します
func (r *ReservationRepositoryImpl) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithTx(ctx, fn)
}

// ListActiveReservations は、指定されたコンピューターのアクティブな予約を取得します
func (r *ReservationRepositoryImpl) ListActiveReservations(ctx context.Context, resourceID string) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.ListActiveReservations")
	defer seg.Close(nil)

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE resource_id = $1
		AND status = 'active'
		ORDER BY start_time ASC`

	var reservations []model.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, resourceID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query active reservations for %s: %w", resourceID, classify(err))
	}
	return reservations, nil
}

// ListAllActive はすべてのアクティブな予約を取得します
// タイムスタンプが欠損しているレコードもそのまま返します
func (r *ReservationRepositoryImpl) ListAllActive(ctx context.Context) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.ListAllActive")
	defer seg.Close(nil)

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'active'
		ORDER BY resource_id, start_time ASC`

	var reservations []model.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query active reservations: %w", classify(err))
	}
	return reservations, nil
}

// ListExpired は now の時点で終了しているアクティブな予約を取得します
func (r *ReservationRepositoryImpl) ListExpired(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.ListExpired")
	defer seg.Close(nil)

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'active'
		AND end_time <= $1
		ORDER BY end_time ASC`

	var reservations []model.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, now); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query expired reservations: %w", classify(err))
	}
	return reservations, nil
}

// InsertReservation は予約を作成します
func (r *ReservationRepositoryImpl) InsertReservation(ctx context.Context, reservation model.Reservation) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.InsertReservation")
	defer seg.Close(nil)

	query := `
		INSERT INTO reservations (
			id,
			resource_id,
			resource_name,
			category,
			user_id,
			user_contact,
			package_name,
			price,
			start_time,
			end_time,
			status,
			created_at,
			updated_at
		) VALUES (
			:id,
			:resource_id,
			:resource_name,
			:category,
			:user_id,
			:user_contact,
			:package_name,
			:price,
			:start_time,
			:end_time,
			:status,
			:created_at,
			:updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, reservation); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to create reservation: %w", classify(err))
	}
	return nil
}

// GetReservationForUpdate は予約を取得し、トランザクション内であれば行をロックします
func (r *ReservationRepositoryImpl) GetReservationForUpdate(ctx context.Context, reservationID string) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.GetReservationForUpdate")
	defer seg.Close(nil)

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE id = $1`
	if txFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}

	var reservation model.Reservation
	if err := r.db.GetContext(ctx, &reservation, query, reservationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return model.Reservation{}, model.ErrReservationNotFound
		}
		seg.Close(err)
		return model.Reservation{}, fmt.Errorf("failed to get reservation %s: %w", reservationID, classify(err))
	}
	return reservation, nil
}

// UpdateReservationStatus は予約のステータスを from から to に更新します
// 既に from 以外のステータスになっている場合は何も更新せず false を返します
func (r *ReservationRepositoryImpl) UpdateReservationStatus(ctx context.Context, reservationID string, from, to model.ReservationStatus, at time.Time) (bool, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.UpdateReservationStatus")
	defer seg.Close(nil)

	if !from.CanTransitionTo(to) {
		err := fmt.Errorf("invalid status transition %s -> %s", from, to)
		seg.Close(err)
		return false, err
	}

	query := `
		UPDATE reservations
		SET status = $1,
			updated_at = $2
		WHERE id = $3
		AND status = $4`

	result, err := r.db.ExecContext(ctx, query, to, at, reservationID, from)
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to update reservation status: %w", classify(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// ListReservationsByUser はユーザーの予約を開始時刻の新しい順で取得します
func (r *ReservationRepositoryImpl) ListReservationsByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.ListReservationsByUser")
	defer seg.Close(nil)

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY start_time DESC NULLS LAST`

	var reservations []model.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, userID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query reservations for user: %w", classify(err))
	}
	return reservations, nil
}

// DeleteHistory はユーザーの完了済み・キャンセル済みの予約と、
// 終了時刻を過ぎたがまだ回収されていない予約を削除します
func (r *ReservationRepositoryImpl) DeleteHistory(ctx context.Context, userID string, now time.Time) (int64, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.DeleteHistory")
	defer seg.Close(nil)

	query := `
		DELETE FROM reservations
		WHERE user_id = $1
		AND (status IN ('completed', 'cancelled') OR (status = 'active' AND end_time <= $2))`

	result, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		seg.Close(err)
		return 0, fmt.Errorf("failed to delete reservation history: %w", classify(err))
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
