package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// NotificationRepository は利用者向け通知の読み書きを行います
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, records []model.NotificationRecord) error
	Create(ctx context.Context, record *model.NotificationRecord) error
	GetByUserID(ctx context.Context, userID string) ([]model.NotificationRecord, error)
	UpdateIsRead(ctx context.Context, id int, userID string, isRead bool) error
}

const insertNotification = `
	INSERT INTO notifications (user_id, title, message, is_read, type, created_at, updated_at)
	VALUES (:user_id, :title, :message, :is_read, :type, :created_at, :updated_at)
	RETURNING id`

// NotificationRepositoryImpl はPostgreSQLの notifications テーブルを扱います
type NotificationRepositoryImpl struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepositoryImpl {
	return &NotificationRepositoryImpl{db: db}
}

// CreateNotifications は records をすべて保存するか、1件も保存しません
func (r *NotificationRepositoryImpl) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.CreateNotifications")
	err := r.db.WithTx(ctx, func(txCtx context.Context) error {
		for i := range records {
			if err := r.Create(txCtx, &records[i]); err != nil {
				return fmt.Errorf("notification for %s: %w", records[i].UserID, err)
			}
		}
		return nil
	})
	seg.Close(err)
	return err
}

// Create は record を保存し、採番されたIDを record.ID に設定します
func (r *NotificationRepositoryImpl) Create(ctx context.Context, record *model.NotificationRecord) error {
	query, args, err := sqlx.Named(insertNotification, record)
	if err != nil {
		return fmt.Errorf("failed to bind notification: %w", err)
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&record.ID); err != nil {
		return classify(err)
	}
	return nil
}

// GetByUserID は新しい順に利用者の通知を返します
func (r *NotificationRepositoryImpl) GetByUserID(ctx context.Context, userID string) ([]model.NotificationRecord, error) {
	records := []model.NotificationRecord{}
	err := r.db.SelectContext(ctx, &records, `
		SELECT id, user_id, title, message, is_read, type, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", classify(err))
	}
	return records, nil
}

// UpdateIsRead は利用者自身の通知の既読状態を変更します
// 他人の通知は見つからなかったものとして model.ErrNotificationNotFound を返します
func (r *NotificationRepositoryImpl) UpdateIsRead(ctx context.Context, id int, userID string, isRead bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND user_id = $3`, isRead, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", classify(err))
	}
	return requireRow(result, model.ErrNotificationNotFound)
}
