package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/hollanddz228/ComputerClubBookingg/internal/clock"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/config"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/database"
	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
	"github.com/hollanddz228/ComputerClubBookingg/internal/repository"
)

// NotificationWriter は通知レコードをまとめて保存します
type NotificationWriter interface {
	CreateNotifications(ctx context.Context, records []model.NotificationRecord) error
}

// ResourceNamer はコンピューターIDから表示名を引きます
type ResourceNamer interface {
	GetNameByID(ctx context.Context, resourceID string) (string, error)
}

// NotificationBatchService は回収バッチが出力した通知を保存します
type NotificationBatchService struct {
	args             []model.Notification
	db               *database.DB
	notificationRepo NotificationWriter
	resourceRepo     ResourceNamer
	clock            clock.Clock
	cfg              *config.Config
}

// NewNotificationBatchService は新しいNotificationBatchServiceを作成します
func NewNotificationBatchService(cfg *config.Config) (*NotificationBatchService, error) {
	db, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	repoDB := repository.NewDB(db.DB)

	return &NotificationBatchService{
		db:               db,
		notificationRepo: repository.NewNotificationRepository(repoDB),
		resourceRepo:     repository.NewResourceRepository(repoDB),
		clock:            clock.NewSystem(),
		cfg:              cfg,
	}, nil
}

// Close は終了処理を行います
func (s *NotificationBatchService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetArgs は通知バッチ処理の引数を設定します
func (s *NotificationBatchService) SetArgs(args []model.Notification) {
	s.args = args
}

// ParseTaskInput は回収バッチの出力({"notifications": [...]})を通知に変換します
func ParseTaskInput(raw string) ([]model.Notification, error) {
	var input taskOutput
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, fmt.Errorf("failed to parse task input: %w", err)
	}
	return input.Notifications, nil
}

// Run は通知をレコードに変換し、1つのトランザクションで保存します
// 1件でも変換できない通知があれば何も保存しません
func (s *NotificationBatchService) Run(ctx context.Context) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.Run")
	defer func() { seg.Close(err) }()

	started := time.Now()

	names, err := s.resolveResourceNames(ctx, s.args)
	if err != nil {
		return err
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return err
	}

	records := make([]model.NotificationRecord, 0, len(s.args))
	for i := range s.args {
		record, err := s.args[i].ToNotificationRecord(names)
		if err != nil {
			return fmt.Errorf("notification %d: %w", i, err)
		}
		// 作成日時を持たない入力はバッチの実行時刻で記録する
		if record.CreatedAt.IsZero() {
			record.CreatedAt, record.UpdatedAt = now, now
		}
		records = append(records, *record)
	}

	if err := s.notificationRepo.CreateNotifications(ctx, records); err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}

	elapsed := time.Since(started)
	if err := seg.AddMetadata("stored", len(records)); err != nil {
		log.Printf("Failed to add stored metadata: %v", err)
	}
	log.Printf("Stored %d notifications for %d resources in %v", len(records), len(names), elapsed)
	return nil
}

// resolveResourceNames は予約通知に含まれるコンピューターの表示名を1台につき1回だけ取得します
func (s *NotificationBatchService) resolveResourceNames(ctx context.Context, notifications []model.Notification) (map[string]string, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.resolveResourceNames")
	defer seg.Close(nil)

	names := make(map[string]string)
	for _, n := range notifications {
		data, ok := n.Data.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid notification data format")
		}
		// 共通通知はコンピューターに紐付かない
		if n.Type != model.NotificationTypeReservation {
			continue
		}
		resourceID, ok := data["resource_id"].(string)
		if !ok {
			return nil, fmt.Errorf("resource_id is not a string")
		}
		if _, seen := names[resourceID]; seen {
			continue
		}

		name, err := s.resourceRepo.GetNameByID(ctx, resourceID)
		if err != nil {
			seg.Close(err)
			return nil, fmt.Errorf("failed to resolve resource %s: %w", resourceID, err)
		}
		names[resourceID] = name
	}
	return names, nil
}
