package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/hollanddz228/ComputerClubBookingg/internal/clock"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/config"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/database"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/logger"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/utils"
	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
	"github.com/hollanddz228/ComputerClubBookingg/internal/repository"
)

// SFNClient はバッチが利用するStep Functions APIです
type SFNClient interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error)
}

// ReclaimBatchService はStep Functionsのタスクとして回収を1サイクルだけ実行します
// 回収した予約は通知バッチへの入力としてタスク出力に載せます
type ReclaimBatchService struct {
	db        *database.DB
	reclaimer *Reclaimer
	sfnClient SFNClient
	cfg       *config.Config
}

// NewReclaimBatchService はDBに接続し、ストアの時計を使うReclaimerを組み立てます
func NewReclaimBatchService(cfg *config.Config, sfnClient SFNClient) (*ReclaimBatchService, error) {
	db, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	repoDB := repository.NewDB(db.DB)
	return &ReclaimBatchService{
		db: db,
		reclaimer: NewReclaimer(repository.NewStore(repoDB), clock.NewStore(repoDB),
			WithReclaimLogger(logger.New(cfg.Env))),
		sfnClient: sfnClient,
		cfg:       cfg,
	}, nil
}

// Close はDB接続を閉じます。複数回呼んでも安全です
func (s *ReclaimBatchService) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return db.Close()
}

func (s *ReclaimBatchService) reportsToSFN() bool {
	return !s.cfg.IsLocal() && s.sfnClient != nil
}

// Run は期限切れ予約を回収し、結果をタスク成功として報告します
func (s *ReclaimBatchService) Run(ctx context.Context) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReclaimBatchService.Run")
	defer func() { seg.Close(err) }()

	started := time.Now()
	events, err := s.reclaimer.ReclaimExpired(ctx)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to reclaim expired reservations: %w", err))
	}

	if !s.reportsToSFN() {
		log.Printf("Skipping task success report outside Step Functions (%d reclaimed)", len(events))
		return nil
	}
	if err := s.sendTaskSuccess(ctx, events); err != nil {
		return utils.GetStackWithError(err)
	}

	log.Printf("Reclaimed %d reservations in %v", len(events), time.Since(started))
	return nil
}

// SendTaskFailure はタスクの失敗と原因をStep Functionsに伝えます
// 呼び出し元のコンテキストがキャンセル済みでも送信を試みます
func (s *ReclaimBatchService) SendTaskFailure(ctx context.Context, cause error) error {
	if !s.reportsToSFN() {
		return nil
	}
	_, err := s.sfnClient.SendTaskFailure(context.WithoutCancel(ctx), &sfn.SendTaskFailureInput{
		TaskToken: aws.String(s.cfg.SFN.TaskToken),
		Error:     aws.String("ReclaimFailed"),
		Cause:     aws.String(cause.Error()),
	})
	if err != nil {
		return fmt.Errorf("failed to send task failure: %w", err)
	}
	return nil
}

func (s *ReclaimBatchService) sendTaskSuccess(ctx context.Context, events []model.ReservationEvent) error {
	if s.cfg.SFN.TaskToken == "" {
		return errors.New("task token is empty")
	}
	output, err := TaskOutput(events)
	if err != nil {
		return err
	}
	_, err = s.sfnClient.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(s.cfg.SFN.TaskToken),
		Output:    aws.String(output),
	})
	if err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}
	return nil
}

// taskOutput は通知バッチが ParseTaskInput で読む形式です
type taskOutput struct {
	Notifications []model.Notification `json:"notifications"`
}

// TaskOutput は回収イベントを通知に変換し、{"notifications": [...]} のJSONを返します
func TaskOutput(events []model.ReservationEvent) (string, error) {
	out := taskOutput{Notifications: make([]model.Notification, 0, len(events))}
	for _, event := range events {
		out.Notifications = append(out.Notifications, model.NewReservationNotification(event))
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task output: %w", err)
	}
	return string(b), nil
}
