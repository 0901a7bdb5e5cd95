// notification は回収バッチの出力を受け取り、利用者向けの通知を保存します
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/hollanddz228/ComputerClubBookingg/internal/common/config"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/tracing"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/utils"
	"github.com/hollanddz228/ComputerClubBookingg/internal/service/batch"
)

const segmentName = "club-booking-notification"

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "通知処理のタイムアウト時間")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal(`Task input {"notifications": [...]} is required as the last argument`)
	}
	input := flag.Arg(flag.NArg() - 1)

	notifications, err := batch.ParseTaskInput(input)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", utils.GetStackWithError(err))
	}
	if err := tracing.Setup(cfg.EnableTracing); err != nil {
		log.Fatal(err)
	}

	service, err := batch.NewNotificationBatchService(cfg)
	if err != nil {
		log.Fatalf("Failed to create notification service: %v", err)
	}
	defer service.Close()
	service.SetArgs(notifications)

	if err := utils.RunBatch(context.Background(), segmentName, *timeout, service.Run); err != nil {
		log.Printf("Notification batch failed: %v", err)
		service.Close()
		os.Exit(1)
	}
	log.Printf("Stored %d notifications", len(notifications))
}
