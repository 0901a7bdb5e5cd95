// reclaim は終了時刻を過ぎた予約を1回だけ回収し、結果をStep Functionsに返します
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/hollanddz228/ComputerClubBookingg/internal/common/config"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/tracing"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/utils"
	"github.com/hollanddz228/ComputerClubBookingg/internal/service/batch"
)

const segmentName = "club-booking-reclaim"

// ローカル実行時に使うタスクトークン
const localTaskToken = "LOCAL_TASK_TOKEN"

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "回収処理のタイムアウト時間")
	flag.Parse()

	cfg, err := config.LoadConfig(taskTokenFromArgs())
	if err != nil {
		log.Fatalf("Failed to load config: %v", utils.GetStackWithError(err))
	}
	if err := tracing.Setup(cfg.EnableTracing); err != nil {
		log.Fatal(err)
	}

	sfnClient, err := newSFNClient(cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	service, err := batch.NewReclaimBatchService(cfg, sfnClient)
	if err != nil {
		log.Fatalf("Failed to create reclaim service: %v", utils.GetStackWithError(err))
	}
	defer service.Close()

	ctx := context.Background()
	if err := utils.RunBatch(ctx, segmentName, *timeout, service.Run); err != nil {
		log.Printf("Reclaim failed: %v", err)
		if sendErr := service.SendTaskFailure(ctx, err); sendErr != nil {
			log.Printf("Failed to report task failure: %v", sendErr)
		}
		service.Close()
		os.Exit(1)
	}
	log.Println("Reclaim finished")
}

// taskTokenFromArgs はStep Functionsから最後の引数として渡されたタスクトークンを返します
func taskTokenFromArgs() string {
	if os.Getenv("ENV") == "LOCAL" {
		return localTaskToken
	}
	if flag.NArg() == 0 {
		log.Fatal("Task token is required as the last argument")
	}
	return flag.Arg(flag.NArg() - 1)
}

// ローカルではStep Functionsを呼ばないためnilを返します
func newSFNClient(cfg *config.Config) (batch.SFNClient, error) {
	if cfg.IsLocal() {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}
	return sfn.NewFromConfig(awsCfg), nil
}
