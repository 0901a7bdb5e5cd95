package utils

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// RunBatch は segment という名前のX-Rayセグメント内で fn を実行します
// SIGINT/SIGTERM を受け取るか timeout を超えると fn のコンテキストはキャンセルされます
func RunBatch(ctx context.Context, segment string, timeout time.Duration, fn func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, seg := xray.BeginSegment(ctx, segment)
	if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
		log.Printf("Failed to add timeout metadata: %v", err)
	}

	err := RunWithTimeout(ctx, timeout, fn)
	seg.Close(err)
	return err
}
