package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout はバッチ処理が制限時間内に終わらなかったことを表します
var ErrTimeout = errors.New("batch process timed out")

// RunWithTimeout は fn を timeout 以内に実行します
// 制限時間を超えた場合は fn のコンテキストをキャンセルして ErrTimeout を返します
// 呼び出し元のコンテキストがキャンセルされた場合はそのエラーを返します
// fn 内の panic はスタックトレース付きのエラーに変換します
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- GetStackWithError(fmt.Errorf("batch process panicked: %v", r))
			}
		}()
		errChan <- fn(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}
