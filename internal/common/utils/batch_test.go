package utils

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
	os.Exit(m.Run())
}

func TestRunBatch(t *testing.T) {
	t.Run("処理にデッドライン付きのコンテキストが渡される", func(t *testing.T) {
		err := RunBatch(context.Background(), "test-batch", time.Second, func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("no deadline")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("エラーをそのまま返す", func(t *testing.T) {
		want := errors.New("reclaim failed")
		err := RunBatch(context.Background(), "test-batch", time.Second, func(context.Context) error { return want })
		if !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	})
}
