package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunWithTimeout(t *testing.T) {
	t.Run("処理の結果をそのまま返す", func(t *testing.T) {
		want := errors.New("boom")
		err := RunWithTimeout(context.Background(), time.Second, func(context.Context) error { return want })
		if !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	})

	t.Run("タイムアウトした場合は ErrTimeout", func(t *testing.T) {
		err := RunWithTimeout(context.Background(), 10*time.Millisecond, func(context.Context) error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("呼び出し元のキャンセルはタイムアウトと区別する", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RunWithTimeout(ctx, time.Second, func(context.Context) error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("panic はエラーとして返す", func(t *testing.T) {
		err := RunWithTimeout(context.Background(), time.Second, func(context.Context) error {
			panic("nil resource map")
		})
		if err == nil || !strings.Contains(err.Error(), "nil resource map") {
			t.Fatalf("expected panic error, got %v", err)
		}
	})
}

func TestGetStackWithError(t *testing.T) {
	if GetStackWithError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	base := errors.New("base")
	err := GetStackWithError(base)
	if !errors.Is(err, base) || !strings.Contains(err.Error(), "Stack trace") {
		t.Fatalf("unexpected error %v", err)
	}

	again := GetStackWithError(err)
	if strings.Count(again.Error(), "Stack trace") != 1 {
		t.Fatalf("expected a single stack trace, got %q", again.Error())
	}
}
