package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("デフォルト値で読み込める", func(t *testing.T) {
		t.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")

		cfg, err := LoadConfig("token-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.SFN.TaskToken != "token-1" {
			t.Errorf("expected task token to be set, got %q", cfg.SFN.TaskToken)
		}
		if cfg.Booking.NightStartHour != 22 {
			t.Errorf("expected night start hour 22, got %d", cfg.Booking.NightStartHour)
		}
		if cfg.Booking.RetryBaseDelay != 100*time.Millisecond {
			t.Errorf("unexpected retry base delay %v", cfg.Booking.RetryBaseDelay)
		}
		if cfg.Location().String() != "Asia/Almaty" {
			t.Errorf("expected Asia/Almaty, got %s", cfg.Location())
		}
		if cfg.EnableTracing {
			t.Error("expected tracing to be disabled")
		}
	})

	t.Run("不正なタイムゾーンはエラー", func(t *testing.T) {
		t.Setenv("BOOKING_TIMEZONE", "Mars/Olympus")
		if _, err := LoadConfig(""); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("範囲外の夜間開始時刻はエラー", func(t *testing.T) {
		t.Setenv("BOOKING_NIGHT_START_HOUR", "24")
		if _, err := LoadConfig(""); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("トレースを有効にできる", func(t *testing.T) {
		t.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		t.Setenv("CLUB_ENABLE_TRACING", "true")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !cfg.EnableTracing {
			t.Error("expected tracing to be enabled")
		}
		// 後続のテストに影響しないように無効に戻す
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
	})
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{env: "LOCAL", want: true},
		{env: "local", want: true},
		{env: "dev", want: false},
		{env: "prod", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := (&Config{Env: tt.env}).IsLocal(); got != tt.want {
				t.Errorf("IsLocal() = %v, want %v", got, tt.want)
			}
		})
	}
}
