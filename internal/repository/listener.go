package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ReservationsChannel はreservationsテーブルの変更が通知されるチャネル名です
const ReservationsChannel = "reservations_changed"

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// Listener は予約の変更通知を LISTEN/NOTIFY で受け取ります
type Listener struct {
	listener *pq.Listener
	logger   *slog.Logger
}

// NewListener は dsn に接続して channel を LISTEN する Listener を作成します
func NewListener(dsn, channel string, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			logger.Warn("reservation listener connection problem", "event", int(ev), "error", err)
		case pq.ListenerEventReconnected:
			logger.Info("reservation listener reconnected")
		}
	})
	if err := l.Listen(channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}
	return &Listener{listener: l, logger: logger}, nil
}

// Changes は変更のあったコンピューターIDを流すチャネルを返します
// 再接続の直後は取りこぼしがありうるため空文字を流します
// ctx がキャンセルされるとチャネルは閉じられます
func (l *Listener) Changes(ctx context.Context) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-l.listener.Notify:
				if !ok {
					return
				}
				resourceID := ""
				if n != nil {
					resourceID = n.Extra
				}
				select {
				case out <- resourceID:
				case <-ctx.Done():
					return
				}
			case <-ticker.C:
				if err := l.listener.Ping(); err != nil {
					l.logger.Warn("reservation listener ping failed", "error", err)
				}
			}
		}
	}()
	return out
}

// Close はリスナーを停止します
func (l *Listener) Close() error {
	return l.listener.Close()
}
