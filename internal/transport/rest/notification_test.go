package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hollanddz228/ComputerClubBookingg/internal/catalog"
	"github.com/hollanddz228/ComputerClubBookingg/internal/common/logger"
	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
	"github.com/hollanddz228/ComputerClubBookingg/internal/projection"
)

type fakeNotifications struct {
	records []model.NotificationRecord
	err     error
}

func (f *fakeNotifications) GetByUserID(_ context.Context, userID string) ([]model.NotificationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.NotificationRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeNotifications) UpdateIsRead(_ context.Context, id int, userID string, isRead bool) error {
	if f.err != nil {
		return f.err
	}
	for i, r := range f.records {
		if r.ID == id && r.UserID == userID {
			f.records[i].IsRead = isRead
			return nil
		}
	}
	return model.ErrNotificationNotFound
}

func newNotificationRouter(n *fakeNotifications) *gin.Engine {
	return NewRouter(Deps{
		Bookings:      &fakeBookings{},
		Availability:  &fakeFeed{ch: make(chan projection.Snapshot, 1)},
		Notifications: n,
		Catalog:       catalog.Default(),
		JWTSecret:     testSecret,
		Logger:        logger.Discard(),
	})
}

func TestNotificationHandler(t *testing.T) {
	n := &fakeNotifications{records: []model.NotificationRecord{
		{ID: 1, UserID: "u-1", Title: "Your session has ended"},
		{ID: 2, UserID: "u-2", Title: "Your booking was cancelled"},
	}}
	r := newNotificationRouter(n)
	tok := token(t, testSecret, "u-1")

	t.Run("lists only the caller's notifications", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/v1/notifications", tok, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var got struct {
			Notifications []model.NotificationRecord `json:"notifications"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got.Notifications) != 1 || got.Notifications[0].ID != 1 {
			t.Fatalf("unexpected notifications %+v", got.Notifications)
		}
	})

	t.Run("marks own notification as read", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/v1/notifications/1/read", tok, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !n.records[0].IsRead {
			t.Fatal("expected notification 1 to be read")
		}
	})

	t.Run("marks as unread with explicit body", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/v1/notifications/1/read", tok, map[string]bool{"is_read": false})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if n.records[0].IsRead {
			t.Fatal("expected notification 1 to be unread")
		}
	})

	t.Run("another user's notification is not found", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/v1/notifications/2/read", tok, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if n.records[1].IsRead {
			t.Fatal("expected notification 2 to be untouched")
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/v1/notifications/abc/read", tok, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("store down", func(t *testing.T) {
		down := newNotificationRouter(&fakeNotifications{err: errors.New("timeout")})
		rec := do(t, down, http.MethodGet, "/v1/notifications", tok, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}
