package model

import (
	"fmt"
	"time"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeReservation は予約関連の通知を表します
	NotificationTypeReservation NotificationType = "reservation"
	// NotificationTypeCommon は共通の通知を表します
	NotificationTypeCommon NotificationType = "common"
)

// Notification はイベントIFを受け取るための定義です
// アプリケーションサービス層で利用されます
type Notification struct {
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	Data      interface{}      `json:"data"`
}

// NotificationRecord は通知のドメインモデルです
// データベースに永続化される通知レコードと今回は一致しています
type NotificationRecord struct {
	ID        int              `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	IsRead    bool             `db:"is_read" json:"is_read"`
	Type      NotificationType `db:"type" json:"type"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

const displayTimeLayout = "02.01 15:04"

// ToNotificationRecord は通知を通知レコードに変換します
func (n Notification) ToNotificationRecord(resourceNameMap map[string]string) (*NotificationRecord, error) {
	data, ok := n.Data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid notification data format")
	}

	userID, ok := data["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("user_id is missing in notification data")
	}

	if n.Type != NotificationTypeReservation {
		return &NotificationRecord{
			UserID:    userID,
			Title:     "New notification",
			Message:   "You have a new notification.",
			IsRead:    false,
			Type:      NotificationTypeCommon,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.CreatedAt,
		}, nil
	}

	resourceID, _ := data["resource_id"].(string)
	resourceName, ok := resourceNameMap[resourceID]
	if !ok {
		return nil, fmt.Errorf("resource_id %q not found in resourceNameMap", resourceID)
	}

	endTime, err := parseDataTime(data["end_time"])
	if err != nil {
		return nil, err
	}

	status, _ := data["status"].(string)
	title := "Your session has ended"
	message := fmt.Sprintf("Session on %s finished at %s.", resourceName, endTime.Format(displayTimeLayout))
	if ReservationStatus(status) == ReservationStatusCancelled {
		title = "Your booking was cancelled"
		message = fmt.Sprintf("Booking on %s was cancelled.", resourceName)
	}

	return &NotificationRecord{
		UserID:    userID,
		Title:     title,
		Message:   message,
		IsRead:    false,
		Type:      NotificationTypeReservation,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.CreatedAt,
	}, nil
}

// end_timeフィールドはStep Functions経由だと文字列で届くため両方を受け付けます
func parseDataTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid end_time format: %v", err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected type for end_time: %T", v)
	}
}

// NewReservationNotification は予約イベントから通知を作成します
func NewReservationNotification(event ReservationEvent) Notification {
	return Notification{
		Type:      NotificationTypeReservation,
		CreatedAt: event.CreatedAt,
		Data: map[string]interface{}{
			"user_id":        event.UserID,
			"resource_id":    event.ResourceID,
			"reservation_id": event.ReservationID,
			"status":         string(event.Status),
			"end_time":       event.EndTime,
		},
	}
}
