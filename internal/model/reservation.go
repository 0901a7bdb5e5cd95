package model

import "time"

// ReservationStatus は予約のステータスです
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// IsTerminal は終端ステータスかどうかを返します
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusCompleted || s == ReservationStatusCancelled
}

// CanTransitionTo はステータス遷移が許可されているかを返します
// active からcompleted / cancelled への一方向の遷移のみ許可します
func (s ReservationStatus) CanTransitionTo(to ReservationStatus) bool {
	return s == ReservationStatusActive && to.IsTerminal()
}

// Reservation はコンピューターの予約情報を表す構造体です
// StartTime / EndTime はレコードの破損を検出できるようにポインタで保持します
type Reservation struct {
	ID           string            `db:"id" json:"id"`
	ResourceID   string            `db:"resource_id" json:"resource_id"`
	ResourceName string            `db:"resource_name" json:"resource_name"`
	Category     Category          `db:"category" json:"category"`
	UserID       string            `db:"user_id" json:"user_id"`
	UserContact  string            `db:"user_contact" json:"user_contact"`
	PackageName  string            `db:"package_name" json:"package_name"`
	Price        float64           `db:"price" json:"price"`
	StartTime    *time.Time        `db:"start_time" json:"start_time"`
	EndTime      *time.Time        `db:"end_time" json:"end_time"`
	Status       ReservationStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// Interval は予約の[start, end)区間を返します
// タイムスタンプが欠損している、または start >= end の場合 ok は false になります
func (r Reservation) Interval() (start, end time.Time, ok bool) {
	if r.StartTime == nil || r.EndTime == nil {
		return time.Time{}, time.Time{}, false
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() || !r.StartTime.Before(*r.EndTime) {
		return time.Time{}, time.Time{}, false
	}
	return *r.StartTime, *r.EndTime, true
}

// ReservationEvent は予約の状態が変化した時に発行されるイベントの構造体
type ReservationEvent struct {
	ReservationID string            `json:"reservation_id"`
	UserID        string            `json:"user_id"`
	ResourceID    string            `json:"resource_id"`
	Status        ReservationStatus `json:"status"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewReservationEvent は予約からイベントを作成します
func NewReservationEvent(r Reservation, at time.Time) ReservationEvent {
	ev := ReservationEvent{
		ReservationID: r.ID,
		UserID:        r.UserID,
		ResourceID:    r.ResourceID,
		Status:        r.Status,
		CreatedAt:     at,
	}
	if r.StartTime != nil {
		ev.StartTime = *r.StartTime
	}
	if r.EndTime != nil {
		ev.EndTime = *r.EndTime
	}
	return ev
}
