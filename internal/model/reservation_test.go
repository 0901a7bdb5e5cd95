package model

import (
	"testing"
	"time"
)

func TestReservationInterval(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	zero := time.Time{}

	tests := []struct {
		name   string
		start  *time.Time
		end    *time.Time
		wantOK bool
	}{
		{name: "正常な区間", start: &start, end: &end, wantOK: true},
		{name: "開始時刻なし", start: nil, end: &end, wantOK: false},
		{name: "終了時刻なし", start: &start, end: nil, wantOK: false},
		{name: "ゼロ値の時刻", start: &zero, end: &end, wantOK: false},
		{name: "逆転した区間", start: &end, end: &start, wantOK: false},
		{name: "長さゼロの区間", start: &start, end: &start, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Reservation{StartTime: tt.start, EndTime: tt.end}
			gotStart, gotEnd, ok := r.Interval()
			if ok != tt.wantOK {
				t.Fatalf("Interval() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (!gotStart.Equal(start) || !gotEnd.Equal(end)) {
				t.Errorf("Interval() = [%v, %v), want [%v, %v)", gotStart, gotEnd, start, end)
			}
		})
	}
}

func TestReservationStatusTransition(t *testing.T) {
	tests := []struct {
		from ReservationStatus
		to   ReservationStatus
		want bool
	}{
		{ReservationStatusActive, ReservationStatusCompleted, true},
		{ReservationStatusActive, ReservationStatusCancelled, true},
		{ReservationStatusActive, ReservationStatusActive, false},
		{ReservationStatusCompleted, ReservationStatusActive, false},
		{ReservationStatusCompleted, ReservationStatusCancelled, false},
		{ReservationStatusCancelled, ReservationStatusActive, false},
		{ReservationStatusCancelled, ReservationStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewReservationEvent(t *testing.T) {
	now := time.Now()
	start := now.Add(-2 * time.Hour)
	end := now
	r := Reservation{
		ID:         "res-1",
		ResourceID: "pc-1",
		UserID:     "user1",
		StartTime:  &start,
		EndTime:    &end,
		Status:     ReservationStatusCompleted,
	}

	event := NewReservationEvent(r, now)

	if event.ReservationID != "res-1" {
		t.Errorf("ReservationEvent.ReservationID = %v, want %v", event.ReservationID, "res-1")
	}
	if !event.EndTime.Equal(end) {
		t.Errorf("ReservationEvent.EndTime = %v, want %v", event.EndTime, end)
	}
	if event.Status != ReservationStatusCompleted {
		t.Errorf("ReservationEvent.Status = %v, want %v", event.Status, ReservationStatusCompleted)
	}

	// タイムスタンプ欠損でもパニックしないこと
	broken := NewReservationEvent(Reservation{ID: "res-2"}, now)
	if !broken.EndTime.IsZero() {
		t.Errorf("ReservationEvent.EndTime = %v, want zero", broken.EndTime)
	}
}

func TestParseCategory(t *testing.T) {
	tests := map[string]Category{
		"standard": CategoryStandard,
		"Premium":  CategoryPremium,
		"VIP":      CategoryPremium,
		"ВИП":      CategoryPremium,
		"bootcamp": CategoryBootcamp,
		"unknown":  CategoryStandard,
		"":         CategoryStandard,
	}
	for in, want := range tests {
		if got := ParseCategory(in); got != want {
			t.Errorf("ParseCategory(%q) = %v, want %v", in, got, want)
		}
	}
}
