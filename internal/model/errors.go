package model

import "errors"

var (
	ErrResourceNotFound    = errors.New("resource not found")
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrNotificationNotFound は通知が存在しないか、他のユーザーの通知であることを表します
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrStoreTransient はリトライ可能なストア障害(接続断、シリアライズ失敗など)を表します
	ErrStoreTransient = errors.New("store transient failure")
	// ErrIntervalConflict はストア側の排他制約で重複が検出されたことを表します
	ErrIntervalConflict = errors.New("interval conflict")
)
