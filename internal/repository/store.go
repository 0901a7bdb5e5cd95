package repository

import (
	"context"
)

// Store は予約処理に必要なコンピューターと予約の操作をまとめたものです
// 同じ DB を共有するため、WithTx 内の呼び出しは一つのトランザクションで実行されます
type Store struct {
	*ResourceRepositoryImpl
	*ReservationRepositoryImpl

	db *DB
}

// NewStore は新しいStoreを作成します
func NewStore(db *DB) *Store {
	return &Store{
		ResourceRepositoryImpl:    NewResourceRepository(db),
		ReservationRepositoryImpl: NewReservationRepository(db),
		db:                        db,
	}
}

// WithTx は fn を一つのトランザクション内で実行します
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.WithTx(ctx, fn)
}
