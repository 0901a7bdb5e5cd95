package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type txKey struct{}

// DB はトランザクションをコンテキストで受け渡すsqlxのラッパーです
type DB struct {
	*sqlx.DB
}

// NewDB は接続済みの sqlx.DB からリポジトリ用のDBを作成します
func NewDB(db *sqlx.DB) *DB {
	return &DB{DB: db}
}

// WithTx は fn をトランザクション内で実行します
// fn に渡されるコンテキストを使ったリポジトリ呼び出しは同じトランザクションに参加します
// 既にトランザクション内であればそのまま fn を実行します
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSubsegment(ctx, "DB.WithTx")
	defer seg.Close(nil)

	tx, err := db.DB.BeginTxx(ctx, nil)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	// エラーが発生した場合のみロールバックを実行
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				log.Printf("rollback failed: %v, original error: %v", rbErr, err)
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		seg.Close(err)
		return err
	}

	if err = tx.Commit(); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// ext はコンテキストにトランザクションがあればそれを、なければDBを返します
func (db *DB) ext(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// GetContext wraps sqlx.GetContext with X-Ray tracing and the context transaction
func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Get")
	defer seg.Close(nil)

	// クエリをメタデータとして追加
	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}

	if err := sqlx.GetContext(ctx, db.ext(ctx), dest, query, args...); err != nil {
		seg.Close(err)
		return err
	}
	return nil
}

// SelectContext wraps sqlx.SelectContext with X-Ray tracing and the context transaction
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Select")
	defer seg.Close(nil)

	// クエリをメタデータとして追加
	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}

	if err := sqlx.SelectContext(ctx, db.ext(ctx), dest, query, args...); err != nil {
		seg.Close(err)
		return err
	}
	return nil
}

// ExecContext wraps ExecContext with X-Ray tracing and the context transaction
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Exec")
	defer seg.Close(nil)

	// クエリをメタデータとして追加
	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}

	result, err := db.ext(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return nil, err
	}
	return result, nil
}

// NamedExecContext wraps sqlx.NamedExecContext with X-Ray tracing and the context transaction
func (db *DB) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.NamedExec")
	defer seg.Close(nil)

	result, err := sqlx.NamedExecContext(ctx, db.ext(ctx), query, arg)
	if err != nil {
		seg.Close(err)
		return nil, err
	}
	return result, nil
}

// QueryRowxContext wraps QueryRowxContext with the context transaction
func (db *DB) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return db.ext(ctx).QueryRowxContext(ctx, query, args...)
}
