package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/hollanddz228/ComputerClubBookingg/internal/model"
)

// ResourceRepository はコンピューター情報の永続化を担当するインターフェースです
type ResourceRepository interface {
	GetNameByID(ctx context.Context, resourceID string) (string, error)
	ListResources(ctx context.Context) ([]model.Resource, error)
}

// ResourceRepositoryImpl はResourceRepositoryの実装です
type ResourceRepositoryImpl struct {
	db *DB
}

// NewResourceRepository は新しいResourceRepositoryを作成します
func NewResourceRepository(db *DB) *ResourceRepositoryImpl {
	return &ResourceRepositoryImpl{
		db: db,
	}
}

const resourceColumns = `id, name, category, is_available`

// GetNameByID は指定されたコンピューターIDから名前を取得します
func (r *ResourceRepositoryImpl) GetNameByID(ctx context.Context, resourceID string) (string, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ResourceRepository.GetNameByID")
	defer seg.Close(nil)

	query := `
		SELECT name
		FROM resources
		WHERE id = $1`

	var name string
	if err := r.db.GetContext(ctx, &name, query, resourceID); err != nil {
		seg.Close(err)
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrResourceNotFound
		}
		return "", fmt.Errorf("failed to get resource name: %w", classify(err))
	}

	return name, nil
}

// GetResource はコンピューターを取得します
func (r *ResourceRepositoryImpl) GetResource(ctx context.Context, resourceID string) (model.Resource, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ResourceRepository.GetResource")
	defer seg.Close(nil)

	return r.getResource(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, resourceID)
}

// LockResource はトランザクション内でコンピューターの行をロックして取得します
// 同じコンピューターへの予約処理はこのロックで直列化されます
func (r *ResourceRepositoryImpl) LockResource(ctx context.Context, resourceID string) (model.Resource, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ResourceRepository.LockResource")
	defer seg.Close(nil)

	if txFromContext(ctx) == nil {
		err := errors.New("LockResource requires a transaction")
		seg.Close(err)
		return model.Resource{}, err
	}
	return r.getResource(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1 FOR UPDATE`, resourceID)
}

func (r *ResourceRepositoryImpl) getResource(ctx context.Context, query, resourceID string) (model.Resource, error) {
	var resource model.Resource
	if err := r.db.GetContext(ctx, &resource, query, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Resource{}, model.ErrResourceNotFound
		}
		return model.Resource{}, fmt.Errorf("failed to get resource %s: %w", resourceID, classify(err))
	}
	return resource, nil
}

// ListResources はすべてのコンピューターを名前順で取得します
func (r *ResourceRepositoryImpl) ListResources(ctx context.Context) ([]model.Resource, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ResourceRepository.ListResources")
	defer seg.Close(nil)

	var resources []model.Resource
	if err := r.db.SelectContext(ctx, &resources, `SELECT `+resourceColumns+` FROM resources ORDER BY name`); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list resources: %w", classify(err))
	}
	return resources, nil
}

// SetResourceAvailability はコンピューターの空き状況フラグを更新します
func (r *ResourceRepositoryImpl) SetResourceAvailability(ctx context.Context, resourceID string, available bool) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ResourceRepository.SetResourceAvailability")
	defer seg.Close(nil)

	query := `
		UPDATE resources
		SET is_available = $1
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, available, resourceID)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to update resource availability: %w", classify(err))
	}
	return requireRow(result, model.ErrResourceNotFound)
}

// RefreshResourceAvailability は予約の集合から空き状況フラグを再計算します
// now 以降に終了するアクティブな予約がなければ空きとします
func (r *ResourceRepositoryImpl) RefreshResourceAvailability(ctx context.Context, resourceID string, now time.Time) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ResourceRepository.RefreshResourceAvailability")
	defer seg.Close(nil)

	query := `
		UPDATE resources
		SET is_available = NOT EXISTS (
			SELECT 1
			FROM reservations
			WHERE resource_id = $1
			AND status = 'active'
			AND end_time > $2
		)
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, resourceID, now)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to refresh resource availability: %w", classify(err))
	}
	return requireRow(result, model.ErrResourceNotFound)
}

func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
