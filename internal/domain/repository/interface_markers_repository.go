package repository

import (
	"context"

	"DishMap-App/internal/domain/model"
)

// MarkersRepository マーカー記録の永続化を担うリポジトリインターフェース
type MarkersRepository interface {
	// Create はマーカーを保存し、採番されたIDを返す
	Create(ctx context.Context, marker *model.Marker) (string, error)
	// GetAll は全マーカーを返す。壊れた記録はスキップされる
	GetAll(ctx context.Context) ([]model.Marker, error)
}
