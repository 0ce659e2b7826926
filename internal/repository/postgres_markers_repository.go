package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"

	"DishMap-App/internal/domain/model"
	"DishMap-App/internal/domain/repository"
	"DishMap-App/internal/infrastructure/database"
)

const createMarkersTableSQL = `
CREATE TABLE IF NOT EXISTS markers (
	id               UUID PRIMARY KEY,
	restaurant_name  TEXT NOT NULL,
	dish_name        TEXT NOT NULL,
	dish_description TEXT NOT NULL,
	latitude         DOUBLE PRECISION NOT NULL,
	longitude        DOUBLE PRECISION NOT NULL,
	photo_url        TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresMarkersRepository PostgreSQLを使用したマーカーリポジトリ
type PostgresMarkersRepository struct {
	client *database.PostgreSQLClient
}

// NewPostgresMarkersRepository 新しいPostgresMarkersRepositoryインスタンスを作成
func NewPostgresMarkersRepository(client *database.PostgreSQLClient) *PostgresMarkersRepository {
	return &PostgresMarkersRepository{
		client: client,
	}
}

var _ repository.MarkersRepository = (*PostgresMarkersRepository)(nil)

// EnsureSchema markersテーブルを作成
func (r *PostgresMarkersRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.client.DB.ExecContext(ctx, createMarkersTableSQL); err != nil {
		return fmt.Errorf("markersテーブルの作成に失敗: %w", err)
	}
	return nil
}

// Create マーカーを保存
func (r *PostgresMarkersRepository) Create(ctx context.Context, marker *model.Marker) (string, error) {
	id := uuid.New().String()

	var photoURL sql.NullString
	if marker.HasImage() {
		photoURL = sql.NullString{String: *marker.ImageURL, Valid: true}
	}

	query := `
		INSERT INTO markers (id, restaurant_name, dish_name, dish_description, latitude, longitude, photo_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.client.DB.ExecContext(ctx, query,
		id,
		marker.RestaurantName,
		marker.DishName,
		marker.DishDescription,
		marker.Location.Latitude,
		marker.Location.Longitude,
		photoURL,
		marker.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("マーカーの保存に失敗: %w", err)
	}

	log.Printf("✅ Marker saved: %s (%s / %s)", id, marker.RestaurantName, marker.DishName)
	return id, nil
}

// GetAll 全マーカーを作成順に取得
func (r *PostgresMarkersRepository) GetAll(ctx context.Context) ([]model.Marker, error) {
	query := `
		SELECT id, restaurant_name, dish_name, dish_description, latitude, longitude, photo_url, created_at
		FROM markers
		ORDER BY created_at, id`

	rows, err := r.client.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("マーカーの取得に失敗: %w", err)
	}
	defer rows.Close()

	var markers []model.Marker
	for rows.Next() {
		var m model.Marker
		var photoURL sql.NullString
		if err := rows.Scan(
			&m.ID,
			&m.RestaurantName,
			&m.DishName,
			&m.DishDescription,
			&m.Location.Latitude,
			&m.Location.Longitude,
			&photoURL,
			&m.CreatedAt,
		); err != nil {
			log.Printf("⚠️ マーカー行のスキャンに失敗、スキップ: %v", err)
			continue
		}
		if photoURL.Valid {
			m.SetImageURL(photoURL.String)
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("マーカー行の読み込みに失敗: %w", err)
	}

	return markers, nil
}
