package repository

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"DishMap-App/internal/domain/model"
	"DishMap-App/internal/domain/repository"
)

// FirestoreMarkersRepository Firestoreを使用したマーカーリポジトリ
type FirestoreMarkersRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreMarkersRepository 新しいFirestoreMarkersRepositoryインスタンスを作成
func NewFirestoreMarkersRepository(client *firestore.Client, collection string) repository.MarkersRepository {
	if collection == "" {
		collection = model.DefaultMarkersCollection
	}
	return &FirestoreMarkersRepository{
		client:     client,
		collection: collection,
	}
}

// Create はマーカーを自動採番IDのドキュメントとして保存する
func (r *FirestoreMarkersRepository) Create(ctx context.Context, marker *model.Marker) (string, error) {
	ref, _, err := r.client.Collection(r.collection).Add(ctx, marker.ToFirestoreData())
	if err != nil {
		log.Printf("❌ Failed to add marker to Firestore: %v", err)
		return "", fmt.Errorf("マーカーの保存に失敗しました: %w", err)
	}

	log.Printf("✅ Marker saved: %s (%s / %s)", ref.ID, marker.RestaurantName, marker.DishName)
	return ref.ID, nil
}

// GetAll はコレクションの全ドキュメントを読み込む
// 座標が読めないドキュメントはスキップする
func (r *FirestoreMarkersRepository) GetAll(ctx context.Context) ([]model.Marker, error) {
	docs, err := r.client.Collection(r.collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("マーカーの取得に失敗しました: %w", err)
	}

	markers := make([]model.Marker, 0, len(docs))
	for _, doc := range docs {
		marker, err := MarkerFromFirestoreData(doc.Ref.ID, doc.Data())
		if err != nil {
			log.Printf("⚠️ ドキュメント %s をスキップ: %v", doc.Ref.ID, err)
			continue
		}
		markers = append(markers, *marker)
	}

	log.Printf("📍 %d/%d markers loaded from Firestore", len(markers), len(docs))
	return markers, nil
}

// MarkerFromFirestoreData 型の緩いドキュメントをMarkerに変換する
// 文字列フィールドが無い場合は空文字列、座標は数値または数値文字列を受け付ける
func MarkerFromFirestoreData(id string, data map[string]interface{}) (*model.Marker, error) {
	lat, ok := numberValue(data[model.FieldLatitude])
	if !ok {
		return nil, fmt.Errorf("緯度が不正です: %v", data[model.FieldLatitude])
	}
	lng, ok := numberValue(data[model.FieldLongitude])
	if !ok {
		return nil, fmt.Errorf("経度が不正です: %v", data[model.FieldLongitude])
	}

	location := model.Location{Latitude: lat, Longitude: lng}
	if !location.IsValid() {
		return nil, fmt.Errorf("座標が範囲外です: (%f, %f)", lat, lng)
	}

	marker := &model.Marker{
		ID:              id,
		RestaurantName:  stringValue(data[model.FieldRestaurantName]),
		DishName:        stringValue(data[model.FieldDishName]),
		DishDescription: stringValue(data[model.FieldDishDescription]),
		Location:        location,
	}
	marker.SetImageURL(stringValue(data[model.FieldImageURL]))
	if createdAt, ok := data[model.FieldCreatedAt].(time.Time); ok {
		marker.CreatedAt = createdAt
	}

	return marker, nil
}

// numberValue Firestoreの数値（int64/float64）または数値文字列をfloat64にする
func numberValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
