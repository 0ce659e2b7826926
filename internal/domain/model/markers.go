package model

import (
	"strings"
	"time"
)

// Location 緯度経度
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsValid 緯度経度が有効範囲内かチェック
func (l Location) IsValid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Marker 地図上に登録された料理（レストランの一皿）
type Marker struct {
	ID              string    `json:"id"`
	RestaurantName  string    `json:"restaurant_name"`
	DishName        string    `json:"dish_name"`
	DishDescription string    `json:"dish_description"`
	ImageURL        *string   `json:"image_url,omitempty"` // 写真URL（NULLABLE）
	Location        Location  `json:"location"`
	CreatedAt       time.Time `json:"created_at"`
}

// GetImageURL 画像URLが存在する場合は値を、存在しない場合は空文字列を返す
func (m *Marker) GetImageURL() string {
	if m.ImageURL != nil {
		return *m.ImageURL
	}
	return ""
}

// SetImageURL 画像URLを設定する（空文字列の場合はnilのまま保持）
func (m *Marker) SetImageURL(url string) {
	if url != "" {
		m.ImageURL = &url
	}
}

// HasImage 画像が設定されているかチェック
func (m *Marker) HasImage() bool {
	return m.ImageURL != nil && *m.ImageURL != ""
}

// Firestoreドキュメントのフィールド名
const (
	FieldRestaurantName  = "nombre_restaurante"
	FieldDishName        = "nombre_plato"
	FieldDishDescription = "descripcion_plato"
	FieldLatitude        = "latitud"
	FieldLongitude       = "longitud"
	FieldImageURL        = "foto_restaurante"
	FieldCreatedAt       = "created_at"
)

// DefaultMarkersCollection マーカーを保存するFirestoreコレクション名
const DefaultMarkersCollection = "restauranteG"

// DefaultMarkerIcon 画像のないマーカーに使うアイコン名
const DefaultMarkerIcon = "default_marker_icon"

// ToFirestoreData Marker をFirestore保存用のキーバリューに変換
func (m *Marker) ToFirestoreData() map[string]interface{} {
	var imageURL interface{}
	if m.HasImage() {
		imageURL = *m.ImageURL
	}
	return map[string]interface{}{
		FieldRestaurantName:  m.RestaurantName,
		FieldDishName:        m.DishName,
		FieldDishDescription: m.DishDescription,
		FieldLatitude:        m.Location.Latitude,
		FieldLongitude:       m.Location.Longitude,
		FieldImageURL:        imageURL,
		FieldCreatedAt:       m.CreatedAt,
	}
}

// CreateMarkerRequest POST /markers のリクエスト
type CreateMarkerRequest struct {
	RestaurantName  string    `json:"restaurant_name" form:"restaurant_name"`
	DishName        string    `json:"dish_name" form:"dish_name"`
	DishDescription string    `json:"dish_description" form:"dish_description"`
	Location        *Location `json:"location" form:"-"`
	Latitude        *float64  `json:"-" form:"latitude"`
	Longitude       *float64  `json:"-" form:"longitude"`
}

// ResolveLocation JSONのlocationまたはフォームのlatitude/longitudeから位置を決定
func (r *CreateMarkerRequest) ResolveLocation() *Location {
	if r.Location != nil {
		return r.Location
	}
	if r.Latitude != nil && r.Longitude != nil {
		return &Location{Latitude: *r.Latitude, Longitude: *r.Longitude}
	}
	return nil
}

// Normalize 前後の空白を取り除く
func (r *CreateMarkerRequest) Normalize() {
	r.RestaurantName = strings.TrimSpace(r.RestaurantName)
	r.DishName = strings.TrimSpace(r.DishName)
	r.DishDescription = strings.TrimSpace(r.DishDescription)
}

// MarkerImage 添付された料理写真
type MarkerImage struct {
	Data        []byte
	ContentType string
}

// CreateMarkerResponse POST /markers のレスポンス
type CreateMarkerResponse struct {
	Status string  `json:"status"`
	Marker *Marker `json:"marker"`
}

// GetMarkersResponse GET /markers のレスポンス
type GetMarkersResponse struct {
	Markers []Marker `json:"markers"`
	Count   int      `json:"count"`
}

// TapRequest 地図タップ位置
type TapRequest struct {
	Location *Location `json:"location"`
}

// タップ時のアクション
const (
	TapActionShowMarker = "show_marker"
	TapActionAddMarker  = "add_marker"
)

// TapResponse タップ結果: 近くのマーカーを表示するか、新規追加フォームを開くか
type TapResponse struct {
	Action         string    `json:"action"`
	Marker         *Marker   `json:"marker,omitempty"`
	DistanceMeters *float64  `json:"distance_meters,omitempty"`
	Location       *Location `json:"location,omitempty"`
}
