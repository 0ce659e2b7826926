package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"DishMap-App/internal/domain/helper"
	"DishMap-App/internal/domain/model"
	"DishMap-App/internal/domain/repository"
	repoImpl "DishMap-App/internal/repository"
)

var (
	// ErrMarkerNotFound 指定IDのマーカーが無い
	ErrMarkerNotFound = errors.New("marker not found")
	// ErrNoMarkerImage マーカーに写真が無い（デフォルトアイコンを使う）
	ErrNoMarkerImage = errors.New("marker has no image")
	// ErrImageStorageDisabled 画像ストレージが未設定
	ErrImageStorageDisabled = errors.New("image storage is not configured")
)

// ValidationError はバリデーションエラーを表す
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

type MarkerUseCase interface {
	// LoadMarkers はストアから全マーカーを読み直し、インデックスを作り直す
	LoadMarkers(ctx context.Context) ([]model.Marker, error)

	// MarkersInBound は境界ボックス内の読み込み済みマーカーを返す
	MarkersInBound(ctx context.Context, bound orb.Bound) ([]model.Marker, error)

	// HandleTap はタップ位置の近くにマーカーがあれば表示、無ければ追加フォームを指示する
	HandleTap(ctx context.Context, location model.Location) (*model.TapResponse, error)

	// CreateMarker は入力を検証し、写真があればアップロードしてからマーカーを保存する
	CreateMarker(ctx context.Context, req *model.CreateMarkerRequest, image *model.MarkerImage) (*model.Marker, error)

	// MarkerIcon はマーカー写真を円形のアイコンPNGにして返す
	MarkerIcon(ctx context.Context, markerID string) ([]byte, error)

	// MarkersGeoJSON は地図描画用のFeatureCollectionを返す
	MarkersGeoJSON(ctx context.Context) (*geojson.FeatureCollection, error)
}

// markerUseCaseImpl はMarkerUseCaseの実装
type markerUseCaseImpl struct {
	markersRepo repository.MarkersRepository
	imageRepo   repository.ImageRepository
	index       *helper.MarkerIndex
	now         func() time.Time
}

// NewMarkerUseCase は新しいMarkerUseCaseインスタンスを作成
// imageRepo が nil の場合、写真付きの登録はエラーになる
func NewMarkerUseCase(
	markersRepo repository.MarkersRepository,
	imageRepo repository.ImageRepository,
	index *helper.MarkerIndex,
) MarkerUseCase {
	if index == nil {
		index = helper.NewMarkerIndex(helper.NearbyThresholdMeters)
	}
	return &markerUseCaseImpl{
		markersRepo: markersRepo,
		imageRepo:   imageRepo,
		index:       index,
		now:         time.Now,
	}
}

// LoadMarkers 全件読み込み
func (u *markerUseCaseImpl) LoadMarkers(ctx context.Context) ([]model.Marker, error) {
	// 読み込み開始前に世代を取り、後から始まった読み込みの結果を古い結果で上書きしない
	gen := u.index.NextGeneration()
	markers, err := u.markersRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("マーカーの読み込みに失敗: %w", err)
	}

	if u.index.RebuildGeneration(gen, markers) {
		log.Printf("🗺️ マーカーインデックス再構築 (%d件)", u.index.Len())
	}
	return u.index.All(), nil
}

// MarkersInBound 境界ボックス検索
func (u *markerUseCaseImpl) MarkersInBound(ctx context.Context, bound orb.Bound) ([]model.Marker, error) {
	if err := u.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	markers := u.index.WithinBound(bound)
	if markers == nil {
		markers = []model.Marker{}
	}
	return markers, nil
}

// HandleTap タップ処理
func (u *markerUseCaseImpl) HandleTap(ctx context.Context, location model.Location) (*model.TapResponse, error) {
	if err := validateLocation("location", &location); err != nil {
		return nil, err
	}
	if err := u.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	marker, distance, found := u.index.FindNearest(location)
	if !found {
		return &model.TapResponse{
			Action:   model.TapActionAddMarker,
			Location: &location,
		}, nil
	}

	log.Printf("📍 タップ位置から%.1fmのマーカー %s を表示", distance, marker.ID)
	return &model.TapResponse{
		Action:         model.TapActionShowMarker,
		Marker:         marker,
		DistanceMeters: &distance,
	}, nil
}

// CreateMarker マーカー登録
func (u *markerUseCaseImpl) CreateMarker(ctx context.Context, req *model.CreateMarkerRequest, image *model.MarkerImage) (*model.Marker, error) {
	req.Normalize()
	location := req.ResolveLocation()
	if err := validateCreateMarkerRequest(req, location); err != nil {
		return nil, err
	}

	marker := &model.Marker{
		RestaurantName:  req.RestaurantName,
		DishName:        req.DishName,
		DishDescription: req.DishDescription,
		Location:        *location,
		CreatedAt:       u.now().UTC(),
	}

	if image != nil && len(image.Data) > 0 {
		imageURL, err := u.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		marker.SetImageURL(imageURL)
	}

	id, err := u.markersRepo.Create(ctx, marker)
	if err != nil {
		return nil, fmt.Errorf("マーカーの保存に失敗: %w", err)
	}
	marker.ID = id

	// 保存後は全件読み直して地図に反映する
	if _, err := u.LoadMarkers(ctx); err != nil {
		log.Printf("⚠️ 保存後のマーカー再読み込みに失敗: %v", err)
	}

	return marker, nil
}

// uploadImage 写真をJPEGにしてアップロードし、URLを返す
func (u *markerUseCaseImpl) uploadImage(ctx context.Context, image *model.MarkerImage) (string, error) {
	if u.imageRepo == nil {
		return "", ErrImageStorageDisabled
	}

	jpegData, err := helper.EncodeAsJPEG(image.Data)
	if err != nil {
		return "", &ValidationError{Field: "image", Message: "画像を読み込めません: " + err.Error()}
	}

	imageURL, err := u.imageRepo.Upload(ctx, jpegData, "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("画像のアップロードに失敗: %w", err)
	}
	return imageURL, nil
}

// MarkerIcon アイコン生成
func (u *markerUseCaseImpl) MarkerIcon(ctx context.Context, markerID string) ([]byte, error) {
	if err := u.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	marker, ok := u.index.GetByID(markerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarkerNotFound, markerID)
	}
	if !marker.HasImage() {
		return nil, ErrNoMarkerImage
	}
	if u.imageRepo == nil {
		return nil, ErrImageStorageDisabled
	}
	// 他のストレージ（旧アプリのFirebase Storage等）の写真はデフォルトアイコンにする
	if !u.imageRepo.Owns(*marker.ImageURL) {
		return nil, fmt.Errorf("%w: %s は外部の画像URLです", ErrNoMarkerImage, markerID)
	}

	data, err := u.imageRepo.Download(ctx, *marker.ImageURL)
	if err != nil {
		if errors.Is(err, repoImpl.ErrForeignImageURL) {
			return nil, fmt.Errorf("%w: %v", ErrNoMarkerImage, err)
		}
		return nil, fmt.Errorf("マーカー画像の取得に失敗: %w", err)
	}

	icon, err := helper.CircleIcon(data, helper.MarkerIconSize)
	if err != nil {
		return nil, fmt.Errorf("アイコンの生成に失敗: %w", err)
	}
	return icon, nil
}

// MarkersGeoJSON 地図描画用データ
func (u *markerUseCaseImpl) MarkersGeoJSON(ctx context.Context) (*geojson.FeatureCollection, error) {
	markers, err := u.LoadMarkers(ctx)
	if err != nil {
		return nil, err
	}
	return repoImpl.MarkersToFeatureCollection(markers, u.hasIcon), nil
}

// hasIcon アイコンエンドポイントで円形アイコンを作れるか
func (u *markerUseCaseImpl) hasIcon(marker *model.Marker) bool {
	return marker.HasImage() && u.imageRepo != nil && u.imageRepo.Owns(*marker.ImageURL)
}

// ensureLoaded 一度も読み込んでいなければ読み込む
func (u *markerUseCaseImpl) ensureLoaded(ctx context.Context) error {
	if u.index.Loaded() {
		return nil
	}
	_, err := u.LoadMarkers(ctx)
	return err
}

// validateCreateMarkerRequest 必須項目のチェック（レストラン名 → 料理名 → 説明 → 位置の順）
func validateCreateMarkerRequest(req *model.CreateMarkerRequest, location *model.Location) error {
	if req.RestaurantName == "" {
		return &ValidationError{Field: "restaurant_name", Message: "レストラン名がありません"}
	}
	if req.DishName == "" {
		return &ValidationError{Field: "dish_name", Message: "料理名がありません"}
	}
	if req.DishDescription == "" {
		return &ValidationError{Field: "dish_description", Message: "料理の説明がありません"}
	}
	return validateLocation("location", location)
}

func validateLocation(field string, location *model.Location) error {
	if location == nil {
		return &ValidationError{Field: field, Message: "位置は必須です"}
	}
	if !(location.Latitude >= -90 && location.Latitude <= 90) {
		return &ValidationError{Field: field + ".latitude", Message: "緯度は-90から90の範囲で指定してください"}
	}
	if !(location.Longitude >= -180 && location.Longitude <= 180) {
		return &ValidationError{Field: field + ".longitude", Message: "経度は-180から180の範囲で指定してください"}
	}
	return nil
}
