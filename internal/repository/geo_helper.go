package repository

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"DishMap-App/internal/domain/helper"
	"DishMap-App/internal/domain/model"
)

// MarkerIconPath マーカーアイコンのエンドポイント
func MarkerIconPath(markerID string) string {
	return fmt.Sprintf("/markers/%s/icon", markerID)
}

// MarkerToFeature Marker を GeoJSON の Point Feature に変換
// withIcon ならアイコンのパス、そうでなければデフォルトアイコン名を icon に入れる
func MarkerToFeature(marker *model.Marker, withIcon bool) *geojson.Feature {
	feature := geojson.NewFeature(helper.ToPoint(marker.Location))
	feature.ID = marker.ID

	icon := model.DefaultMarkerIcon
	if marker.HasImage() {
		if withIcon {
			icon = MarkerIconPath(marker.ID)
		}
		feature.Properties["image_url"] = *marker.ImageURL
	}

	feature.Properties["restaurant_name"] = marker.RestaurantName
	feature.Properties["dish_name"] = marker.DishName
	feature.Properties["dish_description"] = marker.DishDescription
	feature.Properties["icon"] = icon
	return feature
}

// MarkersToFeatureCollection マーカー一覧を FeatureCollection に変換
// hasIcon が nil の場合は画像のあるマーカー全てにアイコンのパスを入れる
func MarkersToFeatureCollection(markers []model.Marker, hasIcon func(*model.Marker) bool) *geojson.FeatureCollection {
	if hasIcon == nil {
		hasIcon = (*model.Marker).HasImage
	}
	fc := geojson.NewFeatureCollection()
	for i := range markers {
		fc.Append(MarkerToFeature(&markers[i], hasIcon(&markers[i])))
	}
	return fc
}

// FeatureToMarker Point Feature を Marker に戻す（Point以外はnil）
func FeatureToMarker(feature *geojson.Feature) *model.Marker {
	point, ok := feature.Geometry.(orb.Point)
	if !ok {
		return nil
	}

	marker := &model.Marker{
		RestaurantName:  feature.Properties.MustString("restaurant_name", ""),
		DishName:        feature.Properties.MustString("dish_name", ""),
		DishDescription: feature.Properties.MustString("dish_description", ""),
		Location:        helper.FromPoint(point),
	}
	if id, ok := feature.ID.(string); ok {
		marker.ID = id
	}
	marker.SetImageURL(feature.Properties.MustString("image_url", ""))
	return marker
}

// ParseBoundingBox min_lng,min_lat,max_lng,max_lat を orb.Bound にする
func ParseBoundingBox(minLng, minLat, maxLng, maxLat float64) (orb.Bound, error) {
	if minLng >= maxLng || minLat >= maxLat {
		return orb.Bound{}, fmt.Errorf("無効な境界ボックス: min値がmax値以上です")
	}
	if minLng < -180 || maxLng > 180 || minLat < -90 || maxLat > 90 {
		return orb.Bound{}, fmt.Errorf("座標値が有効範囲外です")
	}
	return orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{maxLng, maxLat},
	}, nil
}
