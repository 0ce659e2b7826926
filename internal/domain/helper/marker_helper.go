package helper

import (
	"math"
	"sync"

	"github.com/paulmach/orb"

	"DishMap-App/internal/domain/model"
)

const earthRadiusMeters = 6371000.0

// NearbyThresholdMeters この距離未満のタップは既存マーカーへのタップとみなす
const NearbyThresholdMeters = 15.0

// HaversineDistanceMeters は2地点間の距離を計算する (m)
func HaversineDistanceMeters(p1, p2 model.Location) float64 {
	lat1 := p1.Latitude * math.Pi / 180
	lng1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lng2 := p2.Longitude * math.Pi / 180
	dLat := lat2 - lat1
	dLng := lng2 - lng1
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// ToPoint Location を orb.Point ([lng, lat]) に変換
func ToPoint(loc model.Location) orb.Point {
	return orb.Point{loc.Longitude, loc.Latitude}
}

// FromPoint orb.Point を Location に変換
func FromPoint(p orb.Point) model.Location {
	return model.Location{Latitude: p.Lat(), Longitude: p.Lon()}
}

// MarkerIndex 読み込み済みマーカーのメモリ上のインデックス
// 座標をキーにし、ストアを読むたびに丸ごと作り直す
type MarkerIndex struct {
	mu        sync.RWMutex
	threshold float64
	order     []orb.Point
	byPoint   map[orb.Point]*model.Marker
	byID      map[string]*model.Marker
	loaded    bool
	issued    uint64 // 払い出した最新の世代
	applied   uint64 // 反映済みの世代
}

// NewMarkerIndex 新しいMarkerIndexを作成（threshold<=0の場合は15m）
func NewMarkerIndex(thresholdMeters float64) *MarkerIndex {
	if thresholdMeters <= 0 {
		thresholdMeters = NearbyThresholdMeters
	}
	return &MarkerIndex{
		threshold: thresholdMeters,
		byPoint:   make(map[orb.Point]*model.Marker),
		byID:      make(map[string]*model.Marker),
	}
}

// Threshold 近接判定の閾値 (m)
func (idx *MarkerIndex) Threshold() float64 {
	return idx.threshold
}

// Rebuild インデックスを markers で置き換える
// 同じ座標のマーカーは後のものが優先される
func (idx *MarkerIndex) Rebuild(markers []model.Marker) {
	idx.RebuildGeneration(idx.NextGeneration(), markers)
}

// NextGeneration ストアを読む前に呼び、その読み込みの世代番号を得る
func (idx *MarkerIndex) NextGeneration() uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.issued++
	return idx.issued
}

// RebuildGeneration gen が反映済みの世代より新しい場合だけ置き換える
// 後から始まった読み込みが先に反映されていれば false を返す
func (idx *MarkerIndex) RebuildGeneration(gen uint64, markers []model.Marker) bool {
	order := make([]orb.Point, 0, len(markers))
	byPoint := make(map[orb.Point]*model.Marker, len(markers))
	byID := make(map[string]*model.Marker, len(markers))

	for i := range markers {
		m := markers[i]
		p := ToPoint(m.Location)
		if prev, exists := byPoint[p]; exists {
			delete(byID, prev.ID)
		} else {
			order = append(order, p)
		}
		byPoint[p] = &m
		if m.ID != "" {
			byID[m.ID] = &m
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if gen <= idx.applied {
		return false
	}
	idx.order = order
	idx.byPoint = byPoint
	idx.byID = byID
	idx.loaded = true
	idx.applied = gen
	return true
}

// Loaded 一度でもRebuildされたか
func (idx *MarkerIndex) Loaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

// Len インデックス内のマーカー数
func (idx *MarkerIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.order)
}

// All 読み込み順でマーカーを返す
func (idx *MarkerIndex) All() []model.Marker {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make([]model.Marker, 0, len(idx.order))
	for _, p := range idx.order {
		result = append(result, *idx.byPoint[p])
	}
	return result
}

// GetByID IDでマーカーを取得
func (idx *MarkerIndex) GetByID(id string) (*model.Marker, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	m, ok := idx.byID[id]
	if !ok {
		return nil, false
	}
	copied := *m
	return &copied, true
}

// FindNearest は閾値未満の距離にある最も近いマーカーを返す
// 同距離の場合は読み込み順で先のものを返す
func (idx *MarkerIndex) FindNearest(loc model.Location) (*model.Marker, float64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var nearest *model.Marker
	best := math.Inf(1)
	for _, p := range idx.order {
		d := HaversineDistanceMeters(FromPoint(p), loc)
		if d < idx.threshold && d < best {
			nearest = idx.byPoint[p]
			best = d
		}
	}
	if nearest == nil {
		return nil, 0, false
	}
	copied := *nearest
	return &copied, best, true
}

// WithinBound は境界ボックス内のマーカーを読み込み順で返す
func (idx *MarkerIndex) WithinBound(bound orb.Bound) []model.Marker {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var result []model.Marker
	for _, p := range idx.order {
		if bound.Contains(p) {
			result = append(result, *idx.byPoint[p])
		}
	}
	return result
}
