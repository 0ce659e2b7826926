package handler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"DishMap-App/internal/domain/model"
	"DishMap-App/internal/repository"
	"DishMap-App/internal/usecase"
)

// MaxImageBytes アップロードできる写真の上限
const MaxImageBytes = 10 << 20

// MarkerHandler はマーカーAPIのハンドラー
type MarkerHandler struct {
	markerUseCase usecase.MarkerUseCase
}

// NewMarkerHandler は新しいMarkerHandlerインスタンスを作成
func NewMarkerHandler(markerUseCase usecase.MarkerUseCase) *MarkerHandler {
	return &MarkerHandler{
		markerUseCase: markerUseCase,
	}
}

// RegisterRoutes ルーティングを登録
func (h *MarkerHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/markers", h.GetMarkers)
	r.POST("/markers", h.PostMarker)
	r.GET("/markers/:id/icon", h.GetMarkerIcon)
	r.GET("/map/geojson", h.GetMarkersGeoJSON)
	r.POST("/map/taps", h.PostTap)
}

// GetMarkers GET /markers - 全マーカー（bbox指定時は境界ボックス内）を取得
func (h *MarkerHandler) GetMarkers(c *gin.Context) {
	var (
		markers []model.Marker
		err     error
	)

	if bbox := c.Query("bbox"); bbox != "" {
		bound, parseErr := parseBBox(bbox)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_parameter",
				"details": parseErr.Error(),
			})
			return
		}
		markers, err = h.markerUseCase.MarkersInBound(c.Request.Context(), bound)
	} else {
		markers, err = h.markerUseCase.LoadMarkers(c.Request.Context())
	}

	if err != nil {
		h.respondError(c, "マーカーの取得に失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, model.GetMarkersResponse{
		Markers: markers,
		Count:   len(markers),
	})
}

// PostMarker POST /markers - マーカーを登録（JSON または multipart/form-data）
func (h *MarkerHandler) PostMarker(c *gin.Context) {
	var req model.CreateMarkerRequest
	var image *model.MarkerImage

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "リクエストの形式が正しくありません",
				"details": err.Error(),
			})
			return
		}

		var err error
		image, err = readImage(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "画像を読み込めません",
				"details": err.Error(),
			})
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	marker, err := h.markerUseCase.CreateMarker(c.Request.Context(), &req, image)
	if err != nil {
		h.respondError(c, "マーカーの登録に失敗しました", err)
		return
	}

	c.JSON(http.StatusCreated, model.CreateMarkerResponse{
		Status: "success",
		Marker: marker,
	})
}

// PostTap POST /map/taps - タップ位置の判定
func (h *MarkerHandler) PostTap(c *gin.Context) {
	var req model.TapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}
	if req.Location == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "バリデーションエラー",
			"details": "location: 位置は必須です",
		})
		return
	}

	res, err := h.markerUseCase.HandleTap(c.Request.Context(), *req.Location)
	if err != nil {
		h.respondError(c, "タップの処理に失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// GetMarkerIcon GET /markers/:id/icon - 円形のマーカーアイコン
func (h *MarkerHandler) GetMarkerIcon(c *gin.Context) {
	markerID := c.Param("id")

	icon, err := h.markerUseCase.MarkerIcon(c.Request.Context(), markerID)
	if err != nil {
		if errors.Is(err, usecase.ErrNoMarkerImage) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "マーカーに画像がありません",
				"icon":  model.DefaultMarkerIcon,
			})
			return
		}
		h.respondError(c, "アイコンの取得に失敗しました", err)
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", icon)
}

// GetMarkersGeoJSON GET /map/geojson - 地図描画用の FeatureCollection
func (h *MarkerHandler) GetMarkersGeoJSON(c *gin.Context) {
	fc, err := h.markerUseCase.MarkersGeoJSON(c.Request.Context())
	if err != nil {
		h.respondError(c, "マーカーの取得に失敗しました", err)
		return
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		h.respondError(c, "GeoJSONの生成に失敗しました", err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

// respondError はエラーの種類に応じたステータスで返す
// クライアントはメッセージを通知として表示する
func (h *MarkerHandler) respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	var vErr *usecase.ValidationError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		message = "バリデーションエラー"
	case errors.Is(err, usecase.ErrMarkerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, usecase.ErrImageStorageDisabled):
		status = http.StatusServiceUnavailable
	default:
		log.Printf("❌ %s: %v", message, err)
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// readImage multipart の image フィールドを読む（無ければ nil）
func readImage(c *gin.Context) (*model.MarkerImage, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	if fileHeader.Size > MaxImageBytes {
		return nil, fmt.Errorf("画像サイズが上限(%dMB)を超えています", MaxImageBytes>>20)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("画像サイズが上限(%dMB)を超えています", MaxImageBytes>>20)
	}

	return &model.MarkerImage{
		Data:        data,
		ContentType: fileHeader.Header.Get("Content-Type"),
	}, nil
}

// parseBBox min_lng,min_lat,max_lng,max_lat をパース
func parseBBox(bbox string) (orb.Bound, error) {
	coords := strings.Split(bbox, ",")
	if len(coords) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox must contain 4 coordinates: min_lng,min_lat,max_lng,max_lat")
	}

	values := make([]float64, 4)
	names := []string{"min_lng", "min_lat", "max_lng", "max_lat"}
	for i, s := range coords {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("Invalid %s value", names[i])
		}
		values[i] = v
	}

	return repository.ParseBoundingBox(values[0], values[1], values[2], values[3])
}
