package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"DishMap-App/internal/domain/model"
	"DishMap-App/internal/repository"
	"DishMap-App/internal/usecase"
)

type mockMarkerUseCase struct {
	mock.Mock
}

func (m *mockMarkerUseCase) LoadMarkers(ctx context.Context) ([]model.Marker, error) {
	args := m.Called(ctx)
	markers, _ := args.Get(0).([]model.Marker)
	return markers, args.Error(1)
}

func (m *mockMarkerUseCase) MarkersInBound(ctx context.Context, bound orb.Bound) ([]model.Marker, error) {
	args := m.Called(ctx, bound)
	markers, _ := args.Get(0).([]model.Marker)
	return markers, args.Error(1)
}

func (m *mockMarkerUseCase) HandleTap(ctx context.Context, location model.Location) (*model.TapResponse, error) {
	args := m.Called(ctx, location)
	res, _ := args.Get(0).(*model.TapResponse)
	return res, args.Error(1)
}

func (m *mockMarkerUseCase) CreateMarker(ctx context.Context, req *model.CreateMarkerRequest, image *model.MarkerImage) (*model.Marker, error) {
	args := m.Called(ctx, req, image)
	marker, _ := args.Get(0).(*model.Marker)
	return marker, args.Error(1)
}

func (m *mockMarkerUseCase) MarkerIcon(ctx context.Context, markerID string) ([]byte, error) {
	args := m.Called(ctx, markerID)
	icon, _ := args.Get(0).([]byte)
	return icon, args.Error(1)
}

func (m *mockMarkerUseCase) MarkersGeoJSON(ctx context.Context) (*geojson.FeatureCollection, error) {
	args := m.Called(ctx)
	fc, _ := args.Get(0).(*geojson.FeatureCollection)
	return fc, args.Error(1)
}

func setupRouter(uc usecase.MarkerUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewMarkerHandler(uc).RegisterRoutes(r)
	r.GET("/api/health", HealthHandler("DishMap-App", nil))
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var labra = model.Marker{
	ID:              "doc-1",
	RestaurantName:  "Casa Labra",
	DishName:        "Tajada de bacalao",
	DishDescription: "Bacalao rebozado",
	Location:        model.Location{Latitude: 40.4169, Longitude: -3.7035},
}

func TestGetMarkers(t *testing.T) {
	uc := new(mockMarkerUseCase)
	uc.On("LoadMarkers", mock.Anything).Return([]model.Marker{labra}, nil)

	w := doJSON(setupRouter(uc), http.MethodGet, "/markers", "")
	require.Equal(t, http.StatusOK, w.Code)

	var res model.GetMarkersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "Casa Labra", res.Markers[0].RestaurantName)
}

func TestGetMarkers_BBox(t *testing.T) {
	uc := new(mockMarkerUseCase)
	bound := orb.Bound{Min: orb.Point{-4, 40}, Max: orb.Point{-3, 41}}
	uc.On("MarkersInBound", mock.Anything, bound).Return([]model.Marker{labra}, nil)

	r := setupRouter(uc)
	w := doJSON(r, http.MethodGet, "/markers?bbox=-4,40,-3,41", "")
	assert.Equal(t, http.StatusOK, w.Code)
	uc.AssertExpectations(t)

	for _, bad := range []string{"1,2,3", "a,40,-3,41", "-3,40,-4,41"} {
		w := doJSON(r, http.MethodGet, "/markers?bbox="+bad, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestGetMarkers_StoreError(t *testing.T) {
	uc := new(mockMarkerUseCase)
	uc.On("LoadMarkers", mock.Anything).Return(nil, errors.New("firestore unavailable"))

	w := doJSON(setupRouter(uc), http.MethodGet, "/markers", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "firestore unavailable")
}

func TestPostMarker_JSON(t *testing.T) {
	uc := new(mockMarkerUseCase)
	uc.On("CreateMarker", mock.Anything, mock.MatchedBy(func(req *model.CreateMarkerRequest) bool {
		loc := req.ResolveLocation()
		return req.RestaurantName == "Casa Labra" && loc != nil && loc.Latitude == 40.4169
	}), (*model.MarkerImage)(nil)).Return(&labra, nil)

	body := `{"restaurant_name":"Casa Labra","dish_name":"Tajada de bacalao","dish_description":"Bacalao rebozado",
		"location":{"latitude":40.4169,"longitude":-3.7035}}`
	w := doJSON(setupRouter(uc), http.MethodPost, "/markers", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var res model.CreateMarkerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "doc-1", res.Marker.ID)
}

func TestPostMarker_Multipart(t *testing.T) {
	uc := new(mockMarkerUseCase)
	imageBytes := []byte("\x89PNG fake")
	uc.On("CreateMarker", mock.Anything, mock.MatchedBy(func(req *model.CreateMarkerRequest) bool {
		loc := req.ResolveLocation()
		return req.DishName == "Tajada de bacalao" && loc != nil && loc.Longitude == -3.7035
	}), mock.MatchedBy(func(img *model.MarkerImage) bool {
		return img != nil && bytes.Equal(img.Data, imageBytes)
	})).Return(&labra, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("restaurant_name", "Casa Labra"))
	require.NoError(t, mw.WriteField("dish_name", "Tajada de bacalao"))
	require.NoError(t, mw.WriteField("dish_description", "Bacalao rebozado"))
	require.NoError(t, mw.WriteField("latitude", "40.4169"))
	require.NoError(t, mw.WriteField("longitude", "-3.7035"))
	fw, err := mw.CreateFormFile("image", "plato.png")
	require.NoError(t, err)
	_, err = fw.Write(imageBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/markers", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	setupRouter(uc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	uc.AssertExpectations(t)
}

func TestPostMarker_ValidationError(t *testing.T) {
	uc := new(mockMarkerUseCase)
	uc.On("CreateMarker", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &usecase.ValidationError{Field: "dish_name", Message: "料理名がありません"})

	w := doJSON(setupRouter(uc), http.MethodPost, "/markers", `{"restaurant_name":"Casa Labra"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "dish_name")
}

func TestPostMarker_MalformedJSON(t *testing.T) {
	uc := new(mockMarkerUseCase)
	w := doJSON(setupRouter(uc), http.MethodPost, "/markers", `{"restaurant_name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	uc.AssertNotCalled(t, "CreateMarker", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostTap(t *testing.T) {
	uc := new(mockMarkerUseCase)
	loc := model.Location{Latitude: 40.4169, Longitude: -3.7035}
	dist := 4.2
	uc.On("HandleTap", mock.Anything, loc).Return(&model.TapResponse{
		Action:         model.TapActionShowMarker,
		Marker:         &labra,
		DistanceMeters: &dist,
	}, nil)

	r := setupRouter(uc)
	w := doJSON(r, http.MethodPost, "/map/taps", `{"location":{"latitude":40.4169,"longitude":-3.7035}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res model.TapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, model.TapActionShowMarker, res.Action)
	assert.Equal(t, "doc-1", res.Marker.ID)

	w = doJSON(r, http.MethodPost, "/map/taps", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMarkerIcon(t *testing.T) {
	uc := new(mockMarkerUseCase)
	uc.On("MarkerIcon", mock.Anything, "doc-1").Return([]byte("png-bytes"), nil)
	uc.On("MarkerIcon", mock.Anything, "plain").Return(nil, usecase.ErrNoMarkerImage)
	uc.On("MarkerIcon", mock.Anything, "missing").Return(nil, usecase.ErrMarkerNotFound)

	r := setupRouter(uc)

	w := doJSON(r, http.MethodGet, "/markers/doc-1/icon", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())

	w = doJSON(r, http.MethodGet, "/markers/plain/icon", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), model.DefaultMarkerIcon)

	w = doJSON(r, http.MethodGet, "/markers/missing/icon", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// staticMarkersRepository 固定のマーカーを返すストア
type staticMarkersRepository struct {
	markers []model.Marker
}

func (r *staticMarkersRepository) Create(context.Context, *model.Marker) (string, error) {
	return "", errors.New("read only")
}

func (r *staticMarkersRepository) GetAll(context.Context) ([]model.Marker, error) {
	return r.markers, nil
}

func TestGetMarkerIcon_ForeignImageURL(t *testing.T) {
	legacyURL := "https://firebasestorage.googleapis.com/v0/b/dishmap.appspot.com/o/images%2F1690000000000.jpg?alt=media"
	legacy := labra
	legacy.ID = "legacy"
	legacy.SetImageURL(legacyURL)

	client, err := minio.New("storage.example.com", &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	imageRepo := repository.NewMinioImageRepository(client, "dish-images", "")

	uc := usecase.NewMarkerUseCase(&staticMarkersRepository{markers: []model.Marker{legacy}}, imageRepo, nil)
	r := setupRouter(uc)

	w := doJSON(r, http.MethodGet, "/markers/legacy/icon", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), model.DefaultMarkerIcon)

	w = doJSON(r, http.MethodGet, "/map/geojson", "")
	require.Equal(t, http.StatusOK, w.Code)
	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, model.DefaultMarkerIcon, fc.Features[0].Properties["icon"])
	assert.Equal(t, legacyURL, fc.Features[0].Properties["image_url"])
}

func TestGetMarkersGeoJSON(t *testing.T) {
	uc := new(mockMarkerUseCase)
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{-3.7035, 40.4169})
	f.Properties["icon"] = model.DefaultMarkerIcon
	fc.Append(f)
	uc.On("MarkersGeoJSON", mock.Anything).Return(fc, nil)

	w := doJSON(setupRouter(uc), http.MethodGet, "/map/geojson", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	decoded, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, decoded.Features, 1)
	assert.Equal(t, orb.Point{-3.7035, 40.4169}, decoded.Features[0].Geometry)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", HealthHandler("DishMap-App", func(context.Context) error { return nil }))
	r.GET("/down", HealthHandler("DishMap-App", func(context.Context) error { return errors.New("db down") }))

	w := doJSON(r, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = doJSON(r, http.MethodGet, "/down", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "db down")
}
