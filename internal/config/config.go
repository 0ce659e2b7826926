package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"DishMap-App/internal/domain/helper"
	"DishMap-App/internal/domain/model"
)

// マーカーストアの種類
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

// Config サーバー設定
type Config struct {
	Port string

	MarkerStore         string
	FirestoreProjectID  string
	FirestoreCollection string
	DatabaseURL         string

	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioUseSSL        bool
	MinioRegion        string
	ImageBucket        string
	ImagePublicBaseURL string

	NearbyThresholdMeters float64
}

// Load は.envを読み込み（存在すれば）、環境変数から設定を組み立てる
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("⚠️ .env file not found, using system environment variables")
	}
	return FromEnv()
}

// FromEnv 環境変数から設定を組み立てる
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		MarkerStore:         strings.ToLower(getEnv("MARKER_STORE", StoreFirestore)),
		FirestoreProjectID:  os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION", model.DefaultMarkersCollection),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MinioEndpoint:       os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:      os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:      os.Getenv("MINIO_SECRET_KEY"),
		MinioUseSSL:         os.Getenv("MINIO_USE_SSL") == "true",
		MinioRegion:         os.Getenv("MINIO_REGION"),
		ImageBucket:         getEnv("IMAGE_BUCKET", "dish-images"),
		ImagePublicBaseURL:  os.Getenv("IMAGE_PUBLIC_BASE_URL"),
	}

	threshold := getEnv("NEARBY_THRESHOLD_METERS", "")
	if threshold == "" {
		cfg.NearbyThresholdMeters = helper.NearbyThresholdMeters
	} else {
		v, err := strconv.ParseFloat(threshold, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("NEARBY_THRESHOLD_METERSは正の数値である必要があります: %q", threshold)
		}
		cfg.NearbyThresholdMeters = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 必須項目のチェック
func (c *Config) Validate() error {
	switch c.MarkerStore {
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID環境変数が設定されていません")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL環境変数が設定されていません")
		}
	default:
		return fmt.Errorf("MARKER_STOREは'%s'または'%s'を指定してください: %q", StoreFirestore, StorePostgres, c.MarkerStore)
	}
	return nil
}

// ImageStorageEnabled 画像アップロード先が設定されているか
func (c *Config) ImageStorageEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
