package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"DishMap-App/internal/config"
	"DishMap-App/internal/domain/helper"
	domainRepo "DishMap-App/internal/domain/repository"
	"DishMap-App/internal/graceful"
	"DishMap-App/internal/handler"
	"DishMap-App/internal/infrastructure/database"
	"DishMap-App/internal/infrastructure/firestore"
	"DishMap-App/internal/infrastructure/storage"
	"DishMap-App/internal/repository"
	"DishMap-App/internal/usecase"
)

const serviceName = "DishMap-App"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	// マーカーストア
	var (
		markersRepo domainRepo.MarkersRepository
		healthCheck handler.HealthChecker
	)
	switch cfg.MarkerStore {
	case config.StorePostgres:
		log.Println("Initializing PostgreSQL client...")
		pgClient, err := database.NewPostgreSQLClientWithRetry(cfg.DatabaseURL, 5, 2*time.Second)
		if err != nil {
			log.Fatalf("PostgreSQL初期化失敗: %v", err)
		}
		defer pgClient.Close()

		pgRepo := repository.NewPostgresMarkersRepository(pgClient)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("スキーマ作成失敗: %v", err)
		}
		markersRepo = pgRepo
		healthCheck = pgClient.HealthCheck
	default:
		log.Println("Initializing Firestore client...")
		fsClient, err := firestore.NewFirestoreClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			log.Fatalf("Firestore初期化失敗: %v", err)
		}
		defer fsClient.Close()
		markersRepo = repository.NewFirestoreMarkersRepository(fsClient.GetClient(), cfg.FirestoreCollection)
		healthCheck = func(ctx context.Context) error {
			return fsClient.HealthCheck(ctx, cfg.FirestoreCollection)
		}
	}

	// 画像ストレージ（未設定なら写真なしで動作）
	var imageRepo domainRepo.ImageRepository
	if cfg.ImageStorageEnabled() {
		minioClient, err := storage.NewMinioClient(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
		})
		if err != nil {
			log.Fatalf("オブジェクトストレージ初期化失敗: %v", err)
		}
		if err := storage.EnsureBucket(ctx, minioClient, cfg.ImageBucket, repository.ImageKeyPrefix); err != nil {
			log.Fatalf("バケット作成失敗: %v", err)
		}
		imageRepo = repository.NewMinioImageRepository(minioClient, cfg.ImageBucket, cfg.ImagePublicBaseURL)
	} else {
		log.Println("⚠️ MINIO_* が未設定のため写真のアップロードは無効です")
	}

	// Dependency injection
	index := helper.NewMarkerIndex(cfg.NearbyThresholdMeters)
	markerUseCase := usecase.NewMarkerUseCase(markersRepo, imageRepo, index)
	markerHandler := handler.NewMarkerHandler(markerUseCase)

	// 起動時に地図用のマーカーを読み込む（失敗しても初回リクエストで再試行）
	if _, err := markerUseCase.LoadMarkers(ctx); err != nil {
		log.Printf("⚠️ 初回のマーカー読み込みに失敗: %v", err)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.MaxMultipartMemory = handler.MaxImageBytes
	r.GET("/api/health", handler.HealthHandler(serviceName, healthCheck))
	markerHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("%s server starting on :%s...", serviceName, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("サーバー起動失敗: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ シャットダウン失敗: %v", err)
	}
	log.Println("✅ サーバーを停止しました")
}
