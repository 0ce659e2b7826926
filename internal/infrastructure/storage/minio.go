package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/policy"
)

// MinioConfig S3互換ストレージの接続設定
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string // 空ならバケットの場所をサーバーに問い合わせる
}

// NewMinioClient S3互換ストレージ（MinIO, GCS interop）のクライアントを作成
func NewMinioClient(cfg MinioConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("missing one or more required settings: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Printf("✅ Connected to object storage endpoint: %s", cfg.Endpoint)
	return client, nil
}

// EnsureBucket バケットが無ければ作成し、prefix 以下を匿名で読めるようにする
// クライアントは Upload が返したURLをそのまま画像表示に使う
func EnsureBucket(ctx context.Context, client *minio.Client, bucketName, prefix string) error {
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
		}
		log.Printf("🪣 Bucket created: %s", bucketName)
	}

	readPolicy, err := PublicReadPolicy(bucketName, prefix)
	if err != nil {
		return err
	}
	if err := client.SetBucketPolicy(ctx, bucketName, readPolicy); err != nil {
		return fmt.Errorf("failed to set read-only policy on %s: %w", bucketName, err)
	}
	log.Printf("🔓 Public read enabled: %s/%s*", bucketName, prefix)
	return nil
}

// PublicReadPolicy prefix 以下を匿名で読み取り専用にするバケットポリシー（mc anonymous set download 相当）
func PublicReadPolicy(bucketName, prefix string) (string, error) {
	bucketPolicy := policy.BucketAccessPolicy{
		Version:    "2012-10-17",
		Statements: policy.SetPolicy(nil, policy.BucketPolicyReadOnly, bucketName, prefix),
	}
	data, err := json.Marshal(bucketPolicy)
	if err != nil {
		return "", fmt.Errorf("failed to encode bucket policy: %w", err)
	}
	return string(data), nil
}
