package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"DishMap-App/internal/domain/repository"
)

// ErrForeignImageURL このバケット以外を指す画像URL
var ErrForeignImageURL = errors.New("image URL does not belong to this bucket")

// ImageKeyPrefix 料理写真のオブジェクトキーの接頭辞
const ImageKeyPrefix = "images/"

const maxKeyCollisions = 5

// MinioImageRepository S3互換ストレージに料理写真を保存するリポジトリ
type MinioImageRepository struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

// NewMinioImageRepository 新しいMinioImageRepositoryを作成
// publicBaseURL が空の場合はエンドポイントとバケットから組み立てる
func NewMinioImageRepository(client *minio.Client, bucket, publicBaseURL string) repository.ImageRepository {
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("%s/%s", client.EndpointURL().String(), bucket)
	}
	return &MinioImageRepository{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// Upload は images/<unix-millis>.jpg に保存し公開URLを返す
func (r *MinioImageRepository) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("画像データが空です")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key, err := r.freeKey(ctx)
	if err != nil {
		return "", err
	}

	_, err = r.client.PutObject(ctx, r.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		log.Printf("❌ Failed to upload image %s: %v", key, err)
		return "", fmt.Errorf("画像のアップロードに失敗しました: %w", err)
	}

	// アップロード後に存在を確認してからURLを返す
	if _, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{}); err != nil {
		return "", fmt.Errorf("画像URLの取得に失敗しました: %w", err)
	}

	url := PublicImageURL(r.publicBaseURL, key)
	log.Printf("✅ Image uploaded: %s", url)
	return url, nil
}

// Owns は Download できるURLかどうか
func (r *MinioImageRepository) Owns(imageURL string) bool {
	_, ok := ObjectKeyFromURL(r.publicBaseURL, imageURL)
	return ok
}

// Download は Upload が返したURLの画像を取得する
func (r *MinioImageRepository) Download(ctx context.Context, imageURL string) ([]byte, error) {
	key, ok := ObjectKeyFromURL(r.publicBaseURL, imageURL)
	if !ok {
		return nil, ErrForeignImageURL
	}

	object, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("画像の取得に失敗しました: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("画像の読み込みに失敗しました: %w", err)
	}
	return data, nil
}

// freeKey 未使用のタイムスタンプキーを探す
func (r *MinioImageRepository) freeKey(ctx context.Context) (string, error) {
	millis := r.now().UnixMilli()
	for i := 0; i < maxKeyCollisions; i++ {
		key := ImageObjectKey(millis + int64(i))
		_, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			continue
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return "", fmt.Errorf("failed to check for existing object: %w", err)
		}
		return key, nil
	}
	return "", fmt.Errorf("画像キーの割り当てに失敗しました (%d回衝突)", maxKeyCollisions)
}

// ImageObjectKey タイムスタンプ（ミリ秒）から画像のオブジェクトキーを作る
func ImageObjectKey(unixMillis int64) string {
	return fmt.Sprintf("%s%d.jpg", ImageKeyPrefix, unixMillis)
}

// PublicImageURL 公開ベースURLとキーから画像URLを作る
func PublicImageURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}

// ObjectKeyFromURL 画像URLからオブジェクトキーを取り出す
func ObjectKeyFromURL(baseURL, imageURL string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(imageURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(imageURL, prefix)
	if !strings.HasPrefix(key, ImageKeyPrefix) || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
