package repository

import "context"

// ImageRepository 料理写真のBlobストレージ
type ImageRepository interface {
	// Upload は画像を保存し、公開URLを返す
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	// Download はUploadが返したURLの画像を取得する
	Download(ctx context.Context, imageURL string) ([]byte, error)
	// Owns はURLがこのストレージの画像を指すか判定する
	Owns(imageURL string) bool
}
