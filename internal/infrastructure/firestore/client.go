package firestore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type FirestoreClient struct {
	client *firestore.Client
}

// NewFirestoreClient は実行環境に応じた認証でFirestoreクライアントを作成する
// FIRESTORE_EMULATOR_HOST が設定されていればSDKがエミュレータへ接続する
func NewFirestoreClient(ctx context.Context, projectID string) (*FirestoreClient, error) {
	var opts []option.ClientOption

	switch {
	case os.Getenv("FIRESTORE_EMULATOR_HOST") != "":
		log.Printf("🧪 Firestore emulator: %s", os.Getenv("FIRESTORE_EMULATOR_HOST"))
	case os.Getenv("K_SERVICE") != "":
		// Cloud Run環境ではデフォルト認証を使用
		log.Printf("☁️ Cloud Run環境: デフォルト認証を使用")
	default:
		credentialsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		if credentialsFile == "" {
			credentialsFile = "dishmap-firestore-key.json"
		}

		if _, err := os.Stat(credentialsFile); err != nil {
			log.Printf("⚠️ Credentials file not found: %s, trying with default authentication", credentialsFile)
		} else {
			log.Printf("📄 Using credentials file: %s", credentialsFile)
			opts = append(opts, option.WithCredentialsFile(credentialsFile))
		}
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	log.Printf("✅ Firestore client initialized for project: %s", projectID)

	return &FirestoreClient{client: client}, nil
}

func (fc *FirestoreClient) Close() error {
	return fc.client.Close()
}

func (fc *FirestoreClient) GetClient() *firestore.Client {
	return fc.client
}

// HealthCheck コレクションを1件だけ読んで疎通を確認する
func (fc *FirestoreClient) HealthCheck(ctx context.Context, collection string) error {
	if fc == nil || fc.client == nil {
		return fmt.Errorf("Firestoreクライアントが初期化されていません")
	}
	it := fc.client.Collection(collection).Limit(1).Documents(ctx)
	defer it.Stop()
	_, err := it.Next()
	return emptyIsHealthy(err)
}

// emptyIsHealthy 空のコレクション（iterator.Done）は正常とみなす
func emptyIsHealthy(err error) error {
	if errors.Is(err, iterator.Done) {
		return nil
	}
	return err
}
