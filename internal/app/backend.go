package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sociopedia/internal/config"
	"github.com/hitoshi/sociopedia/internal/database"
	"github.com/hitoshi/sociopedia/internal/handler"
	"github.com/hitoshi/sociopedia/internal/repository"
	"github.com/hitoshi/sociopedia/internal/storage"
)

// backend はDATABASE_URLから選択したアカウントの永続化先をまとめる。
type backend struct {
	accounts repository.AccountRepository
	pinger   handler.Pinger
	close    func()
	kind     string
}

// openBackend はDATABASE_URLのスキームに応じてPostgreSQLまたはMongoDBに接続する。
// 接続確認に失敗した場合はエラーを返す。
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if database.IsMongoURL(cfg.DatabaseURL) {
		mdb, err := database.OpenMongo(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := mdb.PingContext(pingCtx); err != nil {
			_ = mdb.Close(context.Background())
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &backend{
			accounts: repository.NewMongoAccountRepo(mdb.Database),
			pinger:   mdb,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := mdb.Close(closeCtx); err != nil {
					slog.Warn("failed to disconnect mongo", slog.String("error", err.Error()))
				}
			},
			kind: "mongo",
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &backend{
		accounts: repository.NewPostgresAccountRepo(db),
		pinger:   db,
		close:    func() { db.Close() },
		kind:     "postgres",
	}, nil
}

// openPictureStore はSTORAGE_BACKENDに応じた画像ストレージを生成する。
func openPictureStore(ctx context.Context, cfg *config.Config) (storage.PictureStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(client, cfg.S3Bucket), nil
	default:
		store, err := storage.NewLocalStore(cfg.AssetsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare assets directory: %w", err)
		}
		return store, nil
	}
}
