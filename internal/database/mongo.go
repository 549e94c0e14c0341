package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// defaultMongoDatabase は接続文字列にDB名が含まれない場合に使用するDB名。
const defaultMongoDatabase = "sociopedia"

// MongoDB はMongoDBクライアントと使用するデータベースをまとめる。
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// OpenMongo はMongoDBクライアントを生成する。
// Postgres版のOpenと同様に、接続確認はPingContextで行う。
// ObjectIDの_idは16進文字列としてデコードする。
func OpenMongo(databaseURL string) (*MongoDB, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(databaseURL).
		SetBSONOptions(&options.BSONOptions{ObjectIDAsHexString: true}))
	if err != nil {
		return nil, fmt.Errorf("failed to open mongo database: %w", err)
	}

	return &MongoDB{
		Client:   client,
		Database: client.Database(MongoDatabaseName(databaseURL)),
	}, nil
}

// MongoDatabaseName は接続文字列のパスからDB名を取り出す。
func MongoDatabaseName(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return defaultMongoDatabase
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return defaultMongoDatabase
	}
	return name
}

// PingContext はプライマリへの疎通を確認する。
func (m *MongoDB) PingContext(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}

// Close はクライアントを切断する。
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
