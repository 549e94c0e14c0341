package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/sociopedia/internal/model"
)

// accountsCollection はアカウントを保存するコレクション名。
const accountsCollection = "users"

// MongoAccountRepo はMongoDBを使用したアカウントリポジトリ。
type MongoAccountRepo struct {
	coll *mongo.Collection
}

// NewMongoAccountRepo はMongoAccountRepoを生成する。
func NewMongoAccountRepo(db *mongo.Database) *MongoAccountRepo {
	return &MongoAccountRepo{coll: db.Collection(accountsCollection)}
}

// EnsureIndexes はemailの一意インデックスを作成する。
// PostgreSQL版のマイグレーションに相当し、migrateコマンドから呼ばれる。
func (r *MongoAccountRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("idx_users_email"),
	})
	if err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}
	return nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *MongoAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, idFilter(id), "ID")
}

// idFilter は_idの検索条件を返す。
// 24桁の16進文字列はObjectIDで作成された既存ドキュメントにも一致させる。
func idFilter(id string) bson.D {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.D{{Key: "_id", Value: id}}
	}
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{oid, id}}}}}
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *MongoAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}}, "email")
}

func (r *MongoAccountRepo) findOne(ctx context.Context, filter bson.D, by string) (*model.Account, error) {
	var account model.Account
	err := r.coll.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by %s: %w", by, err)
	}
	return &account, nil
}

// Create はアカウントを作成する。
// 一意インデックス違反はmodel.ErrDuplicateEmailに変換する。
func (r *MongoAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if _, err := r.coll.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// ListPicturePaths は参照されている画像ファイル名を重複なしで返す。
func (r *MongoAccountRepo) ListPicturePaths(ctx context.Context) ([]string, error) {
	cursor, err := r.coll.Find(ctx,
		bson.D{{Key: "picturePath", Value: bson.D{{Key: "$ne", Value: ""}}}},
		options.Find().SetProjection(bson.D{{Key: "picturePath", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list picture paths: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		PicturePath string `bson:"picturePath"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode picture paths: %w", err)
	}

	seen := make(map[string]struct{}, len(docs))
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		if _, ok := seen[d.PicturePath]; ok {
			continue
		}
		seen[d.PicturePath] = struct{}{}
		paths = append(paths, d.PicturePath)
	}
	return paths, nil
}

// compile-time interface check
var _ AccountRepository = (*MongoAccountRepo)(nil)
