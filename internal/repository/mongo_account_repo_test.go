package repository

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/hitoshi/sociopedia/internal/database"
	"github.com/hitoshi/sociopedia/internal/model"
)

// MongoAccountRepoはAccountRepositoryインターフェースを満たすことを検証
func TestMongoAccountRepo_ImplementsInterface(t *testing.T) {
	var _ AccountRepository = (*MongoAccountRepo)(nil)
}

func TestIDFilter(t *testing.T) {
	const hex = "65a1b2c3d4e5f60718293a4b"
	oid, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		t.Fatalf("ObjectIDFromHex failed: %v", err)
	}

	tests := []struct {
		name string
		id   string
		want bson.D
	}{
		{"UUID", "2b7e1516-28ae-4d2a-a6d2-abf7158809cf", bson.D{{Key: "_id", Value: "2b7e1516-28ae-4d2a-a6d2-abf7158809cf"}}},
		{"ObjectIDの16進表記", hex, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{oid, hex}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := idFilter(tt.id); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("idFilter(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

// setupMongoRepo はTEST_MONGO_URLのDBに接続する。未設定または接続不可の場合はスキップする。
func setupMongoRepo(t *testing.T) *MongoAccountRepo {
	t.Helper()

	url := os.Getenv("TEST_MONGO_URL")
	if url == "" {
		t.Skip("TEST_MONGO_URL が未設定のためスキップ")
	}

	m, err := database.OpenMongo(url)
	if err != nil {
		t.Fatalf("MongoDBクライアント生成に失敗: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.PingContext(ctx); err != nil {
		t.Skipf("テスト用MongoDBに接続できません（スキップ）: %v", err)
	}

	repo := NewMongoAccountRepo(m.Database)
	if err := repo.coll.Drop(ctx); err != nil {
		t.Fatalf("コレクション削除に失敗: %v", err)
	}
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("インデックス作成に失敗: %v", err)
	}
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return repo
}

func TestMongoAccountRepo_CreateFindAndDuplicate(t *testing.T) {
	repo := setupMongoRepo(t)
	ctx := context.Background()

	account := &model.Account{
		ID:           uuid.New().String(),
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        "grace@example.com",
		PasswordHash: "hash",
		PicturePath:  "1-grace.png",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.FindByEmail(ctx, "grace@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if got == nil || got.ID != account.ID {
		t.Fatalf("FindByEmail = %+v, want id %q", got, account.ID)
	}
	if got.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "hash")
	}

	dup := *account
	dup.ID = uuid.New().String()
	if err := repo.Create(ctx, &dup); !errors.Is(err, model.ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}

	missing, err := repo.FindByID(ctx, uuid.New().String())
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing account, got %+v", missing)
	}

	paths, err := repo.ListPicturePaths(ctx)
	if err != nil {
		t.Fatalf("ListPicturePaths failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "1-grace.png" {
		t.Errorf("paths = %v, want [1-grace.png]", paths)
	}
}

func TestMongoAccountRepo_FindByID_ObjectIDDocument(t *testing.T) {
	repo := setupMongoRepo(t)
	ctx := context.Background()

	oid := bson.NewObjectID()
	_, err := repo.coll.InsertOne(ctx, bson.D{
		{Key: "_id", Value: oid},
		{Key: "firstName", Value: "Ada"},
		{Key: "email", Value: "ada@example.com"},
		{Key: "password", Value: "hash"},
	})
	if err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	got, err := repo.FindByID(ctx, oid.Hex())
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got == nil || got.ID != oid.Hex() {
		t.Fatalf("FindByID = %+v, want id %q", got, oid.Hex())
	}

	byEmail, err := repo.FindByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if byEmail == nil || byEmail.ID != oid.Hex() {
		t.Errorf("FindByEmail = %+v, want id %q", byEmail, oid.Hex())
	}
}
