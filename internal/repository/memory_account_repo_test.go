package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/sociopedia/internal/model"
)

func TestMemoryAccountRepo_CreateAndFind(t *testing.T) {
	repo := NewMemoryAccountRepo()
	ctx := context.Background()

	a := newTestAccount("mem@example.com", "1-mem.png")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.FindByEmail(ctx, "mem@example.com")
	if err != nil || got == nil {
		t.Fatalf("FindByEmail = %v, %v", got, err)
	}
	if got.ID != a.ID {
		t.Errorf("ID = %q, want %q", got.ID, a.ID)
	}

	// 返却値の変更が保存データに影響しないこと
	got.FirstName = "changed"
	again, _ := repo.FindByID(ctx, a.ID)
	if again.FirstName != "Ada" {
		t.Errorf("stored account was mutated: FirstName = %q", again.FirstName)
	}
}

func TestMemoryAccountRepo_DuplicateEmail(t *testing.T) {
	repo := NewMemoryAccountRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, newTestAccount("x@example.com", "")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, newTestAccount("x@example.com", "")); !errors.Is(err, model.ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestMemoryAccountRepo_ListPicturePaths_SkipsEmptyAndDuplicates(t *testing.T) {
	repo := NewMemoryAccountRepo()
	ctx := context.Background()

	_ = repo.Create(ctx, newTestAccount("a@example.com", "same.png"))
	_ = repo.Create(ctx, newTestAccount("b@example.com", "same.png"))
	_ = repo.Create(ctx, newTestAccount("c@example.com", ""))

	paths, err := repo.ListPicturePaths(ctx)
	if err != nil {
		t.Fatalf("ListPicturePaths failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "same.png" {
		t.Errorf("paths = %v, want [same.png]", paths)
	}
}
