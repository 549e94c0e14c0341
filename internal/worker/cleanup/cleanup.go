// Package cleanup は孤立したプロフィール画像の掃除ジョブを提供する。
// 画像保存後にアカウント作成が失敗し、補償削除も行えなかった場合に残る画像を回収する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/sociopedia/internal/storage"
)

// PictureStore は掃除ジョブが使う画像ストレージの操作。
// storage.PictureStoreの部分集合として定義する。
type PictureStore interface {
	List(ctx context.Context) ([]storage.ObjectInfo, error)
	Delete(ctx context.Context, name string) error
}

// ReferenceLister はアカウントから参照されている画像名を列挙する。
// repository.AccountRepositoryの部分集合として定義する。
type ReferenceLister interface {
	ListPicturePaths(ctx context.Context) ([]string, error)
}

// DeletionRecorder は削除件数をメトリクスに記録する。
type DeletionRecorder interface {
	RecordOrphansDeleted(n int)
}

// CleanupJob はどのアカウントからも参照されていない画像を削除するジョブ。
// 登録処理中の画像を消さないよう、GracePeriodより新しい画像は対象外にする。
// 冪等で、同じ画像を二度削除してもエラーにならない。
type CleanupJob struct {
	pictures   PictureStore
	references ReferenceLister
	recorder   DeletionRecorder
	logger     *slog.Logger
	now        func() time.Time

	GracePeriod    time.Duration // 削除対象とする最低経過時間（デフォルト: 1時間）
	MaxConcurrency int           // 削除の最大並列数（デフォルト: 4）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// recorderはnilでもよい。
func NewCleanupJob(pictures PictureStore, references ReferenceLister, recorder DeletionRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		pictures:       pictures,
		references:     references,
		recorder:       recorder,
		logger:         logger,
		now:            time.Now,
		GracePeriod:    time.Hour,
		MaxConcurrency: 4,
	}
}

// Run は孤立画像を1回掃除し、削除件数を返す。
// 個別の削除失敗はログに記録して続行し、最後にまとめてエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) (int, error) {
	start := j.now()

	// 参照一覧は画像一覧より先に取得する。
	// 逆順だと一覧取得の間に登録されたアカウントの画像を孤立と誤認しうる。
	paths, err := j.references.ListPicturePaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("参照中の画像一覧の取得に失敗: %w", err)
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	objects, err := j.pictures.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("保存済み画像一覧の取得に失敗: %w", err)
	}

	cutoff := start.Add(-j.GracePeriod)
	var orphans []string
	for _, obj := range objects {
		if _, ok := referenced[obj.Name]; ok {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}
		orphans = append(orphans, obj.Name)
	}

	deleted, failed := j.deleteAll(ctx, orphans)

	if j.recorder != nil && deleted > 0 {
		j.recorder.RecordOrphansDeleted(deleted)
	}

	j.logger.Info("孤立画像の掃除が完了しました",
		slog.Int("stored_count", len(objects)),
		slog.Int("referenced_count", len(referenced)),
		slog.Int("deleted_count", deleted),
		slog.Int("failed_count", failed),
		slog.Duration("grace_period", j.GracePeriod),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)

	if failed > 0 {
		return deleted, fmt.Errorf("%d件の孤立画像の削除に失敗", failed)
	}
	return deleted, nil
}

// deleteAll はsemaphoreパターンで並列数を制御しながら画像を削除する。
func (j *CleanupJob) deleteAll(ctx context.Context, names []string) (deleted, failed int) {
	concurrency := j.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var ok, ng atomic.Int64
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}

		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := j.pictures.Delete(ctx, name); err != nil {
				ng.Add(1)
				j.logger.Error("孤立画像の削除に失敗しました",
					slog.String("picture_path", name),
					slog.String("error", err.Error()),
				)
				return
			}
			ok.Add(1)
		}(name)
	}
	wg.Wait()

	return int(ok.Load()), int(ng.Load())
}

// Start はintervalごとにRunを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("孤立画像の掃除ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("grace_period", j.GracePeriod),
	)

	j.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("孤立画像の掃除ジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *CleanupJob) runAndLog(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil {
		j.logger.Error("孤立画像の掃除に失敗しました", slog.String("error", err.Error()))
	}
}
