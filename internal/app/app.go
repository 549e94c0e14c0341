package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/sociopedia/internal/auth"
	"github.com/hitoshi/sociopedia/internal/config"
	"github.com/hitoshi/sociopedia/internal/database"
	"github.com/hitoshi/sociopedia/internal/handler"
	"github.com/hitoshi/sociopedia/internal/logger"
	"github.com/hitoshi/sociopedia/internal/metrics"
	"github.com/hitoshi/sociopedia/internal/middleware"
	"github.com/hitoshi/sociopedia/internal/repository"
	"github.com/hitoshi/sociopedia/internal/security"
	"github.com/hitoshi/sociopedia/internal/storage"
	"github.com/hitoshi/sociopedia/internal/user"
	"github.com/hitoshi/sociopedia/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを再設定する
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(healthcheckPort())
	}

	// 端末クライアントはサーバー用の設定を必要としない
	if cmd.IsClient() {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runClient(ctx, config.LoadClient(), cmd, os.Stdin, w, int(os.Stdin.Fd()))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage_backend", string(cfg.StorageBackend)),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newServer はAPIサーバーのhttp.Handlerを組み立てる。
// 外部接続を伴わないため、テストからも直接呼び出せる。
func newServer(cfg *config.Config, accounts repository.AccountRepository, pinger handler.Pinger, pictures storage.PictureStore, reg *prometheus.Registry) (http.Handler, func()) {
	collector := metrics.NewCollector(reg)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(
		accounts,
		auth.NewBcryptHasher(0),
		tokens,
		pictures,
		security.NewProfileSanitizer(),
		auth.ServiceConfig{
			MaxUploadSize:      cfg.MaxUploadSize,
			GenericLoginErrors: cfg.AuthGenericErrors,
		},
	)
	userService := user.NewService(accounts)

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitAuth, cfg.RateLimitGeneral),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		MetricsGatherer:   reg,

		AuthService: authService,
		AuthConfig:  handler.AuthHandlerConfig{MaxUploadSize: cfg.MaxUploadSize},

		UserService: userService,

		Assets: pictures,
		Pinger: pinger,
	})

	return router, rateLimiter.Stop
}

// newRegistry はプロセス・ランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	slog.Info("database connection established", slog.String("backend", be.kind))

	// 2. 画像ストレージ
	pictures, err := openPictureStore(ctx, cfg)
	if err != nil {
		return err
	}

	// 3. ルーターの構築
	router, stopLimiter := newServer(cfg, be.accounts, be.pinger, pictures, newRegistry())
	defer stopLimiter()

	// 4. HTTPサーバーの起動
	// 画像アップロードを受け付けるため、読み込みタイムアウトは長めに取る
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続と画像ストレージを開き、孤立画像の掃除ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. DB接続
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	slog.Info("database connection established (worker)", slog.String("backend", be.kind))

	// 2. 画像ストレージ
	pictures, err := openPictureStore(ctx, cfg)
	if err != nil {
		return err
	}

	// 3. 掃除ジョブの初期化
	reg := newRegistry()
	job := cleanup.NewCleanupJob(pictures, be.accounts, metrics.NewCollector(reg), slog.Default())
	job.GracePeriod = cfg.OrphanGracePeriod

	// 4. メトリクスの公開（WORKER_METRICS_PORT指定時のみ）
	if cfg.WorkerMetricsPort != "" {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("worker metrics server starting", slog.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("worker metrics server error", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	// 5. メインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.SweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// PostgreSQLでは未適用のマイグレーションを順番に適用し、MongoDBではインデックスを作成する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if database.IsMongoURL(cfg.DatabaseURL) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		be, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer be.close()

		repo, ok := be.accounts.(*repository.MongoAccountRepo)
		if !ok {
			return fmt.Errorf("migration failed: unexpected repository %T", be.accounts)
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		version, _, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("schema version", slog.Uint64("version", uint64(version)))
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// healthcheckPort はヘルスチェック対象のポートを環境変数から決定する。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "3001"
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
