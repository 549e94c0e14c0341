package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StorageBackend はプロフィール画像の保存先を表す。
type StorageBackend string

const (
	// StorageLocal はローカルディスク（ASSETS_DIR）に保存する。
	StorageLocal StorageBackend = "local"
	// StorageS3 はS3互換オブジェクトストレージに保存する。
	StorageS3 StorageBackend = "s3"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、各コンポーネントへ明示的に注入する。
// ハンドラーがプロセスの環境変数を直接参照することはない。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret string
	TokenTTL  time.Duration

	// Auth
	// AuthGenericErrors がtrueの場合、ログイン失敗の理由（アカウント不在/パスワード不一致）を区別しない。
	AuthGenericErrors bool

	// Rate Limit（req/min）
	RateLimitAuth    int
	RateLimitGeneral int

	// Storage
	StorageBackend StorageBackend
	AssetsDir      string
	MaxUploadSize  int64
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string

	// Worker
	OrphanGracePeriod time.Duration
	SweepInterval     time.Duration
	// WorkerMetricsPort が空の場合、ワーカーは/metricsを公開しない。
	WorkerMetricsPort string

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// LoadDotEnv はカレントディレクトリの.envを読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	LoadDotEnv()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 7*24*time.Hour)
	cfg.AuthGenericErrors = getEnvBool("AUTH_GENERIC_ERRORS", false)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 20)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.StorageBackend = StorageBackend(strings.ToLower(getEnvString("STORAGE_BACKEND", string(StorageLocal))))
	cfg.AssetsDir = getEnvString("ASSETS_DIR", "public/assets")
	cfg.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 30*1024*1024)
	cfg.S3Bucket = getEnvString("S3_BUCKET", "")
	cfg.S3Region = getEnvString("S3_REGION", "us-east-1")
	cfg.S3Endpoint = getEnvString("S3_ENDPOINT", "")
	cfg.S3AccessKey = getEnvString("S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvString("S3_SECRET_KEY", "")
	cfg.OrphanGracePeriod = getEnvDuration("ORPHAN_GRACE_PERIOD", time.Hour)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", time.Hour)
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	// PaaS環境で設定されるPORTも受け付ける
	cfg.ServerPort = getEnvString("SERVER_PORT", getEnvString("PORT", "3001"))
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ClientConfig は端末クライアント（login/registerサブコマンド）の設定。
// サーバー用の必須環境変数を要求しない。
type ClientConfig struct {
	APIBaseURL  string
	SessionFile string
	LogLevel    string
}

// LoadClient は環境変数からClientConfigを読み込む。
// SESSION_FILEが未設定の場合、SessionFileは空のままにして呼び出し側で既定値を決める。
func LoadClient() *ClientConfig {
	LoadDotEnv()

	return &ClientConfig{
		APIBaseURL:  getEnvString("API_BASE_URL", "http://localhost:3001"),
		SessionFile: getEnvString("SESSION_FILE", ""),
		LogLevel:    getEnvString("LOG_LEVEL", "error"),
	}
}

// Validate は設定値の組み合わせを検証する。
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageLocal:
		if c.AssetsDir == "" {
			return fmt.Errorf("ASSETS_DIR is required for local storage")
		}
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %q", c.StorageBackend)
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
