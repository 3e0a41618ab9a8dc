// Package config は各サービスの設定を読み込む。
//
// 設定値はデフォルト値、CONFIG_FILEで指定したYAMLファイル、環境変数の順に上書きされる。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// devJWTSecret は開発モードでのみ使用するJWTシークレット。
const devJWTSecret = "dev-secret-key"

// Config はサービスの設定値。
type Config struct {
	// Service はサービス名（user / notification）。
	Service string `mapstructure:"service"`
	// Mode は動作モード（dev / release）。
	Mode string `mapstructure:"mode"`
	// Port はHTTPサーバーのリッスンポート。
	Port string `mapstructure:"port"`
	// AppName は通知文面に埋め込むアプリケーション名。
	AppName string `mapstructure:"app_name"`
	// FrontendURL はCORSで許可するオリジン（カンマ区切り、"*" で全許可）。
	FrontendURL string `mapstructure:"frontend_url"`
	// JWTSecret はJWT署名用の共有秘密鍵。
	JWTSecret string `mapstructure:"jwt_secret"`
	// AdminEmails は登録時に管理者ロールを付与するメールアドレス（カンマ区切り）。
	AdminEmails string `mapstructure:"admin_emails"`

	// DB はデータベース接続設定。
	DB DBConfig `mapstructure:"db"`
	// Redis はインスタンス間のイベント中継に使用するRedisの設定。
	Redis RedisConfig `mapstructure:"redis"`
	// FCM は管理者プッシュ配信に使用するFirebase Cloud Messagingの設定。
	FCM FCMConfig `mapstructure:"fcm"`

	// UserServiceURL はユーザーサービスのベースURL。
	UserServiceURL string `mapstructure:"user_service_url"`
	// NotificationServiceURL は通知サービスのベースURL。
	NotificationServiceURL string `mapstructure:"notification_service_url"`

	// MarkReadTimeout はレスポンス後に行う既読化処理1件あたりのタイムアウト。
	MarkReadTimeout time.Duration `mapstructure:"mark_read_timeout"`
	// ShutdownGrace はシャットダウン時にバックグラウンド処理を待つ猶予時間。
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	// SSEHeartbeat はライブセッションにpingを送る間隔。
	SSEHeartbeat time.Duration `mapstructure:"sse_heartbeat"`
}

// DBConfig はデータベース接続設定。
type DBConfig struct {
	// Driver はdatabase/sqlのドライバ名（sqlite / pgx）。
	Driver string `mapstructure:"driver"`
	// DSN は接続文字列。
	DSN string `mapstructure:"dsn"`
}

// RedisConfig はRedis接続設定。Addrが空の場合は単一インスタンスで動作する。
type RedisConfig struct {
	// Addr はRedisのアドレス（host:port）。
	Addr string `mapstructure:"addr"`
	// Password はRedisのパスワード。
	Password string `mapstructure:"password"`
	// DB はRedisのDB番号。
	DB int `mapstructure:"db"`
	// Channel はイベント中継に使用するPub/Subチャネル名。
	Channel string `mapstructure:"channel"`
}

// FCMConfig はFirebase Cloud Messagingの設定。ProjectIDが空の場合はプッシュ配信を無効にする。
type FCMConfig struct {
	// ProjectID はFirebaseプロジェクトID。
	ProjectID string `mapstructure:"project_id"`
	// CredentialsFile はサービスアカウントのJSONファイルパス。
	CredentialsFile string `mapstructure:"credentials_file"`
	// Concurrency はトークンごとの送信の最大並列数。
	Concurrency int `mapstructure:"concurrency"`
}

// IsDev は開発モードかどうかを返す。
func (c *Config) IsDev() bool {
	return c.Mode == "dev"
}

// AllowedOrigins はCORSで許可するオリジンの一覧を返す。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsAdminEmail はメールアドレスが管理者として登録すべきものかどうかを返す。
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range strings.Split(c.AdminEmails, ",") {
		if e = strings.TrimSpace(e); e != "" && strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// envKeys は環境変数から読み込むキーの一覧。
// viperのAutomaticEnvはUnmarshal時に未登録のキーを拾わないため明示的にバインドする。
var envKeys = map[string]string{
	"mode":                     "MODE",
	"port":                     "PORT",
	"app_name":                 "APP_NAME",
	"frontend_url":             "FRONTEND_URL",
	"jwt_secret":               "JWT_SECRET",
	"admin_emails":             "ADMIN_EMAILS",
	"db.driver":                "DB_DRIVER",
	"db.dsn":                   "DB_DSN",
	"redis.addr":               "REDIS_ADDR",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"redis.channel":            "REDIS_CHANNEL",
	"fcm.project_id":           "FCM_PROJECT_ID",
	"fcm.credentials_file":     "FCM_CREDENTIALS_FILE",
	"fcm.concurrency":          "FCM_CONCURRENCY",
	"user_service_url":         "USER_SERVICE_URL",
	"notification_service_url": "NOTIFICATION_SERVICE_URL",
	"mark_read_timeout":        "MARK_READ_TIMEOUT",
	"shutdown_grace":           "SHUTDOWN_GRACE",
	"sse_heartbeat":            "SSE_HEARTBEAT",
}

// defaultPorts はサービスごとのデフォルトポート。
var defaultPorts = map[string]string{
	"user":         "8081",
	"notification": "8086",
}

// Load は指定サービスの設定を読み込む。
func Load(service string) (*Config, error) {
	v := viper.New()

	v.SetDefault("service", service)
	v.SetDefault("mode", "dev")
	v.SetDefault("port", defaultPorts[service])
	v.SetDefault("app_name", "SocialHub")
	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("admin_emails", "")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", fmt.Sprintf("/data/%s.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", service))
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "socialhub:notification:live")
	v.SetDefault("fcm.project_id", "")
	v.SetDefault("fcm.credentials_file", "")
	v.SetDefault("fcm.concurrency", 8)
	v.SetDefault("user_service_url", "http://localhost:8081")
	v.SetDefault("notification_service_url", "http://localhost:8086")
	v.SetDefault("mark_read_timeout", 10*time.Second)
	v.SetDefault("shutdown_grace", 15*time.Second)
	v.SetDefault("sse_heartbeat", 25*time.Second)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("環境変数 %s のバインドに失敗: %w", env, err)
		}
	}

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, fmt.Errorf("環境変数 CONFIG_FILE のバインドに失敗: %w", err)
	}
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize はデフォルト値を補完し、必須項目を検証する。
func (c *Config) normalize() error {
	if c.JWTSecret == "" {
		if !c.IsDev() {
			return errors.New("JWT_SECRET is required")
		}
		c.JWTSecret = devJWTSecret
	}
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.DB.DSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.FCM.Concurrency <= 0 {
		c.FCM.Concurrency = 1
	}
	if c.MarkReadTimeout <= 0 {
		c.MarkReadTimeout = 10 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 15 * time.Second
	}
	return nil
}
