package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/socialhub/pkg/config"
	"github.com/nao1215/socialhub/pkg/httpclient"
	"github.com/nao1215/socialhub/pkg/middleware"
	"github.com/nao1215/socialhub/pkg/request"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
)

// serviceName はサービス間トークンの発行者名。
const serviceName = "notification-service"

// directoryTimeout はユーザーサービスへの照会1件あたりのタイムアウト。
const directoryTimeout = 5 * time.Second

// healthPingTimeout はヘルスチェックでRedisの疎通を確認する際のタイムアウト。
const healthPingTimeout = 2 * time.Second

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db は通知データベース接続。
	db *sqlx.DB
	// jwtSecret はJWT検証用の共有秘密鍵。
	jwtSecret string

	// registry はユーザーごとのライブセッションの登録簿。
	registry *SessionRegistry
	// authenticator はライブセッション確立時の資格情報を検証する。
	authenticator *SessionAuthenticator
	// dispatcher は通知の配信と永続化を行う。
	dispatcher *Dispatcher
	// reader は通知一覧とバッジの取得を行う。
	reader *Reader
	// pusher は管理者によるプッシュ通知の一斉送信を行う。
	pusher PushSender
	// relay はインスタンス間のイベント中継。Redis未設定の場合はnil。
	relay *RedisRelay

	// heartbeat はライブセッションにpingを送る間隔。
	heartbeat time.Duration
	// shutdownGrace はシャットダウン時の待機時間。
	shutdownGrace time.Duration
}

// NewServer は新しい通知サーバーを生成する。
// データベースの接続とマイグレーション、依存コンポーネントの組み立てを行う。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := sqlx.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	directory := NewHTTPDirectory(httpclient.New(
		cfg.UserServiceURL,
		httpclient.WithTimeout(directoryTimeout),
		httpclient.WithTokenSource(middleware.ServiceTokenSource(cfg.JWTSecret, serviceName)),
	))

	var pusher PushSender = DisabledPushSender{}
	if cfg.FCM.ProjectID != "" {
		var opts []option.ClientOption
		if cfg.FCM.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.FCM.CredentialsFile))
		}
		sender, err := NewFCMSender(ctx, cfg.FCM.ProjectID, cfg.FCM.Concurrency, opts...)
		if err != nil {
			db.Close()
			return nil, err
		}
		pusher = sender
	} else {
		log.Printf("[Server] FCM_PROJECT_IDが未設定のためプッシュ配信は無効です")
	}

	return newServer(cfg, db, directory, pusher), nil
}

// newServer はコンポーネントを組み立ててルーティングを設定する。
func newServer(cfg *config.Config, db *sqlx.DB, directory UserDirectory, pusher PushSender) *Server {
	registry := NewSessionRegistry()
	store := NewStore(db)

	var (
		deliverer Deliverer = NewLocalDeliverer(registry)
		relay     *RedisRelay
	)
	if cfg.Redis.Addr != "" {
		relay = NewRedisRelay(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.Redis.Channel, deliverer)
		deliverer = relay
	}

	heartbeat := cfg.SSEHeartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins()))

	s := &Server{
		router:        router,
		port:          cfg.Port,
		db:            db,
		jwtSecret:     cfg.JWTSecret,
		registry:      registry,
		authenticator: NewSessionAuthenticator(cfg.JWTSecret, directory),
		dispatcher:    NewDispatcher(directory, store, deliverer),
		reader:        NewReader(directory, store, cfg.MarkReadTimeout),
		pusher:        pusher,
		relay:         relay,
		heartbeat:     heartbeat,
		shutdownGrace: cfg.ShutdownGrace,
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
// キャンセル後はライブセッションを閉じ、実行中のバックグラウンド処理を待ってから終了する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	if s.relay != nil {
		go func() {
			if err := s.relay.Run(relayCtx); err != nil {
				log.Printf("[Relay] 中継を停止しました: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[Server] シャットダウンを開始します")
	graceCtx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace)
	defer cancel()

	s.registry.CloseAll()
	return errors.Join(
		srv.Shutdown(graceCtx),
		s.Shutdown(graceCtx),
	)
}

// Shutdown はバックグラウンド処理の完了を待ち、データベース接続を閉じる。
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(
		s.dispatcher.Shutdown(ctx),
		s.reader.Shutdown(ctx),
		s.db.Close(),
	)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ライブセッションは独自の資格情報の受け渡し方を持つためJWTAuthの外に置く
	s.router.GET("/api/v1/notifications/stream", s.handleStream())

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	{
		notifications := api.Group("/notifications")
		notifications.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleUser))
		{
			// 通知一覧取得（取得後に既読化）
			notifications.GET("", s.handleList())
			// 未読件数と最新通知のプレビュー
			notifications.GET("/badge-count", s.handleBadge())
			// 管理者によるプッシュ通知の一斉送信
			notifications.POST("/send-push", middleware.RequireRole(middleware.RoleAdmin), s.handleSendPush())
		}

		// 通知の発生要求（内部API - ユーザーサービスから呼び出される）
		internal := api.Group("/internal")
		internal.Use(middleware.RequireRole(middleware.RoleService))
		{
			internal.POST("/dispatch", s.handleDispatch())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		relay := "disabled"
		if s.relay != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
			defer cancel()
			relay = s.relay.Status(ctx)
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "notification",
			"sessions": s.registry.Len(),
			"relay":    relay,
		})
	})
}

// writeReadError は通知の参照時のエラーをレスポンスに変換する。
func writeReadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
	case errors.Is(err, ErrUnsupportedRole):
		c.JSON(http.StatusForbidden, gin.H{"error": "このロールでは通知を参照できません"})
	default:
		log.Printf("通知参照エラー: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
	}
}

// handleList は呼び出し元の通知一覧を返すハンドラ。
// レスポンスを書き込んだ後、表示対象の未読通知を非同期に既読化する。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		page, limit := ParsePaging(c.Query("page"), c.Query("limit"))

		feed, err := s.reader.GetPage(c.Request.Context(), userID, page, limit)
		if err != nil {
			writeReadError(c, err)
			return
		}

		if feed.Empty() {
			c.JSON(http.StatusOK, gin.H{
				"message":       "通知はありません",
				"empty":         true,
				"notifications": []FeedItem{},
				"pagination":    feed.Pagination,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":       "通知を取得しました",
			"empty":         false,
			"notifications": feed.Items,
			"pagination":    feed.Pagination,
		})
		s.reader.Acknowledge(feed)
	}
}

// handleBadge は未読件数と最新通知のプレビューを返すハンドラ。既読状態は変更しない。
func (s *Server) handleBadge() gin.HandlerFunc {
	return func(c *gin.Context) {
		badge, err := s.reader.GetBadge(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			writeReadError(c, err)
			return
		}
		c.JSON(http.StatusOK, badge)
	}
}

// sendPushRequest はプッシュ通知一斉送信リクエストのJSON構造。
type sendPushRequest struct {
	// FCMTokens は送信先のデバイストークン。文字列または配列で受け付ける。
	FCMTokens TokenList `json:"fcm_tokens" binding:"required"`
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required"`
	// Body は通知の本文。
	Body string `json:"body" binding:"required"`
}

// handleSendPush は管理者が指定したデバイストークンへプッシュ通知を一斉送信するハンドラ。
func (s *Server) handleSendPush() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendPushRequest
		if err := request.BindJSON(c, &req); err != nil {
			request.AbortWithError(c, err)
			return
		}

		tokens := req.FCMTokens.Normalize()
		if len(tokens) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "有効なfcm_tokensがありません"})
			return
		}

		report, err := s.pusher.SendMulticast(c.Request.Context(), tokens, PushMessage{
			Title: req.Title,
			Body:  req.Body,
		})
		if err != nil {
			if errors.Is(err, ErrPushNotConfigured) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "プッシュ配信が設定されていません"})
				return
			}
			log.Printf("プッシュ送信エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プッシュ通知の送信に失敗しました"})
			return
		}

		log.Printf("[Push] プッシュ通知を送信しました: success=%d, failure=%d", report.SuccessCount, report.FailureCount)
		c.JSON(http.StatusOK, gin.H{
			"message": "プッシュ通知を送信しました",
			"report":  report,
		})
	}
}

// handleDispatch は通知の発生要求を受け付けるハンドラ。
// 配信と永続化はバックグラウンドで行い、受け付けた時点で202を返す。
func (s *Server) handleDispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var intent Intent
		if err := request.BindJSON(c, &intent); err != nil {
			request.AbortWithError(c, err)
			return
		}

		s.dispatcher.DispatchAsync(intent)
		c.JSON(http.StatusAccepted, gin.H{"message": "通知を受け付けました"})
	}
}
