package user

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/socialhub/pkg/config"
	"github.com/nao1215/socialhub/pkg/httpclient"
	"github.com/nao1215/socialhub/pkg/middleware"
	"github.com/nao1215/socialhub/pkg/request"
	"golang.org/x/crypto/bcrypt"
)

// serviceName はサービス間トークンの発行者名。
const serviceName = "user-service"

// notifyTimeout は登録通知の送信1件あたりのタイムアウト。
const notifyTimeout = 10 * time.Second

// Server はユーザーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はユーザーデータベース接続。
	db *sqlx.DB
	// repo はユーザーレコードのリポジトリ。
	repo *Repository
	// notifier は通知サービスへの発生要求の送信先。
	notifier Notifier
	// cfg はサービスの設定。
	cfg *config.Config
	// bcryptCost はパスワードハッシュのコスト。
	bcryptCost int

	// tasks は登録通知など、レスポンスから切り離して実行する処理。
	tasks sync.WaitGroup
}

// NewServer は新しいユーザーサーバーを生成する。
// データベースの接続とマイグレーションを行う。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := sqlx.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	notifier := NewHTTPNotifier(httpclient.New(
		cfg.NotificationServiceURL,
		httpclient.WithTimeout(notifyTimeout),
		httpclient.WithTokenSource(middleware.ServiceTokenSource(cfg.JWTSecret, serviceName)),
	))
	return newServer(cfg, db, notifier), nil
}

// newServer はコンポーネントを組み立ててルーティングを設定する。
func newServer(cfg *config.Config, db *sqlx.DB, notifier Notifier) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins()))

	s := &Server{
		router:     router,
		port:       cfg.Port,
		db:         db,
		repo:       NewRepository(db),
		notifier:   notifier,
		cfg:        cfg,
		bcryptCost: bcrypt.DefaultCost,
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
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
	graceCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()

	return errors.Join(
		srv.Shutdown(graceCtx),
		s.Shutdown(graceCtx),
	)
}

// Shutdown は実行中の登録通知の送信を待ち、データベース接続を閉じる。
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("登録通知の送信待ちがタイムアウトしました: %w", ctx.Err())
	}
	return errors.Join(waitErr, s.db.Close())
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	users := s.router.Group("/api/v1/users")
	{
		// ユーザー登録
		users.POST("/register", s.handleRegister())
		// ログイン
		users.POST("/login", s.handleLogin())

		me := users.Group("/me")
		me.Use(middleware.JWTAuth(s.cfg.JWTSecret))
		{
			// 認証済みユーザーの情報取得
			me.GET("", s.handleMe())
			// デバイストークンの登録
			me.PUT("/fcm-token", s.handleUpdateFCMToken())
		}
	}

	// ユーザーディレクトリ（内部API - 通知サービスから呼び出される）
	internal := s.router.Group("/api/v1/internal/users")
	internal.Use(middleware.JWTAuth(s.cfg.JWTSecret), middleware.RequireRole(middleware.RoleService))
	{
		internal.GET("", s.handleListUsers())
		internal.GET("/:id", s.handleGetUser())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "user"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
}

// authResponse は登録・ログインのレスポンス。
type authResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}

// handleRegister はユーザーを登録するハンドラ。
// 登録後、通知サービスへの通知の発生要求をレスポンスから切り離して送る。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := request.BindJSON(c, &req); err != nil {
			request.AbortWithError(c, err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
		if err != nil {
			log.Printf("パスワードハッシュ生成エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		role := middleware.RoleUser
		if s.cfg.IsAdminEmail(email) {
			role = middleware.RoleAdmin
		}

		u := &User{
			ID:           uuid.New().String(),
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Email:        email,
			PasswordHash: string(hash),
			Role:         role,
			IsVerified:   true,
		}
		if err := s.repo.Create(c.Request.Context(), u); err != nil {
			if errors.Is(err, ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{"error": "このメールアドレスは既に登録されています"})
				return
			}
			log.Printf("ユーザー登録エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
			return
		}

		token, err := middleware.GenerateJWT(s.cfg.JWTSecret, u.ID, u.Email, u.Role, middleware.LoginTokenTTL)
		if err != nil {
			log.Printf("トークン生成エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの生成に失敗しました"})
			return
		}

		c.JSON(http.StatusCreated, authResponse{
			Message: "ユーザー登録が完了しました",
			Token:   token,
			User:    u,
		})
		s.notifyAsync(registrationIntent(s.cfg.AppName, u))
	}
}

// notifyAsync は通知の発生要求をレスポンスから切り離して送る。失敗はログに記録するのみ。
func (s *Server) notifyAsync(intent NotificationIntent) {
	s.tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, intent); err != nil {
			log.Printf("[Notify] 登録通知の送信に失敗: user=%s, error=%v", intent.UserID, err)
		}
	})
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// handleLogin はメールアドレスとパスワードでログインし、トークンを発行するハンドラ。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := request.BindJSON(c, &req); err != nil {
			request.AbortWithError(c, err)
			return
		}

		u, err := s.repo.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("ユーザー取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			return
		}
		if u == nil || u.IsDeleted ||
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			return
		}
		if !u.IsVerified {
			c.JSON(http.StatusForbidden, gin.H{"error": "メールアドレスの確認が完了していません"})
			return
		}

		token, err := middleware.GenerateJWT(s.cfg.JWTSecret, u.ID, u.Email, u.Role, middleware.LoginTokenTTL)
		if err != nil {
			log.Printf("トークン生成エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの生成に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, authResponse{
			Message: "ログインしました",
			Token:   token,
			User:    u,
		})
	}
}

// handleMe は認証済みユーザーの情報を返すハンドラ。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.repo.FindByID(c.Request.Context(), middleware.GetUserID(c))
		if err != nil || u.IsDeleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// fcmTokenRequest はデバイストークン登録リクエストのJSON構造。
type fcmTokenRequest struct {
	FCMToken string `json:"fcm_token" binding:"required"`
}

// handleUpdateFCMToken は認証済みユーザーのデバイストークンを登録するハンドラ。
func (s *Server) handleUpdateFCMToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fcmTokenRequest
		if err := request.BindJSON(c, &req); err != nil {
			request.AbortWithError(c, err)
			return
		}

		if err := s.repo.UpdateFCMToken(c.Request.Context(), middleware.GetUserID(c), req.FCMToken); err != nil {
			if errors.Is(err, ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
				return
			}
			log.Printf("デバイストークン更新エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "デバイストークンの登録に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "デバイストークンを登録しました"})
	}
}

// handleGetUser はIDでユーザーを返す内部APIのハンドラ。削除済みユーザーも返す。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.repo.FindByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
				return
			}
			log.Printf("ユーザー取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, toMember(u))
	}
}

// handleListUsers は指定ロールの削除されていないユーザー一覧を返す内部APIのハンドラ。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.Query("role")
		if role == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roleを指定してください"})
			return
		}

		users, err := s.repo.FindByRole(c.Request.Context(), role)
		if err != nil {
			log.Printf("ユーザー一覧取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー一覧の取得に失敗しました"})
			return
		}

		members := make([]member, 0, len(users))
		for i := range users {
			members = append(members, toMember(&users[i]))
		}
		c.JSON(http.StatusOK, gin.H{"users": members})
	}
}
