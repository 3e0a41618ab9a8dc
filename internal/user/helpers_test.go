package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/socialhub/pkg/config"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-user"

// newTestDB はマイグレーション済みのインメモリSQLiteを返す。
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("マイグレーションに失敗: %v", err)
	}
	return db
}

// fakeNotifier は送信された発生要求を記録するテスト用のNotifier。
type fakeNotifier struct {
	mu      sync.Mutex
	intents []NotificationIntent
	// err はNotifyが返すエラー。
	err error
}

func (n *fakeNotifier) Notify(_ context.Context, intent NotificationIntent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
	return n.err
}

// sent は記録された発生要求のコピーを返す。
func (n *fakeNotifier) sent() []NotificationIntent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NotificationIntent(nil), n.intents...)
}

// testConfig はテスト用のサーバー設定を返す。
func testConfig() *config.Config {
	return &config.Config{
		Service:       "user",
		Mode:          "dev",
		Port:          "0",
		AppName:       "SocialHub",
		FrontendURL:   "*",
		JWTSecret:     testSecret,
		AdminEmails:   "root@example.com",
		ShutdownGrace: 5 * time.Second,
	}
}

// setupTestServer はインメモリSQLiteとfakeNotifierでテスト用サーバーを構築する。
func setupTestServer(t *testing.T, notifier Notifier) *Server {
	t.Helper()

	s := newServer(testConfig(), newTestDB(t), notifier)
	s.bcryptCost = bcrypt.MinCost
	t.Cleanup(func() { s.tasks.Wait() })
	return s
}

// doRequest はテスト用のHTTPリクエストを実行するヘルパー関数。
func doRequest(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body) //nolint:errcheck
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをJSONとしてパースするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v, body=%s", err, w.Body.String())
	}
}

// assertStatus はHTTPステータスコードを検証する。
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

// errNotifyFailed はNotifierの送信失敗を表すテスト用のエラー。
var errNotifyFailed = errors.New("notification service unavailable")
