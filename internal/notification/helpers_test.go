package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/socialhub/pkg/config"
	"github.com/nao1215/socialhub/pkg/event"
	"github.com/nao1215/socialhub/pkg/middleware"
	_ "modernc.org/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-notification"

// newTestDB はマイグレーション済みのインメモリSQLiteを返す。
// インメモリDBは接続ごとに独立するため接続数を1に制限する。
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

// fakeDirectory はテスト用のUserDirectory。
type fakeDirectory struct {
	mu      sync.Mutex
	members map[string]Member
	// roleErr はFindByRoleが返すエラー。
	roleErr error
	// lookupErr はFindByIDが返すエラー。
	lookupErr error
}

// newFakeDirectory は指定ユーザーを登録したfakeDirectoryを返す。
func newFakeDirectory(members ...Member) *fakeDirectory {
	d := &fakeDirectory{members: make(map[string]Member)}
	for _, m := range members {
		d.add(m)
	}
	return d
}

func (d *fakeDirectory) add(m Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
}

func (d *fakeDirectory) FindByID(_ context.Context, id string) (*Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lookupErr != nil {
		return nil, d.lookupErr
	}
	m, ok := d.members[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &m, nil
}

func (d *fakeDirectory) FindByRole(_ context.Context, role string) ([]Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.roleErr != nil {
		return nil, d.roleErr
	}
	var out []Member
	for _, m := range d.members {
		if m.Role == role && !m.IsDeleted {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b Member) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

// delivery は記録された1件の配信。
type delivery struct {
	recipientID string
	event       event.Event
}

// recordingDeliverer は配信を記録するテスト用のDeliverer。
type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
	// err はDeliverが返すエラー。配信は記録する。
	err error
}

func (d *recordingDeliverer) Deliver(_ context.Context, recipientID string, ev event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery{recipientID: recipientID, event: ev})
	return d.err
}

// to は指定した受信者への配信を返す。
func (d *recordingDeliverer) to(recipientID string) []delivery {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []delivery
	for _, dl := range d.deliveries {
		if dl.recipientID == recipientID {
			out = append(out, dl)
		}
	}
	return out
}

// テストで使用するユーザー。
var (
	alice = Member{ID: "user-alice", Name: "Alice", Email: "alice@example.com", Role: middleware.RoleUser, IsVerified: true}
	bob   = Member{ID: "user-bob", Name: "Bob", Email: "bob@example.com", Role: middleware.RoleUser, IsVerified: true}
	root  = Member{ID: "admin-root", Name: "Root", Email: "root@example.com", Role: middleware.RoleAdmin, IsVerified: true}
	ops   = Member{ID: "admin-ops", Name: "Ops", Email: "ops@example.com", Role: middleware.RoleAdmin, IsVerified: true}
)

// tokenFor はユーザーのログイントークンを発行する。
func tokenFor(t *testing.T, m Member) string {
	t.Helper()

	token, err := middleware.GenerateJWT(testSecret, m.ID, m.Email, m.Role, time.Hour)
	if err != nil {
		t.Fatalf("トークン発行に失敗: %v", err)
	}
	return token
}

// serviceToken はサービス間トークンを発行する。
func serviceToken(t *testing.T) string {
	t.Helper()

	token, err := middleware.ServiceTokenSource(testSecret, "user-service")()
	if err != nil {
		t.Fatalf("トークン発行に失敗: %v", err)
	}
	return token
}

// decodeData はイベントのデータを指定された型にデコードするヘルパー関数。
func decodeData[T any](t *testing.T, ev event.Event) T {
	t.Helper()

	var data T
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		t.Fatalf("イベントデータのデコードに失敗: %v, data=%s", err, ev.Data)
	}
	return data
}

// testConfig はテスト用のサーバー設定を返す。
func testConfig() *config.Config {
	return &config.Config{
		Service:         "notification",
		Mode:            "dev",
		Port:            "0",
		FrontendURL:     "*",
		JWTSecret:       testSecret,
		MarkReadTimeout: 5 * time.Second,
		ShutdownGrace:   5 * time.Second,
		SSEHeartbeat:    time.Hour,
	}
}

// setupTestServer はインメモリSQLiteとfakeDirectoryでテスト用サーバーを構築する。
func setupTestServer(t *testing.T, directory UserDirectory, pusher PushSender) *Server {
	t.Helper()

	if pusher == nil {
		pusher = DisabledPushSender{}
	}
	s := newServer(testConfig(), newTestDB(t), directory, pusher)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.dispatcher.Shutdown(ctx) //nolint:errcheck
		s.reader.Shutdown(ctx)     //nolint:errcheck
	})
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

// eventually はcondが真になるまで待つ。非同期の既読化など結果整合な処理の検証に使用する。
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("タイムアウト: %s", msg)
}

// steppingClock は呼び出しごとに1秒進む時刻を返す。作成順を決定的にするために使用する。
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// assertStatus はHTTPステータスコードを検証する。
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}
