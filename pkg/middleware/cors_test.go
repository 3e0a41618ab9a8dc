package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantOrigin string
		wantCode   int
	}{
		{
			name:       "許可されたオリジンにCORSヘッダーが設定されること",
			allowed:    []string{"http://localhost:3000", "https://example.com"},
			method:     http.MethodGet,
			origin:     "https://example.com",
			wantOrigin: "https://example.com",
			wantCode:   http.StatusOK,
		},
		{
			name:       "ワイルドカード指定では任意のオリジンを反映すること",
			allowed:    []string{"*"},
			method:     http.MethodGet,
			origin:     "https://app.example.org",
			wantOrigin: "https://app.example.org",
			wantCode:   http.StatusOK,
		},
		{
			name:       "許可されていないオリジンにはCORSヘッダーが設定されないこと",
			allowed:    []string{"http://localhost:3000"},
			method:     http.MethodGet,
			origin:     "https://evil.com",
			wantOrigin: "",
			wantCode:   http.StatusOK,
		},
		{
			name:       "Originヘッダーが無い場合はワイルドカードでも設定されないこと",
			allowed:    []string{"*"},
			method:     http.MethodGet,
			origin:     "",
			wantOrigin: "",
			wantCode:   http.StatusOK,
		},
		{
			name:       "OPTIONSリクエストは204で中断されること",
			allowed:    []string{"http://localhost:3000"},
			method:     http.MethodOptions,
			origin:     "http://localhost:3000",
			wantOrigin: "http://localhost:3000",
			wantCode:   http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handlerCalled := false
			router := gin.New()
			router.Use(CORS(tt.allowed))
			router.Handle(tt.method, "/test", func(c *gin.Context) {
				handlerCalled = true
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.wantCode)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.wantOrigin != "" {
				if got := w.Header().Get("Access-Control-Allow-Headers"); got != corsAllowHeaders {
					t.Errorf("Access-Control-Allow-Headers = %q, want %q", got, corsAllowHeaders)
				}
			}
			if tt.method == http.MethodOptions && handlerCalled {
				t.Error("OPTIONSリクエストでハンドラーが呼ばれるべきではない")
			}
		})
	}
}
