package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/socialhub/pkg/httpclient"
	"github.com/nao1215/socialhub/pkg/middleware"
)

// newDirectoryServer はユーザーサービスの内部APIを模したサーバーを返す。
func newDirectoryServer(t *testing.T, members ...Member) *HTTPDirectory {
	t.Helper()

	router := gin.New()
	internal := router.Group("/api/v1/internal/users")
	internal.Use(middleware.JWTAuth(testSecret), middleware.RequireRole(middleware.RoleService))
	internal.GET("/:id", func(c *gin.Context) {
		for _, m := range members {
			if m.ID == c.Param("id") {
				c.JSON(http.StatusOK, m)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
	})
	internal.GET("", func(c *gin.Context) {
		out := []Member{}
		for _, m := range members {
			if m.Role == c.Query("role") && !m.IsDeleted {
				out = append(out, m)
			}
		}
		c.JSON(http.StatusOK, gin.H{"users": out})
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return NewHTTPDirectory(httpclient.New(srv.URL,
		httpclient.WithTokenSource(middleware.ServiceTokenSource(testSecret, "notification-service"))))
}

// TestHTTPDirectory はユーザーサービスの内部APIを参照するディレクトリを検証する。
func TestHTTPDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newDirectoryServer(t, alice, root, ops)

	t.Run("IDでユーザーを取得できること", func(t *testing.T) {
		t.Parallel()

		got, err := d.FindByID(ctx, alice.ID)
		if err != nil {
			t.Fatalf("FindByID()でエラーが発生: %v", err)
		}
		if *got != alice {
			t.Errorf("ユーザー = %+v, want %+v", *got, alice)
		}
	})

	t.Run("存在しないユーザーはErrUserNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		if _, err := d.FindByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("ロールで一覧を取得できること", func(t *testing.T) {
		t.Parallel()

		got, err := d.FindByRole(ctx, middleware.RoleAdmin)
		if err != nil {
			t.Fatalf("FindByRole()でエラーが発生: %v", err)
		}
		if len(got) != 2 || got[0].ID != root.ID || got[1].ID != ops.ID {
			t.Errorf("管理者一覧 = %+v", got)
		}
	})
}
