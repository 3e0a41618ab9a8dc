package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/socialhub/pkg/middleware"
)

// TestSessionAuthenticator はライブセッション確立時の認証を検証する。
func TestSessionAuthenticator(t *testing.T) {
	t.Parallel()

	deleted := Member{ID: "user-deleted", Role: middleware.RoleUser, IsVerified: true, IsDeleted: true}
	unverified := Member{ID: "user-unverified", Role: middleware.RoleUser}
	directory := newFakeDirectory(alice, deleted, unverified)
	auth := NewSessionAuthenticator(testSecret, directory)

	expired, err := middleware.GenerateJWT(testSecret, alice.ID, alice.Email, alice.Role, -time.Minute)
	if err != nil {
		t.Fatalf("トークン発行に失敗: %v", err)
	}

	t.Run("有効な資格情報でユーザー情報が返ること", func(t *testing.T) {
		t.Parallel()

		identity, err := auth.Authenticate(context.Background(), tokenFor(t, alice))
		if err != nil {
			t.Fatalf("Authenticate()でエラーが発生: %v", err)
		}
		want := Identity{ID: alice.ID, Name: alice.Name, Email: alice.Email, Role: alice.Role}
		if *identity != want {
			t.Errorf("Identity = %+v, want %+v", *identity, want)
		}
	})

	tests := []struct {
		name       string
		credential string
		wantErr    error
	}{
		{name: "資格情報なし", credential: "", wantErr: ErrMissingToken},
		{name: "不正な資格情報", credential: "not-a-jwt", wantErr: ErrInvalidToken},
		{name: "期限切れの資格情報", credential: expired, wantErr: ErrInvalidToken},
		{name: "存在しないユーザー", credential: tokenFor(t, Member{ID: "ghost", Role: middleware.RoleUser}), wantErr: ErrUserNotFound},
		{name: "削除済みユーザー", credential: tokenFor(t, deleted), wantErr: ErrUserNotFound},
		{name: "未認証ユーザー", credential: tokenFor(t, unverified), wantErr: ErrUserNotVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name+"は拒否されること", func(t *testing.T) {
			t.Parallel()

			identity, err := auth.Authenticate(context.Background(), tt.credential)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if identity != nil {
				t.Errorf("Identity = %+v, want nil", identity)
			}
			if !IsAuthError(err) {
				t.Errorf("IsAuthError(%v) = false, want true", err)
			}
		})
	}

	t.Run("ディレクトリの障害は認証失敗として扱わないこと", func(t *testing.T) {
		t.Parallel()

		broken := newFakeDirectory()
		broken.lookupErr = errors.New("connection refused")

		_, err := NewSessionAuthenticator(testSecret, broken).Authenticate(context.Background(), tokenFor(t, alice))
		if err == nil {
			t.Fatal("エラーが返るべきだが、nilが返った")
		}
		if IsAuthError(err) {
			t.Errorf("IsAuthError(%v) = true, want false", err)
		}
	})
}
