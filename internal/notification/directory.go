package notification

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nao1215/socialhub/pkg/httpclient"
)

// UserDirectory はユーザー情報の参照先。
type UserDirectory interface {
	// FindByID はIDでユーザーを取得する。存在しない場合はErrUserNotFoundを返す。
	FindByID(ctx context.Context, id string) (*Member, error)
	// FindByRole は指定ロールを持つ削除されていないユーザーの一覧を返す。
	FindByRole(ctx context.Context, role string) ([]Member, error)
}

// HTTPDirectory はユーザーサービスの内部APIを参照するUserDirectory。
type HTTPDirectory struct {
	client *httpclient.Client
}

// NewHTTPDirectory は新しいHTTPDirectoryを生成する。
// clientにはサービス間トークンを付与するよう設定したクライアントを渡す。
func NewHTTPDirectory(client *httpclient.Client) *HTTPDirectory {
	return &HTTPDirectory{client: client}
}

// memberListResponse はユーザー一覧APIのレスポンス。
type memberListResponse struct {
	Users []Member `json:"users"`
}

// FindByID はIDでユーザーを取得する。
func (d *HTTPDirectory) FindByID(ctx context.Context, id string) (*Member, error) {
	var m Member
	if err := d.client.GetJSON(ctx, "/api/v1/internal/users/"+url.PathEscape(id), &m); err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ユーザー取得に失敗: %w", err)
	}
	return &m, nil
}

// FindByRole は指定ロールのユーザー一覧を取得する。
func (d *HTTPDirectory) FindByRole(ctx context.Context, role string) ([]Member, error) {
	var resp memberListResponse
	if err := d.client.GetJSON(ctx, "/api/v1/internal/users?role="+url.QueryEscape(role), &resp); err != nil {
		return nil, fmt.Errorf("ロール %s のユーザー一覧取得に失敗: %w", role, err)
	}
	return resp.Users, nil
}
