package user

import (
	"context"
	"fmt"

	"github.com/nao1215/socialhub/pkg/httpclient"
)

// NotificationIntent は通知サービスへ送る通知の発生要求。
type NotificationIntent struct {
	UserID        string `json:"user_id"`
	UserMsgTitle  string `json:"user_msg_title"`
	UserMsg       string `json:"user_msg"`
	AdminMsgTitle string `json:"admin_msg_title"`
	AdminMsg      string `json:"admin_msg"`
}

// Notifier は通知の発生要求を送る。
type Notifier interface {
	Notify(ctx context.Context, intent NotificationIntent) error
}

// HTTPNotifier は通知サービスの内部APIへ発生要求を送るNotifier。
type HTTPNotifier struct {
	client *httpclient.Client
}

// NewHTTPNotifier は新しいHTTPNotifierを生成する。
func NewHTTPNotifier(client *httpclient.Client) *HTTPNotifier {
	return &HTTPNotifier{client: client}
}

// Notify は通知サービスへ発生要求を送る。
func (n *HTTPNotifier) Notify(ctx context.Context, intent NotificationIntent) error {
	if err := n.client.PostJSON(ctx, "/api/v1/internal/dispatch", intent, nil); err != nil {
		return fmt.Errorf("通知サービスへの送信に失敗: %w", err)
	}
	return nil
}

// registrationIntent はユーザー登録時の通知を組み立てる。
func registrationIntent(appName string, u *User) NotificationIntent {
	return NotificationIntent{
		UserID:        u.ID,
		UserMsgTitle:  "登録が完了しました",
		UserMsg:       fmt.Sprintf("%sへようこそ、%sさん！アカウントの登録が完了しました。", appName, u.Name()),
		AdminMsgTitle: "新規ユーザー登録",
		AdminMsg:      fmt.Sprintf("新しいユーザー %s さん（%s）が%sに登録しました。", u.Name(), u.Email, appName),
	}
}
