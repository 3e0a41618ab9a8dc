package notification

import (
	"fmt"

	"github.com/nao1215/socialhub/pkg/middleware"
)

// Audience は通知の受信者層（ユーザー / 管理者）を表す。
// 値はUserAudienceとAdminAudienceの2つのみで、パッケージ外からは生成できない。
// 受信者層ごとに、レコードの選択条件、射影する列、既読フラグ、メッセージの取り出し方が異なる。
type Audience struct {
	role string
	// scope は対象者IDを1つのプレースホルダで受け取るWHERE句の条件。
	scope string
	// columns は一覧取得時に射影する列。
	columns string
	// readColumn は既読フラグの列名。
	readColumn string
	// messageColumn はメッセージの列名。空のレコードはこの受信者層に表示しない。
	messageColumn string

	read    func(*Notification) bool
	message func(*Notification) string
	title   func(*Notification) string
}

var (
	// UserAudience は通知の対象ユーザー本人。
	UserAudience = Audience{
		role:          middleware.RoleUser,
		scope:         "n.user_id = ?",
		columns:       "n.id, n.user_id, n.user_msg_title, n.user_msg, n.is_user_read, n.created_at, n.updated_at",
		readColumn:    "is_user_read",
		messageColumn: "user_msg",
		read:          func(n *Notification) bool { return n.IsUserRead },
		message:       func(n *Notification) string { return n.UserMsg },
		title:         func(n *Notification) string { return n.UserMsgTitle },
	}

	// AdminAudience は通知作成時点の管理者。
	AdminAudience = Audience{
		role:          middleware.RoleAdmin,
		scope:         "EXISTS (SELECT 1 FROM notification_admins a WHERE a.notification_id = n.id AND a.admin_id = ?)",
		columns:       "n.id, n.user_id, n.admin_msg_title, n.admin_msg, n.is_admin_read, n.created_at, n.updated_at",
		readColumn:    "is_admin_read",
		messageColumn: "admin_msg",
		read:          func(n *Notification) bool { return n.IsAdminRead },
		message:       func(n *Notification) string { return n.AdminMsg },
		title:         func(n *Notification) string { return n.AdminMsgTitle },
	}
)

// AudienceForRole はロールに対応する受信者層を返す。
func AudienceForRole(role string) (Audience, error) {
	switch role {
	case middleware.RoleUser:
		return UserAudience, nil
	case middleware.RoleAdmin:
		return AdminAudience, nil
	default:
		return Audience{}, fmt.Errorf("%w: %q", ErrUnsupportedRole, role)
	}
}

// Role は受信者層に対応するロール名を返す。
func (a Audience) Role() string { return a.role }

// Read はこの受信者層における既読状態を返す。
func (a Audience) Read(n *Notification) bool { return a.read(n) }

// Message はこの受信者層向けのメッセージを返す。
func (a Audience) Message(n *Notification) string { return a.message(n) }

// Title はこの受信者層向けのタイトルを返す。
func (a Audience) Title(n *Notification) string { return a.title(n) }

// visible は対象者に表示されるレコードを選ぶWHERE句を返す。
func (a Audience) visible() string {
	return fmt.Sprintf("%s AND n.%s <> ''", a.scope, a.messageColumn)
}
