package notification

import "time"

// Notification は永続化された通知レコード。
// 1件のレコードがユーザー向けと管理者向けの2つの文面と既読状態を独立に持つ。
type Notification struct {
	// ID は通知の一意識別子（UUID）。
	ID string `db:"id"`
	// UserID は通知の対象ユーザーID。
	UserID string `db:"user_id"`
	// AdminIDs は作成時点の管理者の集合。作成後に再計算しない。
	AdminIDs []string `db:"-"`
	// UserMsgTitle はユーザー向けのタイトル。
	UserMsgTitle string `db:"user_msg_title"`
	// UserMsg はユーザー向けのメッセージ。空の場合はユーザーに表示しない。
	UserMsg string `db:"user_msg"`
	// AdminMsgTitle は管理者向けのタイトル。
	AdminMsgTitle string `db:"admin_msg_title"`
	// AdminMsg は管理者向けのメッセージ。空の場合は管理者に表示しない。
	AdminMsg string `db:"admin_msg"`
	// IsUserRead はユーザー側の既読状態。
	IsUserRead bool `db:"is_user_read"`
	// IsAdminRead は管理者側の既読状態。
	IsAdminRead bool `db:"is_admin_read"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at"`
	// UpdatedAt は更新日時。既読化で更新される。
	UpdatedAt time.Time `db:"updated_at"`
}

// Intent は通知の発生要求。通知を生む操作（ユーザー登録など）から渡される。
type Intent struct {
	// UserID は通知の対象ユーザーID。
	UserID string `json:"user_id" binding:"required"`
	// UserMsgTitle はユーザー向けのタイトル。
	UserMsgTitle string `json:"user_msg_title"`
	// UserMsg はユーザー向けのメッセージ。
	UserMsg string `json:"user_msg"`
	// AdminMsgTitle は管理者向けのタイトル。
	AdminMsgTitle string `json:"admin_msg_title"`
	// AdminMsg は管理者向けのメッセージ。
	AdminMsg string `json:"admin_msg"`
}

// Member はユーザーディレクトリから取得するユーザー情報の射影。
type Member struct {
	// ID はユーザーID。
	ID string `json:"id"`
	// Name は表示名。
	Name string `json:"name"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Role はロール（admin / user）。
	Role string `json:"role"`
	// IsVerified は認証済みかどうか。
	IsVerified bool `json:"is_verified"`
	// IsDeleted は論理削除済みかどうか。
	IsDeleted bool `json:"is_deleted"`
}

// Identity はライブセッションを確立した認証済みユーザーの最小限の情報。
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
