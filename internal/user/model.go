package user

import (
	"strings"
	"time"
)

// User はユーザーのレコード。
type User struct {
	// ID はユーザーの一意識別子（UUID）。
	ID string `db:"id" json:"id"`
	// FirstName は名。
	FirstName string `db:"first_name" json:"first_name"`
	// LastName は姓。
	LastName string `db:"last_name" json:"last_name"`
	// Email はメールアドレス。小文字で保存する。
	Email string `db:"email" json:"email"`
	// PasswordHash はbcryptでハッシュ化したパスワード。
	PasswordHash string `db:"password_hash" json:"-"`
	// Role はロール（admin / user）。
	Role string `db:"role" json:"role"`
	// IsVerified は認証済みかどうか。
	IsVerified bool `db:"is_verified" json:"is_verified"`
	// IsDeleted は論理削除済みかどうか。
	IsDeleted bool `db:"is_deleted" json:"is_deleted"`
	// FCMToken はプッシュ通知用のデバイストークン。
	FCMToken string `db:"fcm_token" json:"fcm_token"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Name は表示名を返す。
func (u *User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// member は内部APIで他サービスに返すユーザー情報の射影。
type member struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
	IsDeleted  bool   `json:"is_deleted"`
}

// toMember はユーザーを内部API用の射影に変換する。
func toMember(u *User) member {
	return member{
		ID:         u.ID,
		Name:       u.Name(),
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		IsDeleted:  u.IsDeleted,
	}
}
