package user

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/socialhub/pkg/migration"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate はユーザーサービスのスキーマをdbのダイアレクトに合わせて適用する。
func Migrate(ctx context.Context, db *sqlx.DB) error {
	return migration.Run(ctx, db, migrationsFS, "migrations")
}

// userColumns はusersテーブルから読み込む列。
const userColumns = `id, first_name, last_name, email, password_hash, role,
	is_verified, is_deleted, fcm_token, created_at, updated_at`

// Repository はユーザーレコードの永続化を担う。
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepository は新しいRepositoryを生成する。
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create はユーザーを保存する。メールアドレスが登録済みの場合はErrEmailTakenを返す。
func (r *Repository) Create(ctx context.Context, u *User) error {
	if _, err := r.FindByEmail(ctx, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return r.insert(ctx, u)
}

// insert はユーザーを1件挿入する。
// 同時登録で一意制約に違反した場合もErrEmailTakenを返す。
func (r *Repository) insert(ctx context.Context, u *User) error {
	now := r.now()
	u.CreatedAt, u.UpdatedAt = now, now
	if _, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (
			id, first_name, last_name, email, password_hash, role,
			is_verified, is_deleted, fcm_token, created_at, updated_at
		) VALUES (
			:id, :first_name, :last_name, :email, :password_hash, :role,
			:is_verified, :is_deleted, :fcm_token, :created_at, :updated_at
		)`, u); err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}
	return nil
}

// FindByID はIDでユーザーを取得する。
func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, "id", id)
}

// FindByEmail はメールアドレスでユーザーを取得する。
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "email", email)
}

// findOne は指定列の値が一致するユーザーを1件取得する。
func (r *Repository) findOne(ctx context.Context, column, value string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(
		"SELECT "+userColumns+" FROM users WHERE "+column+" = ?"), value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ユーザーの取得に失敗 (%s=%s): %w", column, value, err)
	}
	return &u, nil
}

// FindByRole は指定ロールを持つ削除されていないユーザーを作成順に返す。
func (r *Repository) FindByRole(ctx context.Context, role string) ([]User, error) {
	users := []User{}
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(
		"SELECT "+userColumns+" FROM users WHERE role = ? AND is_deleted = ? ORDER BY created_at, id"),
		role, false); err != nil {
		return nil, fmt.Errorf("ロール %s のユーザー一覧の取得に失敗: %w", role, err)
	}
	return users, nil
}

// UpdateFCMToken はユーザーのデバイストークンを更新する。
func (r *Repository) UpdateFCMToken(ctx context.Context, id, token string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE users SET fcm_token = ?, updated_at = ? WHERE id = ?"), token, r.now(), id)
	if err != nil {
		return fmt.Errorf("デバイストークンの更新に失敗: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// isUniqueViolation は一意制約違反のエラーかどうかを返す。
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
