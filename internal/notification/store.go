package notification

import (
	"context"
	"embed"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/socialhub/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate は通知サービスのスキーマをdbのダイアレクトに合わせて適用する。
func Migrate(ctx context.Context, db *sqlx.DB) error {
	return migration.Run(ctx, db, migrationsFS, "migrations")
}

// Store は通知レコードの永続化を担う。
// クエリは "?" で記述し、ドライバに合わせてRebindする。
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create は通知レコードと作成時点の管理者集合を1トランザクションで保存する。
func (s *Store) Create(ctx context.Context, intent Intent, adminIDs []string) (*Notification, error) {
	now := s.now()
	n := &Notification{
		ID:            uuid.New().String(),
		UserID:        intent.UserID,
		AdminIDs:      uniqueIDs(adminIDs),
		UserMsgTitle:  intent.UserMsgTitle,
		UserMsg:       intent.UserMsg,
		AdminMsgTitle: intent.AdminMsgTitle,
		AdminMsg:      intent.AdminMsg,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, user_msg_title, user_msg, admin_msg_title, admin_msg,
			is_user_read, is_admin_read, created_at, updated_at
		) VALUES (
			:id, :user_id, :user_msg_title, :user_msg, :admin_msg_title, :admin_msg,
			:is_user_read, :is_admin_read, :created_at, :updated_at
		)`, n); err != nil {
		return nil, fmt.Errorf("通知の保存に失敗: %w", err)
	}

	insertAdmin := tx.Rebind("INSERT INTO notification_admins (notification_id, admin_id) VALUES (?, ?)")
	for _, adminID := range n.AdminIDs {
		if _, err := tx.ExecContext(ctx, insertAdmin, n.ID, adminID); err != nil {
			return nil, fmt.Errorf("管理者の保存に失敗: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return n, nil
}

// FindPage は受信者層に表示される通知を新しい順に1ページ分取得し、総件数とともに返す。
// pageは1始まり。
func (s *Store) FindPage(ctx context.Context, aud Audience, subjectID string, page, limit int) ([]Notification, int, error) {
	where := aud.visible()

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(
		"SELECT COUNT(*) FROM notifications n WHERE "+where), subjectID); err != nil {
		return nil, 0, fmt.Errorf("通知件数の取得に失敗: %w", err)
	}

	records, err := s.selectVisible(ctx, aud, subjectID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// selectVisible は受信者層に表示される通知を新しい順に取得する。
// 作成日時が同じ場合はIDの降順で並べる。
func (s *Store) selectVisible(ctx context.Context, aud Audience, subjectID string, limit, offset int) ([]Notification, error) {
	records := []Notification{}
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(
		"SELECT "+aud.columns+" FROM notifications n WHERE "+aud.visible()+
			" ORDER BY n.created_at DESC, n.id DESC LIMIT ? OFFSET ?"),
		subjectID, limit, offset); err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return records, nil
}

// MarkRead は受信者層に表示される未読の通知をすべて既読にし、更新件数を返す。
func (s *Store) MarkRead(ctx context.Context, aud Audience, subjectID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		"UPDATE notifications AS n SET "+aud.readColumn+" = ?, updated_at = ? WHERE "+
			aud.visible()+" AND n."+aud.readColumn+" = ?"),
		true, s.now(), subjectID, false)
	if err != nil {
		return 0, fmt.Errorf("既読化に失敗: %w", err)
	}
	return res.RowsAffected()
}

// CountUnread は受信者層に表示される未読の通知件数を返す。
func (s *Store) CountUnread(ctx context.Context, aud Audience, subjectID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(
		"SELECT COUNT(*) FROM notifications n WHERE "+aud.visible()+" AND n."+aud.readColumn+" = ?"),
		subjectID, false); err != nil {
		return 0, fmt.Errorf("未読件数の取得に失敗: %w", err)
	}
	return count, nil
}

// LatestWithMessage は受信者層に表示される最新の通知をlimit件返す。既読状態は問わない。
func (s *Store) LatestWithMessage(ctx context.Context, aud Audience, subjectID string, limit int) ([]Notification, error) {
	return s.selectVisible(ctx, aud, subjectID, limit, 0)
}

// uniqueIDs は空文字列と重複を除いたIDの一覧を返す。順序は保持する。
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
