package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// badgePreviewSize はバッジに含める最新通知の件数。
const badgePreviewSize = 3

// FeedItem は通知一覧の1件。受信者層に応じたタイトル・メッセージ・既読状態を持つ。
type FeedItem struct {
	ID         string    `json:"id"`
	IsReadable bool      `json:"is_readable"`
	Title      string    `json:"title"`
	Msg        string    `json:"msg"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FeedPage は通知一覧の1ページ。
type FeedPage struct {
	// Items は新しい順の通知。IsReadableは取得時点の状態を表す。
	Items []FeedItem `json:"notifications"`
	// Pagination はページングのメタデータ。
	Pagination Pagination `json:"pagination"`

	audience  Audience
	subjectID string
}

// Empty はページに通知が含まれないかどうかを返す。
func (p *FeedPage) Empty() bool {
	return p == nil || len(p.Items) == 0
}

// BadgePreview はバッジに表示する最新通知の概要。
type BadgePreview struct {
	Msg       string    `json:"msg"`
	CreatedAt time.Time `json:"created_at"`
}

// Badge は未読件数と最新通知のプレビュー。
type Badge struct {
	// Count は未読件数。
	Count int `json:"count"`
	// Latest は既読状態を問わない最新の通知（最大3件）。
	Latest []BadgePreview `json:"latest"`
}

// Reader は通知一覧・バッジの取得と、一覧取得後の既読化を行う。
type Reader struct {
	directory       UserDirectory
	store           *Store
	markReadTimeout time.Duration

	tasks sync.WaitGroup
}

// NewReader は新しいReaderを生成する。
// markReadTimeoutはレスポンス後に行う既読化処理のタイムアウト。
func NewReader(directory UserDirectory, store *Store, markReadTimeout time.Duration) *Reader {
	return &Reader{
		directory:       directory,
		store:           store,
		markReadTimeout: markReadTimeout,
	}
}

// resolve は呼び出し元ユーザーの受信者層を決定する。
func (r *Reader) resolve(ctx context.Context, callerID string) (*Member, Audience, error) {
	member, err := r.directory.FindByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, Audience{}, ErrUserNotFound
		}
		return nil, Audience{}, err
	}
	if member.IsDeleted {
		return nil, Audience{}, ErrUserNotFound
	}

	aud, err := AudienceForRole(member.Role)
	if err != nil {
		return nil, Audience{}, err
	}
	return member, aud, nil
}

// GetPage は呼び出し元の受信者層に表示される通知を新しい順に1ページ分返す。
// 既読化はAcknowledgeで別途行う。
func (r *Reader) GetPage(ctx context.Context, callerID string, page, limit int) (*FeedPage, error) {
	member, aud, err := r.resolve(ctx, callerID)
	if err != nil {
		return nil, err
	}

	records, total, err := r.store.FindPage(ctx, aud, member.ID, page, limit)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(records))
	for i := range records {
		n := &records[i]
		items = append(items, FeedItem{
			ID:         n.ID,
			IsReadable: aud.Read(n),
			Title:      aud.Title(n),
			Msg:        aud.Message(n),
			CreatedAt:  n.CreatedAt,
			UpdatedAt:  n.UpdatedAt,
		})
	}

	return &FeedPage{
		Items:      items,
		Pagination: NewPagination(total, page, limit),
		audience:   aud,
		subjectID:  member.ID,
	}, nil
}

// Acknowledge はレスポンス送信後に、受信者層に表示される未読の通知をすべて既読にする。
// 呼び出し元をブロックせず、失敗はログに記録するのみ。空のページでは何もしない。
func (r *Reader) Acknowledge(p *FeedPage) {
	if p.Empty() {
		return
	}

	r.tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.markReadTimeout)
		defer cancel()

		updated, err := r.store.MarkRead(ctx, p.audience, p.subjectID)
		if err != nil {
			log.Printf("[Reader] 既読化に失敗: role=%s, subject=%s, error=%v", p.audience.Role(), p.subjectID, err)
			return
		}
		if updated > 0 {
			log.Printf("[Reader] %d件の通知を既読にしました: role=%s, subject=%s", updated, p.audience.Role(), p.subjectID)
		}
	})
}

// GetBadge は未読件数と最新3件のプレビューを返す。状態は変更しない。
func (r *Reader) GetBadge(ctx context.Context, callerID string) (*Badge, error) {
	member, aud, err := r.resolve(ctx, callerID)
	if err != nil {
		return nil, err
	}

	count, err := r.store.CountUnread(ctx, aud, member.ID)
	if err != nil {
		return nil, err
	}

	records, err := r.store.LatestWithMessage(ctx, aud, member.ID, badgePreviewSize)
	if err != nil {
		return nil, err
	}

	latest := make([]BadgePreview, 0, len(records))
	for i := range records {
		latest = append(latest, BadgePreview{
			Msg:       aud.Message(&records[i]),
			CreatedAt: records[i].CreatedAt,
		})
	}
	return &Badge{Count: count, Latest: latest}, nil
}

// Shutdown は実行中の既読化処理の完了を待つ。ctxの期限を過ぎた場合はエラーを返す。
func (r *Reader) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("既読化処理の完了待ちがタイムアウトしました: %w", ctx.Err())
	}
}
