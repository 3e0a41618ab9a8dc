package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nao1215/socialhub/pkg/event"
	"github.com/nao1215/socialhub/pkg/middleware"
)

// asyncDispatchTimeout はDispatchAsyncで実行する1件あたりのタイムアウト。
const asyncDispatchTimeout = 30 * time.Second

// Dispatcher は通知の発生要求を受け取り、ライブ配信と永続化を行う。
type Dispatcher struct {
	directory UserDirectory
	store     *Store
	deliverer Deliverer

	// tasks はDispatchAsyncで起動した処理。
	tasks sync.WaitGroup
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(directory UserDirectory, store *Store, deliverer Deliverer) *Dispatcher {
	return &Dispatcher{directory: directory, store: store, deliverer: deliverer}
}

// Dispatch は通知を配信し、永続化したレコードを返す。
//
// 管理者の集合は呼び出しのたびにディレクトリから取得する。取得に失敗した場合は
// 管理者なしとして扱い、通知自体は失敗させない。
// ユーザー向けメッセージが空でなければ対象ユーザーへ、管理者向けメッセージが空でなければ
// 各管理者へそれぞれ1回ずつライブ配信する。セッションがない受信者には配信しない。
// ライブ配信の成否に関わらずレコードは必ず永続化し、永続化の失敗のみをエラーとして返す。
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) (*Notification, error) {
	if intent.UserID == "" {
		return nil, ErrInvalidIntent
	}

	adminIDs := d.adminIDs(ctx)

	var wg sync.WaitGroup
	if intent.UserMsg != "" {
		wg.Go(func() {
			d.push(ctx, intent.UserID, event.UserNotificationData{
				UserID:  intent.UserID,
				Title:   intent.UserMsgTitle,
				Message: intent.UserMsg,
			})
		})
	}
	if intent.AdminMsg != "" {
		for _, adminID := range adminIDs {
			wg.Go(func() {
				d.push(ctx, adminID, event.AdminNotificationData{
					AdminID: adminID,
					Title:   intent.AdminMsgTitle,
					Message: intent.AdminMsg,
				})
			})
		}
	}
	wg.Wait()

	n, err := d.store.Create(ctx, intent, adminIDs)
	if err != nil {
		return nil, fmt.Errorf("通知の永続化に失敗: %w", err)
	}
	log.Printf("[Dispatcher] 通知を保存しました: id=%s, user=%s, admins=%d", n.ID, n.UserID, len(n.AdminIDs))
	return n, nil
}

// adminIDs は現在の管理者のID一覧を返す。取得に失敗した場合は空を返す。
func (d *Dispatcher) adminIDs(ctx context.Context) []string {
	admins, err := d.directory.FindByRole(ctx, middleware.RoleAdmin)
	if err != nil {
		log.Printf("[Dispatcher] 管理者一覧の取得に失敗したため管理者なしで続行します: %v", err)
		return nil
	}

	ids := make([]string, 0, len(admins))
	for _, a := range admins {
		if a.IsDeleted {
			continue
		}
		ids = append(ids, a.ID)
	}
	return uniqueIDs(ids)
}

// push は1人の受信者にイベントを配信する。失敗はログに記録するのみ。
func (d *Dispatcher) push(ctx context.Context, recipientID string, data any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Dispatcher] ライブ配信中にpanicが発生: recipient=%s, panic=%v", recipientID, r)
		}
	}()

	ev, err := event.New(event.TypeNotification, data)
	if err != nil {
		log.Printf("[Dispatcher] イベント生成に失敗: %v", err)
		return
	}

	if err := d.deliverer.Deliver(ctx, recipientID, *ev); err != nil && !errors.Is(err, ErrNoSession) {
		log.Printf("[Dispatcher] ライブ配信に失敗: recipient=%s, error=%v", recipientID, err)
	}
}

// DispatchAsync は呼び出し元から切り離してDispatchを実行する。
// 失敗はログに記録するのみ。実行中の処理はShutdownで待つことができる。
func (d *Dispatcher) DispatchAsync(intent Intent) {
	d.tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncDispatchTimeout)
		defer cancel()

		if _, err := d.Dispatch(ctx, intent); err != nil {
			log.Printf("[Dispatcher] 非同期の通知処理に失敗: user=%s, error=%v", intent.UserID, err)
		}
	})
}

// Shutdown は実行中のDispatchAsyncの完了を待つ。ctxの期限を過ぎた場合はエラーを返す。
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("通知処理の完了待ちがタイムアウトしました: %w", ctx.Err())
	}
}
