package notification

import (
	"context"

	"github.com/nao1215/socialhub/pkg/event"
)

// Deliverer はイベントを受信者のライブセッションへ届ける。
// 受信者のセッションが存在しない場合はErrNoSessionを返す。
type Deliverer interface {
	Deliver(ctx context.Context, recipientID string, ev event.Event) error
}

// LocalDeliverer は同一プロセスのRegistryに登録されたセッションへ直接配信する。
type LocalDeliverer struct {
	registry Registry
}

// NewLocalDeliverer は新しいLocalDelivererを生成する。
func NewLocalDeliverer(registry Registry) *LocalDeliverer {
	return &LocalDeliverer{registry: registry}
}

// Deliver は受信者の現在のセッションにイベントを積む。
func (d *LocalDeliverer) Deliver(_ context.Context, recipientID string, ev event.Event) error {
	session, ok := d.registry.Lookup(recipientID)
	if !ok {
		return ErrNoSession
	}
	return session.Push(ev)
}
