package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/nao1215/socialhub/pkg/event"
	"github.com/redis/go-redis/v9"
)

// 購読が切れた場合の再試行間隔。
const (
	minResubscribeBackoff = 500 * time.Millisecond
	maxResubscribeBackoff = 30 * time.Second
)

// RedisRelay はRedis Pub/Subを介して全インスタンスにイベントを中継するDeliverer。
// 受信側は自インスタンスのRegistryにセッションがある場合のみ配信する。
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   Deliverer

	// minBackoff, maxBackoff は購読の再試行間隔の下限と上限。
	minBackoff time.Duration
	maxBackoff time.Duration
	// subscribed は購読中かどうか。
	subscribed atomic.Bool
}

// NewRedisRelay は新しいRedisRelayを生成する。
// localには購読したイベントを自インスタンスのセッションへ届けるDelivererを渡す。
func NewRedisRelay(client *redis.Client, channel string, local Deliverer) *RedisRelay {
	return &RedisRelay{
		client:     client,
		channel:    channel,
		local:      local,
		minBackoff: minResubscribeBackoff,
		maxBackoff: maxResubscribeBackoff,
	}
}

// Deliver はイベントを宛先付きでチャネルに発行する。
// どのインスタンスがセッションを持つかは分からないため、ErrNoSessionは返さない。
func (r *RedisRelay) Deliver(ctx context.Context, recipientID string, ev event.Event) error {
	payload, err := event.EncodeEnvelope(recipientID, ev)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("Redisへのイベント発行に失敗: %w", err)
	}
	return nil
}

// Run はチャネルを購読し、受信したイベントを自インスタンスのセッションへ配信する。
// 購読に失敗した場合や切断された場合は、間隔を倍にしながらctxがキャンセルされるまで再試行する。
func (r *RedisRelay) Run(ctx context.Context) error {
	backoff := r.minBackoff
	for {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Printf("[Relay] %v。%v後に再試行します", err, backoff)
		} else {
			backoff = r.minBackoff
			log.Printf("[Relay] チャネル %s の購読が切断されました。%v後に再購読します", r.channel, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = min(backoff*2, r.maxBackoff)
	}
}

// subscribe はチャネルを1回購読し、購読が終わるまで受信したイベントを配信する。
// 購読を開始できなかった場合はエラーを返す。
func (r *RedisRelay) subscribe(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("チャネル %s の購読に失敗: %w", r.channel, err)
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)
	log.Printf("[Relay] チャネル %s の購読を開始しました", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.replay(ctx, msg.Payload)
		}
	}
}

// replay は中継されたメッセージを1件、自インスタンスのセッションへ配信する。
func (r *RedisRelay) replay(ctx context.Context, payload string) {
	env, err := event.DecodeEnvelope([]byte(payload))
	if err != nil {
		log.Printf("[Relay] 不正なメッセージを破棄しました: %v", err)
		return
	}

	if err := r.local.Deliver(ctx, env.RecipientID, env.Event); err != nil && !errors.Is(err, ErrNoSession) {
		log.Printf("[Relay] ライブ配信に失敗: recipient=%s, error=%v", env.RecipientID, err)
	}
}

// Status は中継の状態を返す。Redisに疎通できない場合は"unreachable"、
// 疎通できるが購読していない場合は"resubscribing"、正常時は"ok"を返す。
func (r *RedisRelay) Status(ctx context.Context) string {
	if err := r.Ping(ctx); err != nil {
		return "unreachable"
	}
	if !r.subscribed.Load() {
		return "resubscribing"
	}
	return "ok"
}

// Ping はRedisへの疎通を確認する。
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
