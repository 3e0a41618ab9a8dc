package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/socialhub/pkg/event"
	"github.com/redis/go-redis/v9"
)

// unreachableRedis は接続できないアドレスを指すRedisクライアントを返す。
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

// TestRedisRelayRun は購読に失敗した場合の再試行を検証する。
func TestRedisRelayRun(t *testing.T) {
	t.Parallel()

	t.Run("Redisに接続できない間はctxがキャンセルされるまで再試行を続けること", func(t *testing.T) {
		t.Parallel()

		relay := NewRedisRelay(unreachableRedis(t), "test", &recordingDeliverer{})
		relay.minBackoff = 5 * time.Millisecond
		relay.maxBackoff = 20 * time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- relay.Run(ctx) }()

		select {
		case err := <-done:
			t.Fatalf("ctxがキャンセルされる前にRun()が終了した: %v", err)
		case <-time.After(300 * time.Millisecond):
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() = %v, want nil", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("ctxのキャンセル後もRun()が終了しない")
		}
	})

	t.Run("Redisに接続できない場合の状態はunreachableであること", func(t *testing.T) {
		t.Parallel()

		relay := NewRedisRelay(unreachableRedis(t), "test", &recordingDeliverer{})
		if got := relay.Status(context.Background()); got != "unreachable" {
			t.Errorf("Status() = %q, want unreachable", got)
		}
	})
}

// TestRedisRelayReplay は中継されたメッセージの配信を検証する。
func TestRedisRelayReplay(t *testing.T) {
	t.Parallel()

	ev, err := event.New(event.TypeNotification, event.UserNotificationData{UserID: alice.ID, Message: "ようこそ"})
	if err != nil {
		t.Fatalf("event.New()でエラーが発生: %v", err)
	}
	payload, err := event.EncodeEnvelope(alice.ID, *ev)
	if err != nil {
		t.Fatalf("EncodeEnvelope()でエラーが発生: %v", err)
	}

	t.Run("宛先のセッションへ配信されること", func(t *testing.T) {
		t.Parallel()

		local := &recordingDeliverer{}
		relay := NewRedisRelay(nil, "test", local)
		relay.replay(context.Background(), string(payload))

		got := local.to(alice.ID)
		if len(got) != 1 || got[0].event.ID != ev.ID {
			t.Errorf("配信 = %+v, want イベント %s", got, ev.ID)
		}
	})

	t.Run("自インスタンスにセッションがない場合は無視されること", func(t *testing.T) {
		t.Parallel()

		local := &recordingDeliverer{err: ErrNoSession}
		NewRedisRelay(nil, "test", local).replay(context.Background(), string(payload))

		if len(local.to(alice.ID)) != 1 {
			t.Error("ローカル配信が試行されていない")
		}
	})

	t.Run("不正なメッセージは破棄されること", func(t *testing.T) {
		t.Parallel()

		local := &recordingDeliverer{}
		relay := NewRedisRelay(nil, "test", local)
		relay.replay(context.Background(), "not json")
		relay.replay(context.Background(), `{"event":{"type":"notification"}}`)

		if len(local.deliveries) != 0 {
			t.Errorf("配信 = %d回, want 0", len(local.deliveries))
		}
	})

	t.Run("ライブ配信の失敗はpanicしないこと", func(t *testing.T) {
		t.Parallel()

		local := &recordingDeliverer{err: errors.New("session buffer full")}
		NewRedisRelay(nil, "test", local).replay(context.Background(), string(payload))
	})
}
