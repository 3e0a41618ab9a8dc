package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/socialhub/pkg/event"
)

// defaultSessionBuffer はライブセッションの送信バッファのデフォルトサイズ。
const defaultSessionBuffer = 32

// Session は1人のユーザーとの確立済みライブ接続（SSEストリーム）を表す。
// Pushはブロックせず、満杯のバッファや閉じたセッションにはエラーを返す。
type Session struct {
	// ID はセッションの一意識別子。
	ID string
	// Identity は認証済みユーザーの情報。
	Identity Identity
	// ConnectedAt はセッションの確立日時。
	ConnectedAt time.Time

	events    chan event.Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession は新しいライブセッションを生成する。
// bufferが1未満の場合はデフォルトサイズを使用する。
func NewSession(identity Identity, buffer int) *Session {
	if buffer < 1 {
		buffer = defaultSessionBuffer
	}
	return &Session{
		ID:          uuid.New().String(),
		Identity:    identity,
		ConnectedAt: time.Now().UTC(),
		events:      make(chan event.Event, buffer),
		done:        make(chan struct{}),
	}
}

// Push はイベントを送信バッファに積む。ブロックしない。
func (s *Session) Push(ev event.Event) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.events <- ev:
		return nil
	default:
		return ErrSessionBusy
	}
}

// Events は送信待ちイベントのチャネルを返す。
func (s *Session) Events() <-chan event.Event {
	return s.events
}

// Done はセッションが閉じられたときにクローズされるチャネルを返す。
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close はセッションを閉じる。複数回呼び出しても安全。
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
