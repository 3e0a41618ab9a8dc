package event

import (
	"encoding/json"
	"time"
)

// Type はライブセッションに送信するイベントの種類を表す。
// SSEの "event:" フィールドの値としてそのまま使用する。
type Type string

const (
	// TypeNotification は通知の即時配信を表す。
	TypeNotification Type = "notification"
	// TypeConnected はライブセッションの確立完了を表す。
	TypeConnected Type = "connected"
	// TypePing は接続維持のためのハートビートを表す。
	TypePing Type = "ping"
)

// Event はライブセッションに配信される1件のイベントを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。SSEの "id:" フィールドに使用する。
	ID string `json:"id"`
	// Type はイベントの種類。
	Type Type `json:"type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが生成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// UserNotificationData は通知対象ユーザーに送る通知イベントのデータ。
type UserNotificationData struct {
	// UserID は通知対象ユーザーのID。
	UserID string `json:"user_id"`
	// Title はユーザー向けタイトル。
	Title string `json:"title,omitempty"`
	// Message はユーザー向けメッセージ。
	Message string `json:"message"`
}

// AdminNotificationData は管理者に送る通知イベントのデータ。
type AdminNotificationData struct {
	// AdminID は受信する管理者のID。
	AdminID string `json:"admin_id"`
	// Title は管理者向けタイトル。
	Title string `json:"title,omitempty"`
	// Message は管理者向けメッセージ。
	Message string `json:"message"`
}

// ConnectedData はセッション確立時に送るイベントのデータ。
type ConnectedData struct {
	// SessionID は確立したライブセッションの識別子。
	SessionID string `json:"session_id"`
	// UserID は認証済みユーザーのID。
	UserID string `json:"user_id"`
}

// Envelope はインスタンス間でイベントを中継するための宛先付きメッセージ。
type Envelope struct {
	// RecipientID は配信先ユーザーのID。
	RecipientID string `json:"recipient_id"`
	// Event は配信するイベント本体。
	Event Event `json:"event"`
	// SentAt は中継元が送信した日時。
	SentAt time.Time `json:"sent_at"`
}
