package notification

import "errors"

var (
	// ErrMissingToken はライブセッション確立時に資格情報が提示されなかったことを表す。
	ErrMissingToken = errors.New("token missing")
	// ErrInvalidToken は資格情報の署名・有効期限・形式が不正であることを表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound はユーザーが存在しない、または削除済みであることを表す。
	ErrUserNotFound = errors.New("user not found")
	// ErrUserNotVerified はユーザーが未認証であることを表す。
	ErrUserNotVerified = errors.New("user not verified")
	// ErrUnsupportedRole は通知の受信者層を持たないロールであることを表す。
	ErrUnsupportedRole = errors.New("unsupported role")
	// ErrInvalidIntent は通知の発生要求に対象ユーザーが含まれないことを表す。
	ErrInvalidIntent = errors.New("invalid notification intent")
	// ErrNoSession は配信先ユーザーのライブセッションが存在しないことを表す。
	ErrNoSession = errors.New("no live session")
	// ErrSessionClosed はライブセッションが既に閉じられていることを表す。
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionBusy はライブセッションの送信バッファが満杯であることを表す。
	ErrSessionBusy = errors.New("session buffer full")
	// ErrPushNotConfigured はプッシュ配信プロバイダが設定されていないことを表す。
	ErrPushNotConfigured = errors.New("push provider not configured")
)
