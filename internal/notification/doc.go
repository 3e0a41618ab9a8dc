// Package notification は通知サービスの内部実装を提供する。
//
// 通知の発生時に、対象ユーザーと管理者の2つの受信者層それぞれへ
// 接続中のライブセッション（SSE）経由で即時配信し、通知レコードを永続化する。
// 通知一覧の取得時には受信者層ごとの既読状態を管理し、
// 未読バッジ件数は状態を変更せずに返す。
package notification
