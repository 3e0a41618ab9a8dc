// Package user はユーザーサービスの内部実装を提供する。
//
// ユーザーの登録・ログインと、他サービスが参照するユーザーディレクトリ（内部API）を提供する。
// ユーザー登録時には通知サービスへ通知の発生要求を送る。
package user
