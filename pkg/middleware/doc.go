// Package middleware はユーザーサービスと通知サービスが共有するGinミドルウェアを提供する。
//
// ロール付きJWTの発行と検証、ロールによるアクセス制御、サービス間トークンの発行、
// パニックリカバリ、ライブセッションにも適用するCORS設定を含む。
package middleware
